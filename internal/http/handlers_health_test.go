package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err   error
	pings int
}

func (p *stubPinger) PingContext(context.Context) error {
	p.pings++
	return p.err
}

func TestHealthHandler(t *testing.T) {
	t.Run("GET returns ok body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		healthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		resp := rec.Result()
		t.Cleanup(func() { _ = resp.Body.Close() })

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("HEAD returns no body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		healthHandler(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))

		resp := rec.Result()
		t.Cleanup(func() { _ = resp.Body.Close() })

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Zero(t, rec.Body.Len())
	})
}

func TestReadyHandler(t *testing.T) {
	t.Run("reachable store reports ready", func(t *testing.T) {
		pinger := &stubPinger{}
		rec := httptest.NewRecorder()
		readyHandler(pinger)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, pinger.pings)
		assert.Equal(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("unreachable store reports unavailable", func(t *testing.T) {
		pinger := &stubPinger{err: errors.New("connection refused")}
		rec := httptest.NewRecorder()
		readyHandler(pinger)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "store_unavailable")
	})

	t.Run("nil pinger degrades to liveness", func(t *testing.T) {
		rec := httptest.NewRecorder()
		readyHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})
}
