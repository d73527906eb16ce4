package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		JobID string `json:"job_id"`
	}

	t.Run("valid body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"job_id":"job-1"}`))

		var dst payload
		require.True(t, DecodeJSON(rec, req, &dst))
		assert.Equal(t, "job-1", dst.JobID)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"job_id":"job-1","extra":true}`))

		var dst payload
		require.False(t, DecodeJSON(rec, req, &dst))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("trailing data rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"job_id":"job-1"}{"job_id":"job-2"}`))

		var dst payload
		require.False(t, DecodeJSON(rec, req, &dst))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "trailing data")
	})
}

func TestWriteErrorIncludesValidationField(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrorParams{
		Code:    http.StatusBadRequest,
		ErrCode: "validation",
		Err:     apperrors.ValidationField("email", "email is required"),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"email"`)
}
