package httpx

import (
	"context"
	"io"
	"net/http"
	"time"
)

const healthResponse = `{"status":"ok"}`

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// readyHandler checks the receipt store before reporting ready. A nil pinger
// (e.g., the in-memory or Redis store paths) degrades to the liveness check.
func readyHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.PingContext(ctx); err != nil {
				WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "store_unavailable", Err: err})
				return
			}
		}
		healthHandler(w, r)
	}
}
