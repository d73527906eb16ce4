package httpx

import (
	"log/slog"
	"net/http"

	"github.com/ark074/SecureWipe3/internal/ratelimit"
	"github.com/ark074/SecureWipe3/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Receipts *service.ReceiptService
	// Optional: PIN auth. Nil (or unconfigured) leaves the API open.
	Auth *service.AuthService
	// Optional: request rate limiting on mutating endpoints.
	Limiter ratelimit.Limiter
	// Optional: store health for the readiness endpoint.
	Store  Pinger
	Logger *slog.Logger
}

// NewRouter creates and configures the operator API router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	receiptHandlers := &ReceiptHandlers{Svc: services.Receipts}
	registerReceiptRoutes(mux, receiptHandlers, services)

	if services.Auth != nil && services.Auth.Enabled() {
		authHandlers := &AuthHandlers{Svc: services.Auth}
		mux.Handle("POST /api/login", http.HandlerFunc(authHandlers.Login))
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Store))

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return Chain(mux, Recover(logger), Logging(logger))
}

func registerReceiptRoutes(mux *http.ServeMux, h *ReceiptHandlers, services RouterServices) {
	auth := RequireAuth(services.Auth)
	limited := RateLimit(services.Limiter, services.Logger)

	mux.Handle("POST /api/jobs", auth(limited(http.HandlerFunc(h.CreateJob))))
	mux.Handle("GET /api/jobs/{job_id}", auth(http.HandlerFunc(h.Get)))
	mux.Handle("POST /api/jobs/{job_id}/report", auth(limited(http.HandlerFunc(h.Report))))
	mux.Handle("POST /api/jobs/{job_id}/send", auth(limited(http.HandlerFunc(h.Send))))
}
