// Package verifier serves published wipe certificates to third parties. It
// is a separate listener from the operator API so certificate verification
// can be exposed without exposing job mutation.
package verifier

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"os"

	httpx "github.com/ark074/SecureWipe3/internal/http"
	"github.com/ark074/SecureWipe3/internal/service"
)

// Options groups dependencies for the verifier router.
type Options struct {
	Receipts *service.ReceiptService
	// APIKey gates access when set. Empty leaves the verifier open, for
	// deployments that publish certificates publicly.
	APIKey string
	Logger *slog.Logger
}

// Handlers serves verification requests.
type Handlers struct {
	receipts *service.ReceiptService
	logger   *slog.Logger
}

// NewRouter creates and configures the verifier router.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{receipts: opts.Receipts, logger: logger.With("component", "verifier")}

	mux := http.NewServeMux()
	guard := requireAPIKey(opts.APIKey)
	mux.Handle("GET /receipts/{job_id}", guard(http.HandlerFunc(h.Certificate)))
	mux.Handle("GET /receipts/{job_id}/status", guard(http.HandlerFunc(h.Status)))
	mux.Handle("GET /healthz", http.HandlerFunc(h.Health))

	return httpx.Chain(mux, httpx.Recover(logger), httpx.Logging(logger))
}

// requireAPIKey rejects requests without the configured key. Comparison is
// constant-time.
func requireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				httpx.WriteError(w, httpx.ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "invalid_api_key",
					Err:     errors.New("a valid api key is required"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Certificate serves the published certificate artifact for a job.
func (h *Handlers) Certificate(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	receipt, err := h.receipts.GetReceipt(r.Context(), jobID)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	if receipt.CertificatePath == "" {
		httpx.WriteError(w, httpx.ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "not_found",
			Err:     errors.New("no certificate has been published for this job"),
		})
		return
	}
	if _, err := os.Stat(receipt.CertificatePath); err != nil {
		h.logger.ErrorContext(r.Context(), "certificate artifact missing",
			"job_id", jobID, "path", receipt.CertificatePath, "error", err)
		httpx.WriteError(w, httpx.ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "artifact_missing",
			Err:     errors.New("certificate artifact is unavailable"),
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, receipt.CertificatePath)
}

// statusResponse exposes the verifiable subset of a receipt: the canonical
// signed payload, its signature, and the algorithm, but never delivery
// details.
type statusResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	SignedJSON string `json:"signed_json,omitempty"`
	Signature  string `json:"signature,omitempty"`
	Algorithm  string `json:"algorithm,omitempty"`
}

// Status returns the signed payload and signature for independent
// verification.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	receipt, err := h.receipts.GetReceipt(r.Context(), jobID)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, statusResponse{
		JobID:      receipt.JobID,
		Status:     string(receipt.Status),
		SignedJSON: receipt.SignedJSON,
		Signature:  receipt.Signature,
		Algorithm:  receipt.Algorithm,
	})
}

// Health is a simple liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
