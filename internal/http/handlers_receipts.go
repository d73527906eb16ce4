// Package httpx provides HTTP handlers and utilities for the wipe receipt API.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ark074/SecureWipe3/internal/domain/model"
	"github.com/ark074/SecureWipe3/internal/service"
)

// maxEvidenceBytes bounds an evidence report body.
const maxEvidenceBytes = 1 << 20

// ReceiptHandlers provides HTTP handlers for wipe job receipt operations.
type ReceiptHandlers struct {
	Svc *service.ReceiptService
}

// CreateJob handles requests to register a new wipe job.
func (h *ReceiptHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.Svc.CreateJob(r.Context(), &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, resp)
}

// Report handles evidence report submissions. The body is an arbitrary JSON
// document and is stored verbatim, so it is read raw rather than decoded
// into a struct.
func (h *ReceiptHandlers) Report(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEvidenceBytes+1))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: err})
		return
	}
	if len(body) > maxEvidenceBytes {
		WriteError(w, ErrorParams{
			Code:    http.StatusRequestEntityTooLarge,
			ErrCode: "payload_too_large",
			Err:     errors.New("evidence payload exceeds limit"),
		})
		return
	}
	if len(body) == 0 {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: errors.New("evidence payload is required")})
		return
	}

	resp, err := h.Svc.ReportEvidence(r.Context(), jobID, json.RawMessage(body))
	if err != nil {
		// A partial result means signing succeeded but the certificate did
		// not publish; expose both so the client can retry the report.
		if resp != nil {
			WriteJSON(w, http.StatusAccepted, map[string]any{
				"job_id":    resp.JobID,
				"status":    resp.Status,
				"signature": resp.Signature,
				"warning":   err.Error(),
			})
			return
		}
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Send handles requests to deliver a published certificate.
func (h *ReceiptHandlers) Send(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")})
		return
	}

	resp, err := h.Svc.SendCertificate(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Get handles requests to fetch a receipt.
func (h *ReceiptHandlers) Get(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")})
		return
	}

	receipt, err := h.Svc.GetReceipt(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, receipt)
}
