// Package model defines the core data types for the securewipe receipt
// service.
package model

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

// Status represents the lifecycle state of a wipe job receipt.
type Status string

const (
	// StatusCreated indicates the job record exists but no evidence has been reported.
	StatusCreated Status = "created"
	// StatusReported indicates wipe evidence has been received.
	StatusReported Status = "reported"
	// StatusSigned indicates the evidence payload has been canonicalized and signed.
	StatusSigned Status = "signed"
	// StatusCertificated indicates a certificate artifact has been published.
	StatusCertificated Status = "certificated"
	// StatusSent indicates the certificate has been delivered to the recipient.
	StatusSent Status = "sent"
	// StatusFailed indicates an unrecoverable store-level failure.
	StatusFailed Status = "failed"
)

// statusRank orders the forward progression of the lifecycle. Failed sits
// outside the ordering and is reachable from any state.
var statusRank = map[Status]int{
	StatusCreated:      0,
	StatusReported:     1,
	StatusSigned:       2,
	StatusCertificated: 3,
	StatusSent:         4,
}

// Valid returns true if the Status is a known lifecycle state.
func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether the receipt may move from s to next.
// Progression is monotonic forward, except that failed is reachable from any
// state and a new report re-enters the signing pipeline from signed,
// certificated, or sent (evidence resubmission).
func (s Status) CanAdvanceTo(next Status) bool {
	if next == StatusFailed {
		return true
	}
	if next == StatusReported {
		// Re-entrant reports are permitted at any point after creation,
		// including from failed (evidence resubmission is the recovery path).
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Device describes the hardware a wipe job ran against.
type Device struct {
	Platform string `json:"platform,omitempty"`
	Model    string `json:"model,omitempty"`
	Serial   string `json:"serial,omitempty"`
}

// Receipt is the persisted record of a wipe job and its signed evidence.
type Receipt struct {
	JobID    string `json:"job_id"                    db:"job_id"`
	Operator string `json:"operator,omitempty"        db:"operator"`
	Device   Device `json:"device"                    db:"device"`
	Method   string `json:"method,omitempty"          db:"method"`
	Status   Status `json:"status"                    db:"status"`

	// RawPayload holds the last received evidence payload verbatim.
	RawPayload json.RawMessage `json:"raw_payload,omitempty" db:"raw_payload"`
	// SignedJSON is the canonical byte form of the payload the signature covers.
	SignedJSON string `json:"signed_json,omitempty"  db:"signed_json"`
	// Signature is the hex-encoded signature over SignedJSON. Set only after
	// a successful sign; re-signing identical evidence yields identical bytes.
	Signature string `json:"signature,omitempty"     db:"signature"`
	// Algorithm records the signing scheme so a verifier can select a match.
	Algorithm string `json:"algorithm,omitempty"     db:"algorithm"`
	// CertificatePath locates the published certificate artifact. Always
	// derived from the current signature; regenerated whenever it changes.
	CertificatePath string `json:"certificate_path,omitempty" db:"certificate_path"`

	Email string `json:"email" db:"email"`

	// Revision supports compare-and-swap updates so concurrent reports on the
	// same job cannot interleave partial writes.
	Revision  int64     `json:"revision"   db:"revision"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// reEmail is a loose shape check; real validation happens at delivery time.
var reEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// CreateJobRequest represents a request to create a new wipe job.
type CreateJobRequest struct {
	JobID    string `json:"job_id,omitempty"`
	Operator string `json:"operator,omitempty"`
	Device   Device `json:"device"`
	Method   string `json:"method,omitempty"`
	// Confirm must be true; wipe jobs are destructive and require explicit
	// operator confirmation.
	Confirm bool   `json:"confirm"`
	Email   string `json:"email"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Confirm {
		return apperrors.ValidationField("confirm", "confirmation is required")
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	if !reEmail.MatchString(email) {
		return apperrors.ValidationField("email", "email is not a valid address")
	}
	if len(r.JobID) > 128 {
		return apperrors.ValidationField("job_id", "job_id must be at most 128 characters")
	}
	return nil
}

// CreateJobResponse is returned from job creation.
type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
}

// ReportResponse is returned after an evidence report has been processed.
type ReportResponse struct {
	JobID     string `json:"job_id"`
	Status    Status `json:"status"`
	Signature string `json:"signature,omitempty"`
}

// SendResponse is returned after a certificate send request.
type SendResponse struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
}
