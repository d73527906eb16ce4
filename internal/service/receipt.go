package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ark074/SecureWipe3/internal/canonical"
	"github.com/ark074/SecureWipe3/internal/core"
	"github.com/ark074/SecureWipe3/internal/domain/model"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
	"github.com/ark074/SecureWipe3/internal/observability/metrics"
	"github.com/ark074/SecureWipe3/internal/observability/statsd"
)

const (
	defaultSignTimeout    = 10 * time.Second
	defaultPublishTimeout = 30 * time.Second
)

// ReceiptServiceOptions groups dependencies for ReceiptService.
type ReceiptServiceOptions struct {
	Repo      core.ReceiptRepository     // Required: receipt store
	Publisher core.CertificatePublisher  // Required: certificate artifact publisher
	Signer    core.Signer                // Optional: reports fail with a key_load error when absent
	Deliverer core.Deliverer             // Optional: certificate delivery collaborator
	Logger    *slog.Logger               // Optional: structured logger
	Metrics   statsd.Sink                // Optional: lifecycle metric sink
	// SignTimeout and PublishTimeout bound the execution of the signing and
	// certificate steps; a timeout is treated as the corresponding component
	// failure.
	SignTimeout    time.Duration
	PublishTimeout time.Duration
	// IDGenerator produces job ids when the caller supplies none.
	IDGenerator func() string
}

// ReceiptService owns the wipe job lifecycle:
// created → reported → signed → certificated → sent, plus failed.
//
// Operations on different job ids are fully independent; operations on the
// same job id are serialized by the store's compare-and-swap update, so two
// concurrent reports cannot interleave partial writes.
type ReceiptService struct {
	repo           core.ReceiptRepository
	publisher      core.CertificatePublisher
	signer         core.Signer
	deliverer      core.Deliverer
	logger         *slog.Logger
	metrics        statsd.Sink
	signTimeout    time.Duration
	publishTimeout time.Duration
	newID          func() string
}

// NewReceiptService constructs a new ReceiptService.
func NewReceiptService(opts ReceiptServiceOptions) (*ReceiptService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReceiptRepository is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("CertificatePublisher is required")
	}

	signTimeout := opts.SignTimeout
	if signTimeout <= 0 {
		signTimeout = defaultSignTimeout
	}
	publishTimeout := opts.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	newID := opts.IDGenerator
	if newID == nil {
		newID = func() string { return "job-" + uuid.NewString() }
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "receipt_service")
	}

	return &ReceiptService{
		repo:           opts.Repo,
		publisher:      opts.Publisher,
		signer:         opts.Signer,
		deliverer:      opts.Deliverer,
		logger:         logger,
		metrics:        opts.Metrics,
		signTimeout:    signTimeout,
		publishTimeout: publishTimeout,
		newID:          newID,
	}, nil
}

// MustNewReceiptService constructs a new ReceiptService and panics on error.
// Use this when the options are known valid (e.g., in main.go).
func MustNewReceiptService(opts ReceiptServiceOptions) *ReceiptService {
	svc, err := NewReceiptService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create ReceiptService: %v", err))
	}
	return svc
}

// CreateJob validates the request and persists a new receipt in the created
// state. Validation and conflict errors surface immediately with no side
// effects.
func (s *ReceiptService) CreateJob(ctx context.Context, req *model.CreateJobRequest) (*model.CreateJobResponse, error) {
	if req == nil {
		return nil, apperrors.Validation("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, s.stageErr(err, req.JobID, apperrors.StageCreate)
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = s.newID()
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, s.stageErr(
			apperrors.Wrap(err, apperrors.ErrCodeSerialization, "encode create request"),
			jobID, apperrors.StageCreate)
	}

	receipt := &model.Receipt{
		JobID:      jobID,
		Operator:   req.Operator,
		Device:     req.Device,
		Method:     req.Method,
		Status:     model.StatusCreated,
		RawPayload: raw,
		Email:      req.Email,
	}

	start := time.Now()
	created, err := s.repo.Create(ctx, receipt)
	if err != nil {
		s.emit(apperrors.StageCreate, metrics.ResultError, time.Since(start), err)
		return nil, s.stageErr(err, jobID, apperrors.StageCreate)
	}
	s.emit(apperrors.StageCreate, metrics.ResultSuccess, time.Since(start), nil)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "wipe job created", "job_id", created.JobID, "email", created.Email)
	}
	return &model.CreateJobResponse{JobID: created.JobID, Status: created.Status}, nil
}

// ReportEvidence ingests a wipe evidence payload and runs the signing
// pipeline: canonicalize, sign, publish certificate, persist. Re-reporting
// is permitted from any state; resubmitting identical evidence is a no-op in
// effect (same canonical bytes, same signature, same certificate locator).
//
// On recoverable failures (signing with a prior signature, certificate
// publishing) the receipt retains its last-known-good state and the returned
// error is non-nil; the job never loses an existing signature to a failed
// re-sign.
func (s *ReceiptService) ReportEvidence(ctx context.Context, jobID string, payload json.RawMessage) (*model.ReportResponse, error) {
	receipt, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, s.stageErr(err, jobID, apperrors.StageReport)
	}
	if !receipt.Status.CanAdvanceTo(model.StatusReported) {
		return nil, s.stageErr(
			apperrors.Conflictf("job in status %s cannot accept a report", receipt.Status),
			jobID, apperrors.StageReport)
	}

	working := *receipt
	working.RawPayload = append(json.RawMessage(nil), payload...)
	working.Status = model.StatusReported
	s.applyMetadata(&working, payload)

	canonicalBytes, err := canonical.Marshal(payload)
	if err != nil {
		return nil, s.handleSigningFailure(ctx, receipt, &working, apperrors.StageCanonical, err)
	}

	signature, err := s.sign(ctx, canonicalBytes)
	if err != nil {
		return nil, s.handleSigningFailure(ctx, receipt, &working, apperrors.StageSign, err)
	}

	signatureChanged := signature != receipt.Signature
	working.SignedJSON = string(canonicalBytes)
	working.Signature = signature
	working.Algorithm = s.signer.Algorithm()
	working.Status = model.StatusSigned
	if signatureChanged {
		// The old locator is derived from the old signature; it must never
		// alias the new content.
		working.CertificatePath = ""
	}

	publishStart := time.Now()
	locator, pubErr := s.publish(ctx, &working, canonicalBytes)
	if pubErr == nil {
		working.CertificatePath = locator
		working.Status = model.StatusCertificated
		s.emit(apperrors.StageCertificate, metrics.ResultSuccess, time.Since(publishStart), nil)
	} else {
		// Certificate generation is retryable; the signature stays valid and
		// the job remains signed.
		s.emit(apperrors.StageCertificate, metrics.ResultError, time.Since(publishStart), pubErr)
	}

	updated, err := s.repo.Update(ctx, &working)
	if err != nil {
		s.emit(apperrors.StagePersist, metrics.ResultError, 0, err)
		return nil, s.stageErr(err, jobID, apperrors.StagePersist)
	}
	s.emit(apperrors.StageSign, metrics.ResultSuccess, 0, nil)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "evidence reported",
			"job_id", jobID, "status", updated.Status, "resigned", signatureChanged)
	}

	resp := &model.ReportResponse{JobID: jobID, Status: updated.Status, Signature: updated.Signature}
	if pubErr != nil {
		return resp, s.stageErr(pubErr, jobID, apperrors.StageCertificate)
	}
	return resp, nil
}

// SendCertificate delivers the published certificate to the receipt's email
// target. Delivery failure is reported but never rolls the job back; resend
// after success is permitted and idempotent.
func (s *ReceiptService) SendCertificate(ctx context.Context, jobID string) (*model.SendResponse, error) {
	receipt, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, s.stageErr(err, jobID, apperrors.StageSend)
	}
	if receipt.CertificatePath == "" {
		return nil, s.stageErr(
			apperrors.Validation("no certificate has been published for this job"),
			jobID, apperrors.StageSend)
	}
	// Resending from sent is idempotent; any other state must be able to
	// advance to sent under the lifecycle ordering.
	if receipt.Status != model.StatusSent && !receipt.Status.CanAdvanceTo(model.StatusSent) {
		return nil, s.stageErr(
			apperrors.Conflictf("job in status %s cannot advance to %s", receipt.Status, model.StatusSent),
			jobID, apperrors.StageSend)
	}
	if s.deliverer == nil {
		return nil, s.stageErr(
			apperrors.Wrap(errors.New("no deliverer configured"), apperrors.ErrCodeDelivery, "delivery unavailable"),
			jobID, apperrors.StageSend)
	}

	start := time.Now()
	err = s.deliverer.Deliver(ctx, core.Delivery{
		To:          receipt.Email,
		Subject:     "Your wipe certificate",
		Body:        "Attached is your wipe certificate.",
		ArtifactRef: receipt.CertificatePath,
	})
	if err != nil {
		s.emit(apperrors.StageSend, metrics.ResultError, time.Since(start), err)
		return nil, s.stageErr(err, jobID, apperrors.StageSend)
	}
	s.emit(apperrors.StageSend, metrics.ResultSuccess, time.Since(start), nil)

	if receipt.Status != model.StatusSent {
		receipt.Status = model.StatusSent
		if receipt, err = s.repo.Update(ctx, receipt); err != nil {
			return nil, s.stageErr(err, jobID, apperrors.StagePersist)
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "certificate sent", "job_id", jobID, "to", receipt.Email)
	}
	return &model.SendResponse{JobID: jobID, Status: receipt.Status}, nil
}

// GetReceipt fetches a receipt by job id.
func (s *ReceiptService) GetReceipt(ctx context.Context, jobID string) (*model.Receipt, error) {
	receipt, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, s.stageErr(err, jobID, apperrors.StageReport)
	}
	return receipt, nil
}

// sign runs the signer under the configured execution budget. A timeout is
// treated as a signing failure.
func (s *ReceiptService) sign(ctx context.Context, canonicalBytes []byte) (string, error) {
	if s.signer == nil {
		return "", apperrors.Wrap(errors.New("no signing key configured"),
			apperrors.ErrCodeKeyLoad, "signing unavailable")
	}

	ctx, cancel := context.WithTimeout(ctx, s.signTimeout)
	defer cancel()

	type result struct {
		sig string
		err error
	}
	done := make(chan result, 1)
	go func() {
		sig, err := s.signer.Sign(canonicalBytes)
		done <- result{sig, err}
	}()

	select {
	case <-ctx.Done():
		return "", apperrors.Wrap(ctx.Err(), apperrors.ErrCodeSigning, "signing timed out")
	case res := <-done:
		if res.err != nil {
			return "", apperrors.Wrap(res.err, apperrors.ErrCodeSigning, "sign canonical payload")
		}
		return res.sig, nil
	}
}

func (s *ReceiptService) publish(ctx context.Context, receipt *model.Receipt, canonicalBytes []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	return s.publisher.Publish(ctx, core.PublishRequest{
		JobID:     receipt.JobID,
		Payload:   canonicalBytes,
		Signature: receipt.Signature,
		Algorithm: receipt.Algorithm,
		Receipt:   receipt,
	})
}

// handleSigningFailure applies the signing error policy: a job with a prior
// signature keeps its last-known-good signed state untouched and the error
// is surfaced as recoverable; a job without one records the received
// evidence and degrades (failed for signing errors, reported for payloads
// that cannot be canonicalized).
func (s *ReceiptService) handleSigningFailure(
	ctx context.Context,
	prior *model.Receipt,
	working *model.Receipt,
	stage apperrors.Stage,
	cause error,
) error {
	s.emit(stage, metrics.ResultError, 0, cause)

	if prior.Signature != "" {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "re-sign failed, keeping last signed state",
				"job_id", prior.JobID, "stage", string(stage), "error", cause)
		}
		return s.stageErr(cause, prior.JobID, stage)
	}

	if stage == apperrors.StageSign {
		working.Status = model.StatusFailed
	}
	if _, err := s.repo.Update(ctx, working); err != nil {
		return s.stageErr(err, prior.JobID, apperrors.StagePersist)
	}
	return s.stageErr(cause, prior.JobID, stage)
}

// applyMetadata lifts descriptive fields out of the evidence payload onto
// the receipt, mirroring what the certificate displays.
func (s *ReceiptService) applyMetadata(receipt *model.Receipt, payload json.RawMessage) {
	var meta struct {
		Operator string       `json:"operator"`
		Method   string       `json:"method"`
		Device   model.Device `json:"device"`
		Email    string       `json:"email"`
	}
	if err := json.Unmarshal(payload, &meta); err != nil {
		return
	}

	if meta.Operator != "" {
		receipt.Operator = meta.Operator
	}
	if meta.Method != "" {
		receipt.Method = meta.Method
	}
	if meta.Device != (model.Device{}) {
		receipt.Device = meta.Device
	}
	if meta.Email != "" {
		receipt.Email = meta.Email
	}
}

// stageErr annotates an error with the job id and lifecycle stage.
func (s *ReceiptService) stageErr(err error, jobID string, stage apperrors.Stage) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.WithJob(jobID, stage)
	}
	return (&apperrors.AppError{
		Code:    apperrors.ErrCodeInternal,
		Message: err.Error(),
		Cause:   err,
	}).WithJob(jobID, stage)
}

func (s *ReceiptService) emit(stage apperrors.Stage, result string, d time.Duration, err error) {
	metrics.EmitReceiptLifecycle(s.metrics, metrics.ReceiptMetric{
		Stage:    stage,
		Result:   result,
		Duration: d,
		Err:      err,
	})
}
