// Package core defines the ports between the receipt lifecycle service and
// its collaborators.
package core

import (
	"context"

	"github.com/ark074/SecureWipe3/internal/domain/model"
)

// This file contains the port definitions (hexagonal architecture).
// Service implementations depend on these interfaces, not concrete adapters.

// ReceiptRepository is the narrow durable-store contract for wipe job
// receipts. Create must enforce job_id uniqueness atomically; Update must
// provide compare-and-swap semantics via Receipt.Revision so two concurrent
// reports cannot interleave partial writes.
type ReceiptRepository interface {
	// Create persists a new receipt. Fails with a Conflict error when the
	// job_id already exists.
	Create(ctx context.Context, receipt *model.Receipt) (*model.Receipt, error)
	// FindByID fetches a receipt by job_id. Fails with NotFound when absent.
	FindByID(ctx context.Context, jobID string) (*model.Receipt, error)
	// Update persists receipt at its current Revision and bumps it. Fails
	// with NotFound when absent, Conflict when the revision is stale.
	Update(ctx context.Context, receipt *model.Receipt) (*model.Receipt, error)
}

// ReceiptLister enumerates receipts by lifecycle status. Implemented by the
// durable stores; consumed by the polling agent.
type ReceiptLister interface {
	ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.Receipt, error)
}

// Signer produces a digital signature over canonical bytes.
type Signer interface {
	// Sign returns the hex-encoded signature over canonical.
	Sign(canonical []byte) (string, error)
	// Algorithm identifies the signing scheme, fixed process-wide.
	Algorithm() string
}

// PublishRequest carries the signed payload to the certificate publisher.
type PublishRequest struct {
	JobID     string
	Payload   []byte // canonical signed payload
	Signature string // hex
	Algorithm string
	Receipt   *model.Receipt
}

// CertificatePublisher renders a retrievable certificate artifact and
// returns its locator. The locator is unique per (job_id, signature):
// republishing an unchanged signature may return the same locator, while a
// changed signature must yield a distinct one.
type CertificatePublisher interface {
	Publish(ctx context.Context, req PublishRequest) (locator string, err error)
}

// Delivery carries a published certificate to its recipient.
type Delivery struct {
	To          string
	Subject     string
	Body        string
	ArtifactRef string
}

// Deliverer sends a certificate to the delivery target. Failures are
// surfaced as Delivery errors and never roll back job state.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}
