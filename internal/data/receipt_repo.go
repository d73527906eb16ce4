// Package data provides the PostgreSQL-backed receipt store.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ark074/SecureWipe3/internal/data/pgxutil"
	"github.com/ark074/SecureWipe3/internal/domain/model"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

// RepoConfig holds configuration options for the receipt repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// ReceiptRepo provides database operations for wipe job receipts.
type ReceiptRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewReceiptRepo creates a new ReceiptRepo instance with the given database
// connection and configuration.
func NewReceiptRepo(db *sql.DB, cfg RepoConfig) *ReceiptRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &ReceiptRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const receiptColumns = `
  job_id,
  operator,
  device,
  method,
  status,
  raw_payload,
  signed_json,
  signature,
  algorithm,
  certificate_path,
  email,
  revision,
  created_at,
  updated_at
`

// Create persists a new receipt. A duplicate job_id surfaces as a Conflict
// error via the unique constraint; the original record is left untouched.
func (r *ReceiptRepo) Create(ctx context.Context, receipt *model.Receipt) (*model.Receipt, error) {
	device, err := json.Marshal(receipt.Device)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "encode device")
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO receipts (
			job_id, operator, device, method, status,
			raw_payload, signed_json, signature, algorithm, certificate_path,
			email, revision, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $12)
		RETURNING `+receiptColumns,
		receipt.JobID,
		receipt.Operator,
		device,
		receipt.Method,
		receipt.Status,
		nullableJSON(receipt.RawPayload),
		receipt.SignedJSON,
		receipt.Signature,
		receipt.Algorithm,
		receipt.CertificatePath,
		receipt.Email,
		now,
	)

	created, err := scanReceipt(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "receipt created", "job_id", created.JobID, "status", created.Status)
	}
	return created, nil
}

// FindByID fetches a receipt by job_id.
func (r *ReceiptRepo) FindByID(ctx context.Context, jobID string) (*model.Receipt, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE job_id = $1`, jobID)

	receipt, err := scanReceipt(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return receipt, nil
}

// Update persists the receipt at its current revision and bumps it. The
// revision predicate gives compare-and-swap semantics: a concurrent writer
// that committed first makes this update miss, and the caller sees a
// Conflict instead of overwriting the other writer's fields from a stale
// read. The miss diagnosis runs in the same transaction so the NotFound vs
// Conflict answer is consistent.
func (r *ReceiptRepo) Update(ctx context.Context, receipt *model.Receipt) (*model.Receipt, error) {
	device, err := json.Marshal(receipt.Device)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "encode device")
	}

	now := r.timeProvider.Now().UTC()
	var updated *model.Receipt
	txErr := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx, `
				UPDATE receipts SET
					operator = $1,
					device = $2,
					method = $3,
					status = $4,
					raw_payload = $5,
					signed_json = $6,
					signature = $7,
					algorithm = $8,
					certificate_path = $9,
					email = $10,
					revision = revision + 1,
					updated_at = $11
				WHERE job_id = $12 AND revision = $13
				RETURNING `+receiptColumns,
				receipt.Operator,
				device,
				receipt.Method,
				receipt.Status,
				nullableJSON(receipt.RawPayload),
				receipt.SignedJSON,
				receipt.Signature,
				receipt.Algorithm,
				receipt.CertificatePath,
				receipt.Email,
				now,
				receipt.JobID,
				receipt.Revision,
			)

			var scanErr error
			updated, scanErr = scanReceipt(row)
			if errors.Is(scanErr, sql.ErrNoRows) {
				return r.diagnoseMissedUpdate(ctx, tx, receipt)
			}
			return scanErr
		},
	})
	if txErr != nil {
		if apperrors.GetCode(txErr) != "" {
			return nil, txErr
		}
		return nil, apperrors.MapDBError(txErr)
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "receipt updated",
			"job_id", updated.JobID, "status", updated.Status, "revision", updated.Revision)
	}
	return updated, nil
}

// ListByStatus returns receipts in the given lifecycle status, oldest first.
func (r *ReceiptRepo) ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.Receipt, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+receiptColumns+`
		FROM receipts
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer rows.Close()

	var receipts []*model.Receipt
	for rows.Next() {
		receipt, scanErr := scanReceipt(rows)
		if scanErr != nil {
			return nil, apperrors.MapDBError(scanErr)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return receipts, nil
}

// diagnoseMissedUpdate distinguishes a missing receipt from a stale revision.
func (r *ReceiptRepo) diagnoseMissedUpdate(ctx context.Context, tx *sql.Tx, receipt *model.Receipt) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM receipts WHERE job_id = $1)`, receipt.JobID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("diagnose missed update: %w", err)
	}
	if !exists {
		return apperrors.NotFoundf("receipt %s not found", receipt.JobID)
	}
	return apperrors.Conflictf("receipt %s was modified concurrently (revision %d is stale)",
		receipt.JobID, receipt.Revision)
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanReceipt.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*model.Receipt, error) {
	var (
		receipt model.Receipt
		device  []byte
		raw     sql.Null[[]byte]
	)
	err := row.Scan(
		&receipt.JobID,
		&receipt.Operator,
		&device,
		&receipt.Method,
		&receipt.Status,
		&raw,
		&receipt.SignedJSON,
		&receipt.Signature,
		&receipt.Algorithm,
		&receipt.CertificatePath,
		&receipt.Email,
		&receipt.Revision,
		&receipt.CreatedAt,
		&receipt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(device) > 0 {
		if err := json.Unmarshal(device, &receipt.Device); err != nil {
			return nil, fmt.Errorf("decode device: %w", err)
		}
	}
	if raw.Valid {
		receipt.RawPayload = json.RawMessage(raw.V)
	}
	return &receipt, nil
}

// nullableJSON maps an empty payload to SQL NULL.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
