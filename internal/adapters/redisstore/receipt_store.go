// Package redisstore provides a Redis-backed receipt store. It is the
// document-style alternative to the PostgreSQL repository, selected by
// configuration at startup.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ark074/SecureWipe3/internal/domain/model"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

const defaultPrefix = "receipt:"

// ReceiptStore stores receipts as JSON documents keyed by job_id.
// Updates use WATCH/MULTI so a stale revision is rejected rather than
// overwriting a concurrent writer.
type ReceiptStore struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewReceiptStore creates a Redis-backed receipt store.
func NewReceiptStore(client redis.UniversalClient, logger *slog.Logger) *ReceiptStore {
	if logger != nil {
		logger = logger.With("component", "redis_receipt_store")
	}
	return &ReceiptStore{client: client, prefix: defaultPrefix, logger: logger}
}

func (s *ReceiptStore) key(jobID string) string {
	return s.prefix + jobID
}

// Create persists a new receipt. SetNX gives atomic uniqueness: a duplicate
// job_id fails with a Conflict error and the original record is untouched.
func (s *ReceiptStore) Create(ctx context.Context, receipt *model.Receipt) (*model.Receipt, error) {
	stored := *receipt
	stored.Revision = 1
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "encode receipt")
	}

	ok, err := s.client.SetNX(ctx, s.key(stored.JobID), data, 0).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "redis setnx")
	}
	if !ok {
		return nil, apperrors.Conflictf("receipt %s already exists", stored.JobID)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "receipt created", "job_id", stored.JobID)
	}
	return &stored, nil
}

// FindByID fetches a receipt by job_id.
func (s *ReceiptStore) FindByID(ctx context.Context, jobID string) (*model.Receipt, error) {
	data, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFoundf("receipt %s not found", jobID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "redis get")
	}

	var receipt model.Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "decode receipt")
	}
	return &receipt, nil
}

// Update persists the receipt at its current revision and bumps it. The key
// is WATCHed for the duration of the check-and-set, so a concurrent writer
// aborts this transaction and the caller sees a Conflict.
func (s *ReceiptStore) Update(ctx context.Context, receipt *model.Receipt) (*model.Receipt, error) {
	key := s.key(receipt.JobID)

	updated := *receipt
	updated.Revision = receipt.Revision + 1
	updated.UpdatedAt = time.Now().UTC()

	txFn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return apperrors.NotFoundf("receipt %s not found", receipt.JobID)
			}
			return fmt.Errorf("redis get: %w", err)
		}

		var current model.Receipt
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("decode receipt: %w", err)
		}
		if current.Revision != receipt.Revision {
			return apperrors.Conflictf("receipt %s was modified concurrently (revision %d is stale)",
				receipt.JobID, receipt.Revision)
		}

		updated.CreatedAt = current.CreatedAt
		out, err := json.Marshal(&updated)
		if err != nil {
			return fmt.Errorf("encode receipt: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txFn, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, apperrors.Conflictf("receipt %s was modified concurrently", receipt.JobID)
		}
		if apperrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "redis update")
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "receipt updated",
			"job_id", updated.JobID, "status", updated.Status, "revision", updated.Revision)
	}
	return &updated, nil
}

// ListByStatus scans the key space for receipts in the given status. Redis
// has no secondary index here, so this walks the prefix with SCAN; the
// polling agent calls it at a low rate and key counts are small.
func (s *ReceiptStore) ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.Receipt, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		receipts []*model.Receipt
		cursor   uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "redis scan")
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // deleted between SCAN and GET
				}
				return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "redis get")
			}
			var receipt model.Receipt
			if err := json.Unmarshal(data, &receipt); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "decode receipt")
			}
			if receipt.Status == status {
				receipts = append(receipts, &receipt)
				if len(receipts) >= limit {
					return receipts, nil
				}
			}
		}

		cursor = next
		if cursor == 0 {
			return receipts, nil
		}
	}
}
