package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ark074/SecureWipe3/internal/domain/model"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
	"github.com/ark074/SecureWipe3/internal/testutil"
)

func setupStore(t *testing.T) (*ReceiptStore, *redis.Client) {
	t.Helper()
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("redis close failed: %v", err)
		}
	})
	return NewReceiptStore(client, nil), client
}

func testReceipt(jobID string) *model.Receipt {
	return &model.Receipt{
		JobID:    jobID,
		Operator: "tech-7",
		Device:   model.Device{Serial: "SN-200", Platform: "android"},
		Method:   "clear",
		Status:   model.StatusCreated,
		Email:    "ops@example.com",
	}
}

func TestReceiptStore_Create_FindByID(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	jobID := fmt.Sprintf("job-%d", time.Now().UnixNano())
	created, err := store.Create(ctx, testReceipt(jobID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Revision)
	assert.NotZero(t, created.CreatedAt)

	got, err := store.FindByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, got.JobID)
	assert.Equal(t, "SN-200", got.Device.Serial)
	assert.Equal(t, model.StatusCreated, got.Status)
}

func TestReceiptStore_Create_Duplicate(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	jobID := fmt.Sprintf("job-%d", time.Now().UnixNano())
	_, err := store.Create(ctx, testReceipt(jobID))
	require.NoError(t, err)

	_, err = store.Create(ctx, testReceipt(jobID))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestReceiptStore_FindByID_NotFound(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.FindByID(context.Background(), "job-missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReceiptStore_Update_CheckAndSet(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	jobID := fmt.Sprintf("job-%d", time.Now().UnixNano())
	created, err := store.Create(ctx, testReceipt(jobID))
	require.NoError(t, err)

	first := *created
	first.Status = model.StatusReported
	updated, err := store.Update(ctx, &first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Revision)
	assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())

	// A writer holding the old revision must get a conflict.
	second := *created
	second.Status = model.StatusFailed
	_, err = store.Update(ctx, &second)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	got, err := store.FindByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReported, got.Status)
}

func TestReceiptStore_Update_NotFound(t *testing.T) {
	store, _ := setupStore(t)

	missing := testReceipt("job-ghost")
	missing.Revision = 1
	_, err := store.Update(context.Background(), missing)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReceiptStore_ListByStatus(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	base := time.Now().UnixNano()
	for i := range 3 {
		_, err := store.Create(ctx, testReceipt(fmt.Sprintf("job-%d-%d", base, i)))
		require.NoError(t, err)
	}

	// Advance one job so it leaves the created set.
	moved, err := store.FindByID(ctx, fmt.Sprintf("job-%d-1", base))
	require.NoError(t, err)
	moved.Status = model.StatusReported
	_, err = store.Update(ctx, moved)
	require.NoError(t, err)

	jobs, err := store.ListByStatus(ctx, model.StatusCreated, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	limited, err := store.ListByStatus(ctx, model.StatusCreated, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	reported, err := store.ListByStatus(ctx, model.StatusReported, 10)
	require.NoError(t, err)
	require.Len(t, reported, 1)
	assert.Equal(t, moved.JobID, reported[0].JobID)
}
