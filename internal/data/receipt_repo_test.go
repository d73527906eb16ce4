package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ark074/SecureWipe3/internal/domain/model"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
	"github.com/ark074/SecureWipe3/internal/testutil"
)

func newTestReceipt(jobID string) *model.Receipt {
	return &model.Receipt{
		JobID:    jobID,
		Operator: "tech-7",
		Device:   model.Device{Serial: "SN-100", Model: "/dev/sdb", Platform: "linux"},
		Method:   "purge",
		Status:   model.StatusCreated,
		Email:    "ops@example.com",
	}
}

func TestReceiptRepo_Create_FindByID(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewReceiptRepo(db, RepoConfig{})

		jobID := fmt.Sprintf("job-%d", time.Now().UnixNano())
		created, err := repo.Create(ctx, newTestReceipt(jobID))
		require.NoError(t, err)
		assert.Equal(t, jobID, created.JobID)
		assert.Equal(t, int64(1), created.Revision)
		assert.Equal(t, model.StatusCreated, created.Status)
		assert.NotZero(t, created.CreatedAt)

		got, err := repo.FindByID(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, created.JobID, got.JobID)
		assert.Equal(t, "SN-100", got.Device.Serial)
		assert.Equal(t, "purge", got.Method)
		assert.Empty(t, got.RawPayload)
	})
}

func TestReceiptRepo_Create_DuplicateJobID(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewReceiptRepo(db, RepoConfig{})

		jobID := fmt.Sprintf("job-%d", time.Now().UnixNano())
		_, err := repo.Create(ctx, newTestReceipt(jobID))
		require.NoError(t, err)

		_, err = repo.Create(ctx, newTestReceipt(jobID))
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestReceiptRepo_FindByID_NotFound(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewReceiptRepo(db, RepoConfig{})

		_, err := repo.FindByID(context.Background(), "job-missing")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestReceiptRepo_Update_BumpsRevision(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewReceiptRepo(db, RepoConfig{})

		jobID := fmt.Sprintf("job-%d", time.Now().UnixNano())
		created, err := repo.Create(ctx, newTestReceipt(jobID))
		require.NoError(t, err)

		created.Status = model.StatusReported
		created.RawPayload = json.RawMessage(`{"evidence":[{"cmd":"shred"}]}`)
		created.SignedJSON = `{"device":{"serial":"SN-100"}}`
		created.Signature = "abc123"
		created.Algorithm = "rsa-pkcs1v15-sha256"

		updated, err := repo.Update(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Revision)
		assert.Equal(t, model.StatusReported, updated.Status)
		assert.JSONEq(t, `{"evidence":[{"cmd":"shred"}]}`, string(updated.RawPayload))
		assert.Equal(t, "abc123", updated.Signature)
	})
}

func TestReceiptRepo_Update_StaleRevisionConflicts(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewReceiptRepo(db, RepoConfig{})

		jobID := fmt.Sprintf("job-%d", time.Now().UnixNano())
		created, err := repo.Create(ctx, newTestReceipt(jobID))
		require.NoError(t, err)

		// First writer commits at revision 1.
		first := *created
		first.Status = model.StatusReported
		_, err = repo.Update(ctx, &first)
		require.NoError(t, err)

		// Second writer still holds revision 1; its update must miss.
		second := *created
		second.Status = model.StatusFailed
		_, err = repo.Update(ctx, &second)
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))

		// The first writer's fields survive.
		got, err := repo.FindByID(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReported, got.Status)
	})
}

func TestReceiptRepo_Update_NotFound(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewReceiptRepo(db, RepoConfig{})

		missing := newTestReceipt("job-ghost")
		missing.Revision = 1
		_, err := repo.Update(context.Background(), missing)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestReceiptRepo_ListByStatus(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewReceiptRepo(db, RepoConfig{})

		base := time.Now().UnixNano()
		var createdIDs []string
		for i := range 3 {
			jobID := fmt.Sprintf("job-%d-%d", base, i)
			createdIDs = append(createdIDs, jobID)
			_, err := repo.Create(ctx, newTestReceipt(jobID))
			require.NoError(t, err)
		}

		// One job moves on; it must drop out of the created listing.
		moved, err := repo.FindByID(ctx, createdIDs[1])
		require.NoError(t, err)
		moved.Status = model.StatusReported
		_, err = repo.Update(ctx, moved)
		require.NoError(t, err)

		jobs, err := repo.ListByStatus(ctx, model.StatusCreated, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, createdIDs[0], jobs[0].JobID, "oldest first")
		assert.Equal(t, createdIDs[2], jobs[1].JobID)

		limited, err := repo.ListByStatus(ctx, model.StatusCreated, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		none, err := repo.ListByStatus(ctx, model.StatusSent, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
