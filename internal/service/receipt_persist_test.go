package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ark074/SecureWipe3/internal/domain/model"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
	"github.com/ark074/SecureWipe3/internal/mocks"
)

// These tests pin down the exact repository call sequences on store failure
// paths, using gomock so an extra or missing persistence call fails the test.

func newMockedService(t *testing.T, repo *mocks.MockReceiptRepository) *ReceiptService {
	t.Helper()
	svc, err := NewReceiptService(ReceiptServiceOptions{
		Repo:      repo,
		Publisher: &stubPublisher{},
		Signer:    &stubSigner{},
	})
	require.NoError(t, err)
	return svc
}

func TestReportEvidence_PersistFailureSurfacesStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockReceiptRepository(ctrl)
	svc := newMockedService(t, repo)

	stored := &model.Receipt{JobID: "job-p1", Status: model.StatusCreated, Revision: 1}
	storeErr := apperrors.Internalf("write receipt: connection reset")

	repo.EXPECT().FindByID(gomock.Any(), "job-p1").Return(stored, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil, storeErr)

	_, err := svc.ReportEvidence(context.Background(), "job-p1", []byte(`{"passes":1}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
	assert.Equal(t, apperrors.StagePersist, apperrors.GetStage(err))
}

func TestReportEvidence_FirstSignFailureMarksJobFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockReceiptRepository(ctrl)
	svc, err := NewReceiptService(ReceiptServiceOptions{
		Repo:      repo,
		Publisher: &stubPublisher{},
		Signer: &stubSigner{signFn: func([]byte) (string, error) {
			return "", errors.New("hsm unavailable")
		}},
	})
	require.NoError(t, err)

	// No prior signature: the failure must be recorded on the receipt.
	stored := &model.Receipt{JobID: "job-p2", Status: model.StatusCreated, Revision: 1}
	repo.EXPECT().FindByID(gomock.Any(), "job-p2").Return(stored, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.AssignableToTypeOf(&model.Receipt{})).
		DoAndReturn(func(_ context.Context, r *model.Receipt) (*model.Receipt, error) {
			assert.Equal(t, model.StatusFailed, r.Status)
			assert.JSONEq(t, `{"passes":1}`, string(r.RawPayload))
			return r, nil
		})

	_, err = svc.ReportEvidence(context.Background(), "job-p2", []byte(`{"passes":1}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsSigning(err))
}

func TestReportEvidence_ResignFailureSkipsPersistence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockReceiptRepository(ctrl)
	svc, err := NewReceiptService(ReceiptServiceOptions{
		Repo:      repo,
		Publisher: &stubPublisher{},
		Signer: &stubSigner{signFn: func([]byte) (string, error) {
			return "", errors.New("hsm unavailable")
		}},
	})
	require.NoError(t, err)

	// A prior signature must survive a failed re-sign; no Update is expected.
	stored := &model.Receipt{
		JobID:      "job-p3",
		Status:     model.StatusCertificated,
		Signature:  "deadbeef",
		SignedJSON: `{"passes":1}`,
		Revision:   3,
	}
	repo.EXPECT().FindByID(gomock.Any(), "job-p3").Return(stored, nil)

	_, err = svc.ReportEvidence(context.Background(), "job-p3", []byte(`{"passes":2}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsSigning(err))
	assert.True(t, apperrors.IsRecoverable(err))
}

func TestSendCertificate_PersistFailureAfterDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockReceiptRepository(ctrl)
	deliverer := &stubDeliverer{}
	svc, err := NewReceiptService(ReceiptServiceOptions{
		Repo:      repo,
		Publisher: &stubPublisher{},
		Signer:    &stubSigner{},
		Deliverer: deliverer,
	})
	require.NoError(t, err)

	stored := &model.Receipt{
		JobID:           "job-p4",
		Status:          model.StatusCertificated,
		CertificatePath: "/certs/job-p4.html",
		Email:           "ops@example.com",
		Revision:        2,
	}
	repo.EXPECT().FindByID(gomock.Any(), "job-p4").Return(stored, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).
		Return(nil, apperrors.Conflictf("receipt job-p4 was modified concurrently"))

	_, err = svc.SendCertificate(context.Background(), "job-p4")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, apperrors.StagePersist, apperrors.GetStage(err))
	// The mail went out even though the status flip could not be recorded.
	assert.Len(t, deliverer.deliveries, 1)
}
