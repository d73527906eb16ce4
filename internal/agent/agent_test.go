package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ark074/SecureWipe3/internal/core"
	"github.com/ark074/SecureWipe3/internal/domain/model"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
	"github.com/ark074/SecureWipe3/internal/service"
)

type memStore struct {
	receipts map[string]*model.Receipt
}

func newMemStore() *memStore {
	return &memStore{receipts: map[string]*model.Receipt{}}
}

func (s *memStore) Create(_ context.Context, receipt *model.Receipt) (*model.Receipt, error) {
	cp := *receipt
	cp.Revision = 1
	s.receipts[receipt.JobID] = &cp
	out := cp
	return &out, nil
}

func (s *memStore) FindByID(_ context.Context, jobID string) (*model.Receipt, error) {
	receipt, ok := s.receipts[jobID]
	if !ok {
		return nil, apperrors.NotFound("job_id")
	}
	cp := *receipt
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, receipt *model.Receipt) (*model.Receipt, error) {
	existing, ok := s.receipts[receipt.JobID]
	if !ok {
		return nil, apperrors.NotFound("job_id")
	}
	if existing.Revision != receipt.Revision {
		return nil, apperrors.Conflict("revision")
	}
	cp := *receipt
	cp.Revision++
	s.receipts[receipt.JobID] = &cp
	out := cp
	return &out, nil
}

func (s *memStore) ListByStatus(_ context.Context, status model.Status, limit int) ([]*model.Receipt, error) {
	var out []*model.Receipt
	for _, receipt := range s.receipts {
		if receipt.Status == status {
			cp := *receipt
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type hashSigner struct{}

func (hashSigner) Sign(canonical []byte) (string, error) {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func (hashSigner) Algorithm() string { return "rsa-pkcs1v15-sha256" }

type pathPublisher struct{}

func (pathPublisher) Publish(_ context.Context, req core.PublishRequest) (string, error) {
	return "/certs/" + req.JobID + ".html", nil
}

type countDeliverer struct{ sent int }

func (d *countDeliverer) Deliver(context.Context, core.Delivery) error {
	d.sent++
	return nil
}

type agentFixture struct {
	runner    *Runner
	store     *memStore
	deliverer *countDeliverer
}

func newAgentFixture(t *testing.T, mutate func(*Options)) *agentFixture {
	t.Helper()

	store := newMemStore()
	deliverer := &countDeliverer{}
	receipts, err := service.NewReceiptService(service.ReceiptServiceOptions{
		Repo:      store,
		Publisher: pathPublisher{},
		Signer:    hashSigner{},
		Deliverer: deliverer,
	})
	require.NoError(t, err)

	opts := Options{Receipts: receipts, Lister: store}
	if mutate != nil {
		mutate(&opts)
	}
	runner, err := NewRunner(opts)
	require.NoError(t, err)
	return &agentFixture{runner: runner, store: store, deliverer: deliverer}
}

func seedJob(t *testing.T, store *memStore, jobID string, device model.Device) {
	t.Helper()
	_, err := store.Create(context.Background(), &model.Receipt{
		JobID:    jobID,
		Operator: "alice",
		Device:   device,
		Method:   "purge",
		Status:   model.StatusCreated,
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
}

func TestTick(t *testing.T) {
	linuxDevice := model.Device{Platform: "linux", Model: "/dev/nvme0n1", Serial: "SN-1"}

	t.Run("reports dry-run evidence for created jobs", func(t *testing.T) {
		f := newAgentFixture(t, nil)
		seedJob(t, f.store, "job-001", linuxDevice)

		processed, err := f.runner.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, processed)

		stored := f.store.receipts["job-001"]
		assert.Equal(t, model.StatusCertificated, stored.Status)
		assert.NotEmpty(t, stored.Signature)

		var payload evidencePayload
		require.NoError(t, json.Unmarshal(stored.RawPayload, &payload))
		assert.True(t, payload.DryRun)
		require.NotEmpty(t, payload.Evidence)
		assert.Equal(t, "dry-run", payload.Evidence[0].Status)
		assert.Contains(t, payload.Evidence[0].Cmd, "shred")
	})

	t.Run("nothing to do with no created jobs", func(t *testing.T) {
		f := newAgentFixture(t, nil)

		processed, err := f.runner.Tick(context.Background())
		require.NoError(t, err)
		assert.Zero(t, processed)
	})

	t.Run("one bad job does not stall the batch", func(t *testing.T) {
		f := newAgentFixture(t, nil)
		// No device identity: planning fails.
		seedJob(t, f.store, "job-bad", model.Device{Platform: "linux"})
		seedJob(t, f.store, "job-good", linuxDevice)

		processed, err := f.runner.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, processed)
		assert.Equal(t, model.StatusCertificated, f.store.receipts["job-good"].Status)
		assert.Equal(t, model.StatusCreated, f.store.receipts["job-bad"].Status)
	})

	t.Run("auto send delivers the certificate", func(t *testing.T) {
		f := newAgentFixture(t, func(opts *Options) { opts.AutoSend = true })
		seedJob(t, f.store, "job-001", linuxDevice)

		_, err := f.runner.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, f.deliverer.sent)
		assert.Equal(t, model.StatusSent, f.store.receipts["job-001"].Status)
	})

	t.Run("armed mode records real command output", func(t *testing.T) {
		armed := false
		f := newAgentFixture(t, func(opts *Options) {
			opts.DryRun = &armed
		})
		f.runner.runStep = func(_ context.Context, step WipeStep) (string, error) {
			return "wiped " + step.String(), nil
		}
		seedJob(t, f.store, "job-001", linuxDevice)

		_, err := f.runner.Tick(context.Background())
		require.NoError(t, err)

		var payload evidencePayload
		require.NoError(t, json.Unmarshal(f.store.receipts["job-001"].RawPayload, &payload))
		assert.False(t, payload.DryRun)
		assert.Equal(t, "success", payload.Evidence[0].Status)
		assert.Contains(t, payload.Evidence[0].Out, "wiped")
	})

	t.Run("a failed step stops the plan and reports the failure", func(t *testing.T) {
		armed := false
		f := newAgentFixture(t, func(opts *Options) { opts.DryRun = &armed })
		f.runner.runStep = func(context.Context, WipeStep) (string, error) {
			return "permission denied", errors.New("exit status 1")
		}
		seedJob(t, f.store, "job-001", linuxDevice)

		_, err := f.runner.Tick(context.Background())
		require.NoError(t, err)

		var payload evidencePayload
		require.NoError(t, json.Unmarshal(f.store.receipts["job-001"].RawPayload, &payload))
		assert.Equal(t, "failed", payload.Evidence[len(payload.Evidence)-1].Status)
	})
}

func TestPlanWipe(t *testing.T) {
	tests := []struct {
		name    string
		device  model.Device
		method  string
		wantCmd string
	}{
		{"linux overwrite", model.Device{Platform: "linux", Model: "/dev/sda", Serial: "SN"}, "", "shred"},
		{"windows free space", model.Device{Platform: "windows", Model: "C", Serial: "SN"}, "", "cipher"},
		{"windows purge", model.Device{Platform: "windows", Model: "C", Serial: "SN"}, "purge", "diskpart"},
		{"android factory reset", model.Device{Platform: "android", Model: "pixel", Serial: "SN"}, "", "adb"},
		{"unknown platform falls back to linux", model.Device{Platform: "plan9", Model: "/dev/sda", Serial: "SN"}, "", "shred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanWipe(tt.device, tt.method)
			require.NoError(t, err)
			require.NotEmpty(t, plan)
			assert.Equal(t, tt.wantCmd, plan[0].Cmd)
		})
	}

	t.Run("device identity is required", func(t *testing.T) {
		_, err := PlanWipe(model.Device{Platform: "linux"}, "")
		assert.Error(t, err)
	})

	t.Run("purge uses multiple passes on linux", func(t *testing.T) {
		plan, err := PlanWipe(model.Device{Platform: "linux", Model: "/dev/sda", Serial: "SN"}, "purge")
		require.NoError(t, err)
		assert.Contains(t, plan[0].Args, "3")
	})
}
