// Package agent polls the receipt store for created wipe jobs, performs the
// wipe (dry-run unless explicitly armed), and reports the resulting evidence
// through the lifecycle service.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os/exec"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ark074/SecureWipe3/internal/core"
	"github.com/ark074/SecureWipe3/internal/domain/model"
	"github.com/ark074/SecureWipe3/internal/service"
)

const (
	defaultPollInterval = 15 * time.Second
	defaultBatchSize    = 10
	defaultStepTimeout  = 10 * time.Minute
)

// Options holds the dependencies for creating a Runner.
type Options struct {
	Receipts *service.ReceiptService
	Lister   core.ReceiptLister
	// Interval between polls. Defaults to 15 seconds.
	Interval time.Duration
	// DryRun suppresses command execution and records simulated evidence.
	// This is the default; destructive execution must be armed explicitly.
	DryRun *bool
	// AutoSend delivers the certificate immediately after a successful report.
	AutoSend bool
	// Concurrency bounds how many jobs from a batch run at once. Defaults to 1.
	Concurrency int
	Operator    string
	Logger      *slog.Logger
}

// Runner is the polling wipe agent.
type Runner struct {
	receipts *service.ReceiptService
	lister   core.ReceiptLister
	interval time.Duration
	dryRun   bool
	autoSend bool
	workers  int
	operator string
	logger   *slog.Logger

	// runStep is swappable in tests.
	runStep func(ctx context.Context, step WipeStep) (string, error)
}

// NewRunner creates a new agent runner with the given options.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Receipts == nil {
		return nil, errors.New("receipt service is required")
	}
	if opts.Lister == nil {
		return nil, errors.New("receipt lister is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	dryRun := true
	if opts.DryRun != nil {
		dryRun = *opts.DryRun
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		receipts: opts.Receipts,
		lister:   opts.Lister,
		interval: interval,
		dryRun:   dryRun,
		autoSend: opts.AutoSend,
		workers:  workers,
		operator: opts.Operator,
		logger:   logger.With("component", "agent"),
	}
	r.runStep = r.execStep
	return r, nil
}

// Run polls until the context is cancelled. Per-job failures are logged and
// the loop continues; one bad job must not stall the fleet.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("agent starting", "interval", r.interval, "dry_run", r.dryRun)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("agent stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if processed, err := r.Tick(ctx); err != nil {
				r.logger.Error("agent tick failed", "error", err)
			} else if processed > 0 {
				r.logger.Info("agent tick complete", "processed", processed)
			}
		}
	}
}

// Tick processes one batch of created jobs and returns how many were
// reported successfully.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	jobs, err := r.lister.ListByStatus(ctx, model.StatusCreated, defaultBatchSize)
	if err != nil {
		return 0, err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)

	var processed atomic.Int64
	for _, job := range jobs {
		group.Go(func() error {
			if err := r.processJob(gctx, job); err != nil {
				r.logger.Error("wipe job failed", "job_id", job.JobID, "error", err)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return int(processed.Load()), err
	}
	return int(processed.Load()), nil
}

// stepResult is one executed (or simulated) wipe command with its output.
type stepResult struct {
	Cmd    string `json:"cmd"`
	Out    string `json:"out"`
	Status string `json:"status"`
}

// evidencePayload is the evidence document reported for a completed wipe.
type evidencePayload struct {
	Operator    string       `json:"operator,omitempty"`
	Method      string       `json:"method,omitempty"`
	Device      model.Device `json:"device"`
	DryRun      bool         `json:"dry_run"`
	Evidence    []stepResult `json:"evidence"`
	CompletedAt time.Time    `json:"completed_at"`
}

func (r *Runner) processJob(ctx context.Context, job *model.Receipt) error {
	plan, err := PlanWipe(job.Device, job.Method)
	if err != nil {
		return err
	}

	results := make([]stepResult, 0, len(plan))
	for _, step := range plan {
		result := stepResult{Cmd: step.String(), Status: "success"}
		if r.dryRun {
			result.Status = "dry-run"
			result.Out = "DRY-RUN: no destructive action performed"
		} else {
			out, runErr := r.runStep(ctx, step)
			result.Out = out
			if runErr != nil {
				result.Status = "failed"
				results = append(results, result)
				break
			}
		}
		results = append(results, result)
	}

	operator := job.Operator
	if r.operator != "" {
		operator = r.operator
	}
	payload, err := json.Marshal(evidencePayload{
		Operator:    operator,
		Method:      job.Method,
		Device:      job.Device,
		DryRun:      r.dryRun,
		Evidence:    results,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if _, err := r.receipts.ReportEvidence(ctx, job.JobID, payload); err != nil {
		return err
	}
	r.logger.Info("wipe reported", "job_id", job.JobID, "steps", len(results), "dry_run", r.dryRun)

	if r.autoSend {
		if _, err := r.receipts.SendCertificate(ctx, job.JobID); err != nil {
			// Delivery is retryable from the API; the report already landed.
			r.logger.Warn("certificate send failed", "job_id", job.JobID, "error", err)
		}
	}
	return nil
}

func (r *Runner) execStep(ctx context.Context, step WipeStep) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultStepTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, step.Cmd, step.Args...).CombinedOutput()
	return string(out), err
}
