package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ark074/SecureWipe3/config"
	"github.com/ark074/SecureWipe3/internal/adapters/redisstore"
	"github.com/ark074/SecureWipe3/internal/bootstrap"
	"github.com/ark074/SecureWipe3/internal/canonical"
	"github.com/ark074/SecureWipe3/internal/core"
	"github.com/ark074/SecureWipe3/internal/data"
	"github.com/ark074/SecureWipe3/internal/domain/model"
	"github.com/ark074/SecureWipe3/internal/signing"
)

type listJobsOptions struct {
	Status string
	Limit  int
}

func parseListJobsFlags(args []string) (listJobsOptions, error) {
	fs := flag.NewFlagSet("list-jobs", flag.ContinueOnError)
	status := fs.String("status", "created", "lifecycle status to list (created, reported, signed, certificated, sent, failed)")
	limit := fs.Int("limit", 50, "maximum number of jobs to list")
	if err := fs.Parse(args); err != nil {
		return listJobsOptions{}, err
	}
	return listJobsOptions{Status: *status, Limit: *limit}, nil
}

func runListJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseListJobsFlags(args)
	if err != nil {
		return err
	}

	status := model.Status(opts.Status)
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", opts.Status)
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()

	store, closeStore, err := connectStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore()

	jobs, err := store.ListByStatus(ctx, status, opts.Limit)
	if err != nil {
		return err
	}

	return printJobs(os.Stdout, jobs)
}

func printJobs(w io.Writer, jobs []*model.Receipt) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "JOB ID\tSTATUS\tMETHOD\tDEVICE\tUPDATED"); err != nil {
		return err
	}
	for _, job := range jobs {
		device := job.Device.Model
		if device == "" {
			device = job.Device.Serial
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			job.JobID, job.Status, job.Method, device,
			job.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type verifyOptions struct {
	JobID      string
	PublicKey  string
	PrintBytes bool
}

func parseVerifyFlags(args []string) (verifyOptions, error) {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	jobID := fs.String("job", "", "job id of the receipt to verify")
	pubKey := fs.String("pub", "signing_key.pub.pem", "PEM public key path")
	printBytes := fs.Bool("print", false, "print the signed canonical bytes")
	if err := fs.Parse(args); err != nil {
		return verifyOptions{}, err
	}
	if *jobID == "" {
		return verifyOptions{}, fmt.Errorf("-job is required")
	}
	return verifyOptions{JobID: *jobID, PublicKey: *pubKey, PrintBytes: *printBytes}, nil
}

func runVerify(cmdCtx *commandContext, args []string) error {
	opts, err := parseVerifyFlags(args)
	if err != nil {
		return err
	}

	pubPEM, err := os.ReadFile(opts.PublicKey)
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()

	store, closeStore, err := connectStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore()

	receipt, err := store.FindByID(ctx, opts.JobID)
	if err != nil {
		return err
	}
	if receipt.Signature == "" {
		return fmt.Errorf("job %s has no signature (status %s)", receipt.JobID, receipt.Status)
	}

	if verifyErr := signing.Verify(pubPEM, []byte(receipt.SignedJSON), receipt.Signature); verifyErr != nil {
		return fmt.Errorf("job %s: %w", receipt.JobID, verifyErr)
	}

	digest, err := payloadDigest(receipt)
	if err != nil {
		return fmt.Errorf("job %s: %w", receipt.JobID, err)
	}

	if opts.PrintBytes {
		if err := writef(os.Stdout, "%s\n", receipt.SignedJSON); err != nil {
			return err
		}
	}
	cmdCtx.Logger.Info("signature verified",
		"job_id", receipt.JobID,
		"algorithm", receipt.Algorithm,
		"status", receipt.Status,
		"payload_sha256", digest)
	return nil
}

// payloadDigest recomputes the canonical digest of the signed payload so it
// can be compared against an externally recorded value.
func payloadDigest(receipt *model.Receipt) (string, error) {
	digest, canonicalBytes, err := canonical.SumSHA256(json.RawMessage(receipt.SignedJSON))
	if err != nil {
		return "", fmt.Errorf("canonicalize signed payload: %w", err)
	}
	// The stored payload is already canonical; a mismatch means it was
	// altered after signing.
	if string(canonicalBytes) != receipt.SignedJSON {
		return "", fmt.Errorf("stored payload for job %s is not in canonical form", receipt.JobID)
	}
	return digest, nil
}

// adminStore is the slice of the receipt store the CLI needs.
type adminStore interface {
	core.ReceiptLister
	FindByID(ctx context.Context, jobID string) (*model.Receipt, error)
}

// connectStore opens the configured receipt store backend and returns it with
// a cleanup function.
func connectStore(cmdCtx *commandContext) (adminStore, func(), error) {
	switch cmdCtx.Config.Store.Backend {
	case config.StoreBackendRedis:
		client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			RedisConfig: cmdCtx.Config.Redis,
			Logger:      cmdCtx.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		cleanup := func() {
			if closeErr := client.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
			}
		}
		return redisstore.NewReceiptStore(client, cmdCtx.Logger), cleanup, nil
	default:
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
			DBConfig: cmdCtx.Config.Postgres,
			Logger:   cmdCtx.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		cleanup := func() {
			if closeErr := db.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("db close failed", "error", closeErr)
			}
		}
		return data.NewReceiptRepo(db, data.RepoConfig{Logger: cmdCtx.Logger}), cleanup, nil
	}
}
