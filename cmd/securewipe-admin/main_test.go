package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ark074/SecureWipe3/internal/canonical"
	"github.com/ark074/SecureWipe3/internal/domain/model"
	"github.com/ark074/SecureWipe3/internal/signing"
)

func TestGenerateKeyPairRoundTrip(t *testing.T) {
	dir := t.TempDir()
	opts := genKeyOptions{
		Bits:    2048,
		KeyPath: filepath.Join(dir, "key.pem"),
		PubPath: filepath.Join(dir, "key.pub.pem"),
	}
	cmdCtx := &commandContext{Logger: slog.New(slog.NewTextHandler(os.Stderr, nil))}

	require.NoError(t, generateKeyPair(cmdCtx, opts))

	signer, err := signing.NewRSASignerFromFile(opts.KeyPath)
	require.NoError(t, err)

	canonicalBytes := []byte(`{"device":{"serial":"SN1"}}`)
	sig, err := signer.Sign(canonicalBytes)
	require.NoError(t, err)

	pubPEM, err := os.ReadFile(opts.PubPath)
	require.NoError(t, err)
	assert.NoError(t, signing.Verify(pubPEM, canonicalBytes, sig))

	// A second run must refuse to overwrite without -force.
	err = generateKeyPair(cmdCtx, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	opts.Force = true
	assert.NoError(t, generateKeyPair(cmdCtx, opts))
}

func TestPrintJobsTable(t *testing.T) {
	jobs := []*model.Receipt{
		{
			JobID:     "job-1",
			Status:    model.StatusCertificated,
			Method:    "purge",
			Device:    model.Device{Model: "/dev/sdb"},
			UpdatedAt: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		},
		{
			JobID:     "job-2",
			Status:    model.StatusCreated,
			Device:    model.Device{Serial: "SN-42"},
			UpdatedAt: time.Date(2026, 2, 3, 11, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printJobs(&buf, jobs))

	out := buf.String()
	assert.Contains(t, out, "JOB ID")
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "certificated")
	assert.Contains(t, out, "/dev/sdb")
	// Falls back to the serial when no model is recorded.
	assert.Contains(t, out, "SN-42")
}

func TestPayloadDigest(t *testing.T) {
	signedJSON := `{"device":{"serial":"SN1"},"method":"purge"}`
	receipt := &model.Receipt{JobID: "job-1", SignedJSON: signedJSON}

	digest, err := payloadDigest(receipt)
	require.NoError(t, err)

	want, _, err := canonical.SumSHA256(json.RawMessage(signedJSON))
	require.NoError(t, err)
	assert.Equal(t, want, digest)
	assert.Len(t, digest, 64)

	// A stored payload that is no longer in canonical form was altered after
	// signing and must be flagged.
	receipt.SignedJSON = `{"method":"purge","device":{"serial":"SN1"}} `
	_, err = payloadDigest(receipt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in canonical form")
}

func TestParseVerifyFlagsRequiresJob(t *testing.T) {
	_, err := parseVerifyFlags(nil)
	require.Error(t, err)

	opts, err := parseVerifyFlags([]string{"-job", "job-7", "-pub", "k.pem"})
	require.NoError(t, err)
	assert.Equal(t, "job-7", opts.JobID)
	assert.Equal(t, "k.pem", opts.PublicKey)
}
