package certificate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ark074/SecureWipe3/internal/core"
	"github.com/ark074/SecureWipe3/internal/domain/model"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

func testPublisher(t *testing.T) *Publisher {
	t.Helper()
	pub, err := NewPublisher(PublisherOptions{
		OutputDir:       t.TempDir(),
		VerifierBaseURL: "https://verify.example.com/",
	})
	require.NoError(t, err)
	return pub
}

func testRequest() core.PublishRequest {
	payload := map[string]any{
		"job_id":   "job-1",
		"operator": "alex",
		"method":   "purge",
		"device":   map[string]any{"platform": "linux", "model": "X1", "serial": "SN9"},
		"evidence": []any{
			map[string]any{"cmd": "blkdiscard /dev/sda", "out": "discarded\nall blocks"},
		},
	}
	raw, _ := json.Marshal(payload)
	return core.PublishRequest{
		JobID:     "job-1",
		Payload:   raw,
		Signature: "deadbeef01",
		Algorithm: "rsa-pkcs1v15-sha256",
		Receipt:   &model.Receipt{JobID: "job-1", Email: "a@b.com"},
	}
}

func TestNewPublisher_RequiresOutputDir(t *testing.T) {
	_, err := NewPublisher(PublisherOptions{OutputDir: "  "})
	assert.Error(t, err)
}

func TestPublish_WritesArtifact(t *testing.T) {
	pub := testPublisher(t)

	locator, err := pub.Publish(context.Background(), testRequest())
	require.NoError(t, err)

	data, err := os.ReadFile(locator)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "job-1")
	assert.Contains(t, html, "alex")
	assert.Contains(t, html, "X1")
	assert.Contains(t, html, "SN9")
	assert.Contains(t, html, "purge")
	assert.Contains(t, html, "blkdiscard /dev/sda")
	assert.Contains(t, html, "deadbeef01")
	assert.Contains(t, html, "rsa-pkcs1v15-sha256")
	assert.Contains(t, html, "https://verify.example.com/receipts/job-1")
	assert.NotContains(t, html, "\ndiscarded\nall", "evidence output newlines should be flattened")
}

func TestPublish_LocatorStableForSameSignature(t *testing.T) {
	pub := testPublisher(t)
	req := testRequest()

	first, err := pub.Publish(context.Background(), req)
	require.NoError(t, err)
	second, err := pub.Publish(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second, "unchanged signature must republish to the same locator")
}

func TestPublish_LocatorChangesWithSignature(t *testing.T) {
	pub := testPublisher(t)
	req := testRequest()

	first, err := pub.Publish(context.Background(), req)
	require.NoError(t, err)

	req.Signature = "cafebabe02"
	second, err := pub.Publish(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "re-signed payload must get a distinct locator")

	// The prior artifact is left orphaned, never aliased.
	_, err = os.Stat(first)
	assert.NoError(t, err)
}

func TestPublish_RejectsEmptySignature(t *testing.T) {
	pub := testPublisher(t)
	req := testRequest()
	req.Signature = ""

	_, err := pub.Publish(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestPublish_NoEvidence(t *testing.T) {
	pub := testPublisher(t)
	req := testRequest()
	req.Payload = json.RawMessage(`{"method":"clear"}`)

	locator, err := pub.Publish(context.Background(), req)
	require.NoError(t, err)

	data, err := os.ReadFile(locator)
	require.NoError(t, err)
	assert.Contains(t, string(data), "No evidence captured.")
}

func TestPublish_SanitizesJobIDInLocator(t *testing.T) {
	pub := testPublisher(t)
	req := testRequest()
	req.JobID = "job/../1"

	locator, err := pub.Publish(context.Background(), req)
	require.NoError(t, err)
	base := filepath.Base(locator)
	assert.True(t, strings.HasPrefix(base, "securewipe_job----1_"), "got %q", base)
}
