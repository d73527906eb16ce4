// Package certificate renders signed wipe evidence into a human-readable
// certificate artifact and returns a locator for later retrieval.
package certificate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/ark074/SecureWipe3/internal/core"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// PublisherOptions groups dependencies for Publisher.
type PublisherOptions struct {
	OutputDir string // Required: directory artifacts are written to
	// VerifierBaseURL is embedded in the certificate as the verification
	// endpoint. Optional; a URN fallback is used when empty.
	VerifierBaseURL string
	Logger          *slog.Logger
	Evaluator       JMESPathEvaluator
}

// Publisher writes HTML certificate artifacts to a local directory.
//
// The locator is a function of (job_id, signature): republishing an
// unchanged signature returns the same path, a changed signature yields a
// distinct path and leaves the prior artifact orphaned.
type Publisher struct {
	outputDir   string
	verifierURL string
	logger      *slog.Logger
	jems        JMESPathEvaluator
}

// NewPublisher constructs a Publisher and ensures the output directory exists.
func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("OutputDir is required")
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create certificate dir: %w", err)
	}

	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "certificate_publisher")
	}

	return &Publisher{
		outputDir:   opts.OutputDir,
		verifierURL: strings.TrimRight(opts.VerifierBaseURL, "/"),
		logger:      logger,
		jems:        jems,
	}, nil
}

var _ core.CertificatePublisher = (*Publisher)(nil)

// Publish renders the certificate document and returns its locator.
func (p *Publisher) Publish(ctx context.Context, req core.PublishRequest) (string, error) {
	if req.Signature == "" {
		return "", apperrors.Validation("cannot publish a certificate without a signature")
	}

	view, err := p.buildView(req)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := certificateTemplate.Execute(&buf, view); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeCertificate, "render certificate")
	}

	locator := p.locator(req.JobID, req.Signature)
	if err := writeAtomic(locator, buf.Bytes()); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeCertificate, "write certificate")
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, "certificate published", "job_id", req.JobID, "path", locator)
	}
	return locator, nil
}

// locator derives the artifact path from the job id and a digest of the
// signature, so a re-signed payload never silently aliases old content.
func (p *Publisher) locator(jobID, signature string) string {
	sum := sha256.Sum256([]byte(signature))
	name := fmt.Sprintf("securewipe_%s_%s.html", sanitizeName(jobID), hex.EncodeToString(sum[:6]))
	return filepath.Join(p.outputDir, name)
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}

// writeAtomic writes via a temp file and rename so readers never observe a
// partially written artifact.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cert-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// evidenceSample is the first evidence entry extracted from the payload.
type evidenceSample struct {
	Cmd string
	Out string
}

// certificateView is the data handed to the HTML template.
type certificateView struct {
	JobID        string
	Operator     string
	Email        string
	Platform     string
	Model        string
	Serial       string
	Method       string
	NISTCategory string
	Evidence     *evidenceSample
	Signature    string
	Algorithm    string
	VerifyURL    string
}

const evidenceOutSample = 200

// buildView extracts the display fields from the signed payload with
// JMESPath expressions, mirroring the certificate layout fields.
func (p *Publisher) buildView(req core.PublishRequest) (*certificateView, error) {
	var payload any
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "decode signed payload")
	}

	view := &certificateView{
		JobID:        req.JobID,
		Operator:     p.searchString(payload, "operator"),
		Email:        p.searchString(payload, "email"),
		Platform:     p.searchString(payload, "device.platform"),
		Model:        p.searchString(payload, "device.model"),
		Serial:       p.searchString(payload, "device.serial"),
		Method:       p.searchString(payload, "method"),
		NISTCategory: p.searchString(payload, "nist_category"),
		Signature:    req.Signature,
		Algorithm:    req.Algorithm,
	}
	if req.Receipt != nil {
		if view.Operator == "" {
			view.Operator = req.Receipt.Operator
		}
		if view.Email == "" {
			view.Email = req.Receipt.Email
		}
		if view.Method == "" {
			view.Method = req.Receipt.Method
		}
		if view.Platform == "" {
			view.Platform = req.Receipt.Device.Platform
		}
		if view.Model == "" {
			view.Model = req.Receipt.Device.Model
		}
		if view.Serial == "" {
			view.Serial = req.Receipt.Device.Serial
		}
	}
	if view.Method == "" {
		view.Method = "auto"
	}
	if view.NISTCategory == "" {
		view.NISTCategory = "purge"
	}

	if cmd := p.searchString(payload, "evidence[0].cmd"); cmd != "" {
		out := p.searchString(payload, "evidence[0].out")
		out = strings.ReplaceAll(out, "\n", " ")
		if len(out) > evidenceOutSample {
			out = out[:evidenceOutSample]
		}
		view.Evidence = &evidenceSample{Cmd: cmd, Out: out}
	}

	if p.verifierURL != "" {
		view.VerifyURL = fmt.Sprintf("%s/receipts/%s", p.verifierURL, req.JobID)
	} else {
		view.VerifyURL = "urn:securewipe:" + req.JobID
	}
	return view, nil
}

func (p *Publisher) searchString(payload any, expr string) string {
	v, err := p.jems.Evaluate(expr, payload)
	if err != nil || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
