package config

import (
	"strings"
	"time"
)

// SigningConfig contains receipt signing configuration.
type SigningConfig struct {
	// KeyPath points at the PEM-encoded RSA private key. Empty leaves the
	// service unable to sign; evidence reports then fail with a key error
	// rather than producing unsigned receipts.
	KeyPath string `env:"SIGNING_KEY_PATH" envDefault:""`

	// Timeout bounds a single signing operation.
	Timeout time.Duration `env:"SIGNING_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to signing configuration values.
func (s *SigningConfig) Sanitize() {
	s.KeyPath = strings.TrimSpace(s.KeyPath)
	if s.Timeout <= 0 {
		s.Timeout = 10 * time.Second
	}
}

// CertificatesConfig contains certificate publishing configuration.
type CertificatesConfig struct {
	// OutputDir is where published certificate artifacts are written.
	OutputDir string `env:"CERTS_DIR" envDefault:"certs"`

	// PublishTimeout bounds a single publish operation.
	PublishTimeout time.Duration `env:"CERTS_PUBLISH_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to certificate configuration values.
func (c *CertificatesConfig) Sanitize() {
	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = "certs"
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 30 * time.Second
	}
}
