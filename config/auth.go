package config

import (
	"strings"
	"time"
)

// AuthConfig groups operator authentication configuration. The operator API
// is gated by a shared PIN exchanged for a short-lived bearer token.
type AuthConfig struct {
	// OperatorPIN gates the operator API. Empty disables authentication,
	// which only makes sense in development.
	OperatorPIN string `env:"OPERATOR_PIN" envDefault:""`

	// JWTSecret signs issued bearer tokens. Required when OperatorPIN is set.
	JWTSecret string `env:"JWT_SECRET" envDefault:""`

	// TokenTTL bounds issued token lifetime.
	TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"8h"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	a.OperatorPIN = strings.TrimSpace(a.OperatorPIN)
	if a.TokenTTL <= 0 {
		a.TokenTTL = 8 * time.Hour
	}
}

// Enabled reports whether PIN authentication is configured.
func (a *AuthConfig) Enabled() bool {
	return a.OperatorPIN != ""
}
