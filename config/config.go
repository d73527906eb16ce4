package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Operator PIN authentication
//   - database.go: Receipt store backends (PostgreSQL, Redis)
//   - http.go: HTTP server configuration
//   - signing.go: Signing key and certificate publishing
//   - delivery.go: SMTP certificate delivery
//   - services.go: Service mode, agent, verifier, rate limiting
type AppConfig struct {
	// IsDev controls development mode behavior (relaxed auth defaults, etc.)
	IsDev bool `env:"DEV" envDefault:"false"`

	// Store selects the receipt store backend.
	Store StoreConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Operator authentication configuration
	Auth AuthConfig

	// Signing and certificate publishing configuration
	Signing      SigningConfig
	Certificates CertificatesConfig

	// SMTP delivery configuration
	SMTP SMTPConfig `envPrefix:"SMTP_"`

	// Verifier service configuration
	Verifier VerifierConfig

	// Agent service configuration
	Agent AgentConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Auth.Sanitize()
	c.Signing.Sanitize()
	c.Certificates.Sanitize()
	c.Verifier.Sanitize()
	c.Agent.Sanitize()
	c.RateLimit.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsAgentEnabled returns true if the wipe agent service is enabled.
func (c *AppConfig) IsAgentEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeAgent]
}

// IsVerifierEnabled returns true if the verifier service is enabled.
func (c *AppConfig) IsVerifierEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeVerifier]
}
