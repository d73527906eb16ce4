package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the operator API server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeAgent runs the polling wipe agent.
	ServiceModeAgent ServiceMode = "agent"
	// ServiceModeVerifier runs the certificate verifier server.
	ServiceModeVerifier ServiceMode = "verifier"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeAgent, ServiceModeVerifier}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeAgent, ServiceModeVerifier:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, agent, verifier)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// AgentConfig contains wipe agent service configuration.
type AgentConfig struct {
	// Interval is the agent poll interval.
	Interval time.Duration `env:"AGENT_POLL_INTERVAL" envDefault:"15s"`

	// DryRun suppresses destructive command execution. Default on: a wipe
	// must be armed explicitly with AGENT_DRY_RUN=false.
	DryRun bool `env:"AGENT_DRY_RUN" envDefault:"true"`

	// AutoSend delivers the certificate right after a successful report.
	AutoSend bool `env:"AGENT_AUTO_SEND" envDefault:"false"`

	// Concurrency bounds how many jobs from a poll batch run at once.
	Concurrency int `env:"AGENT_CONCURRENCY" envDefault:"1"`

	// Operator overrides the reported operator name for agent-driven wipes.
	Operator string `env:"AGENT_OPERATOR" envDefault:""`
}

// Sanitize applies guardrails to agent configuration values.
func (a *AgentConfig) Sanitize() {
	if a.Interval < time.Second {
		a.Interval = time.Second
	}
	if a.Concurrency < 1 {
		a.Concurrency = 1
	}
}

// VerifierConfig contains verifier service configuration.
type VerifierConfig struct {
	// Addr is the address to bind the verifier server to.
	Addr string `env:"VERIFIER_ADDR" envDefault:":8081"`

	// APIKey gates verifier access. Empty leaves the verifier open.
	APIKey string `env:"VERIFIER_API_KEY" envDefault:""`

	// BaseURL is the externally reachable verifier URL, embedded into
	// published certificates.
	BaseURL string `env:"VERIFIER_BASE_URL" envDefault:""`
}

// Sanitize applies guardrails to verifier configuration values.
func (v *VerifierConfig) Sanitize() {
	v.BaseURL = strings.TrimRight(strings.TrimSpace(v.BaseURL), "/")
}

// RateLimitConfig contains request rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	// Limit is the number of requests allowed per window per client.
	Limit int `env:"RATE_LIMIT_REQUESTS" envDefault:"30"`

	// Window is the rate limiting window.
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Sanitize applies guardrails to rate limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.Limit < 1 {
		r.Limit = 1
	}
	if r.Window < time.Second {
		r.Window = time.Second
	}
}
