package config

import "strings"

// SMTPConfig contains certificate delivery configuration. An empty host
// disables delivery; send requests then fail with a delivery error.
type SMTPConfig struct {
	Host     string `env:"HOST"     envDefault:""`
	Port     int    `env:"PORT"     envDefault:"587"`
	Username string `env:"USERNAME" envDefault:""`
	Password string `env:"PASSWORD" envDefault:""`
	From     string `env:"FROM"     envDefault:"no-reply@securewipe.local"`
}

// Enabled reports whether SMTP delivery is configured.
func (c *SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}
