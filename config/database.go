package config

import (
	"fmt"
	"strings"
)

// StoreBackend selects which receipt store implementation backs the service.
type StoreBackend string

const (
	// StoreBackendPostgres uses the PostgreSQL receipt repository.
	StoreBackendPostgres StoreBackend = "postgres"
	// StoreBackendRedis uses the Redis document store.
	StoreBackendRedis StoreBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreBackend.
func (s *StoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "postgres", "redis":
		*s = StoreBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreBackend: %q (valid options: postgres, redis)", v)
	}
}

// StoreConfig selects the receipt store backend.
type StoreConfig struct {
	Backend StoreBackend `env:"STORE_BACKEND" envDefault:"postgres"`
}

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"securewipe"`
	Password string `env:"PASSWORD" envDefault:"securewipe"`
	Name     string `env:"NAME"     envDefault:"securewipe"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// DSN renders the config as a connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig contains Redis configuration. Redis backs the optional receipt
// store and the shared rate limiter.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
	// Enabled controls whether a Redis client is created at all. The rate
	// limiter degrades to in-process limits when disabled.
	Enabled bool `env:"ENABLED" envDefault:"false"`
}
