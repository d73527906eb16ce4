package bootstrap

import (
	"testing"

	"github.com/ark074/SecureWipe3/config"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "http only",
			modes: []config.ServiceMode{config.ServiceModeHTTP},
			want:  1,
		},
		{
			name:  "http and agent",
			modes: []config.ServiceMode{config.ServiceModeHTTP, config.ServiceModeAgent},
			want:  2,
		},
		{
			name: "all services enabled",
			modes: []config.ServiceMode{
				config.ServiceModeHTTP,
				config.ServiceModeAgent,
				config.ServiceModeVerifier,
			},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestErrorChannelBufferSize(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 1,
		},
		{
			name:  "http only",
			modes: []config.ServiceMode{config.ServiceModeHTTP},
			want:  2,
		},
		{
			name: "all services enabled",
			modes: []config.ServiceMode{
				config.ServiceModeHTTP,
				config.ServiceModeAgent,
				config.ServiceModeVerifier,
			},
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelBufferSize(enabled); got != tt.want {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestBuildReceiptStoreRequiresConnection(t *testing.T) {
	deps := &ServiceDeps{
		Config: &config.AppConfig{
			Store: config.StoreConfig{Backend: config.StoreBackendPostgres},
		},
	}
	if _, err := buildReceiptStore(deps, nil); err == nil {
		t.Fatal("expected error for postgres backend without a database connection")
	}

	deps.Config.Store.Backend = config.StoreBackendRedis
	if _, err := buildReceiptStore(deps, nil); err == nil {
		t.Fatal("expected error for redis backend without a redis connection")
	}

	deps.Config.Store.Backend = "cassandra"
	if _, err := buildReceiptStore(deps, nil); err == nil {
		t.Fatal("expected error for unknown store backend")
	}
}

func TestBuildSignerWithoutKeyPath(t *testing.T) {
	signer, err := buildSigner(config.SigningConfig{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signer != nil {
		t.Fatal("expected nil signer when no key path is configured")
	}
}

func TestBuildDelivererDisabled(t *testing.T) {
	deliverer, err := buildDeliverer(config.SMTPConfig{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deliverer != nil {
		t.Fatal("expected nil deliverer when smtp is not configured")
	}
}
