package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ark074/SecureWipe3/config"
	httpx "github.com/ark074/SecureWipe3/internal/http"
	"github.com/ark074/SecureWipe3/internal/verifier"
)

// HTTPServerConfig contains configuration for the operator API server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the operator API server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Receipts: cfg.Services.Receipts,
		Auth:     cfg.Services.Auth,
		Limiter:  cfg.Services.Limiter,
		Store:    cfg.Services.StorePinger,
		Logger:   logger,
	})

	return startServer(serverParams{
		Logger:       logger,
		Handler:      handler,
		Name:         "operator API",
		Addr:         appCfg.HTTP.Addr,
		DefaultAddr:  ":8080",
		ReadTimeout:  appCfg.HTTP.ReadTimeout,
		WriteTimeout: appCfg.HTTP.WriteTimeout,
	})
}

// VerifierServerConfig contains configuration for the verifier server.
type VerifierServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartVerifierServer creates and starts the certificate verifier server.
// It listens separately from the operator API so certificates can be
// published without exposing the job endpoints.
func StartVerifierServer(cfg *VerifierServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := verifier.NewRouter(verifier.Options{
		Receipts: cfg.Services.Receipts,
		APIKey:   appCfg.Verifier.APIKey,
		Logger:   logger,
	})

	return startServer(serverParams{
		Logger:      logger,
		Handler:     handler,
		Name:        "verifier",
		Addr:        appCfg.Verifier.Addr,
		DefaultAddr: ":8081",
	})
}

type serverParams struct {
	Logger       *slog.Logger
	Handler      http.Handler
	Name         string
	Addr         string
	DefaultAddr  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func startServer(p serverParams) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := p.Addr
	if addr == "" {
		addr = p.DefaultAddr
	}
	readTimeout := p.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := p.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      p.Handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		p.Logger.Info("starting "+p.Name+" server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.Logger.Error(p.Name+" server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Name    string
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down an HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down " + cfg.Name + " server")
	}

	shutdownCtx, cancel := context.WithTimeout(cfg.Context, 10*time.Second)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info(cfg.Name + " server stopped")
	}

	return nil
}
