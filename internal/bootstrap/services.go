package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ark074/SecureWipe3/config"
	"github.com/ark074/SecureWipe3/internal/adapters/redisstore"
	"github.com/ark074/SecureWipe3/internal/adapters/smtp"
	"github.com/ark074/SecureWipe3/internal/agent"
	"github.com/ark074/SecureWipe3/internal/certificate"
	"github.com/ark074/SecureWipe3/internal/core"
	"github.com/ark074/SecureWipe3/internal/data"
	httpx "github.com/ark074/SecureWipe3/internal/http"
	"github.com/ark074/SecureWipe3/internal/observability/statsd"
	"github.com/ark074/SecureWipe3/internal/ratelimit"
	"github.com/ark074/SecureWipe3/internal/service"
	"github.com/ark074/SecureWipe3/internal/signing"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Receipts *service.ReceiptService
	Auth     *service.AuthService
	// Store is the receipt repository backing the lifecycle service.
	Store core.ReceiptRepository
	// Lister feeds the polling agent.
	Lister core.ReceiptLister
	// StorePinger reports store reachability for readiness probes.
	StorePinger httpx.Pinger
	// Limiter throttles mutating API requests. Nil disables limiting.
	Limiter       ratelimit.Limiter
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// redisPinger adapts a redis client to the readiness Pinger port.
type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// receiptStore pairs the repository with the collaborators the store backend
// determines.
type receiptStore struct {
	Repo   core.ReceiptRepository
	Lister core.ReceiptLister
	Pinger httpx.Pinger
}

// buildReceiptStore selects the receipt store backend; no business rules here.
func buildReceiptStore(deps *ServiceDeps, logger *slog.Logger) (receiptStore, error) {
	backend := config.StoreBackendPostgres
	if deps.Config != nil {
		backend = deps.Config.Store.Backend
	}

	switch backend {
	case config.StoreBackendPostgres:
		if deps.DB == nil {
			return receiptStore{}, errors.New("postgres store backend requires a database connection")
		}
		repo := data.NewReceiptRepo(deps.DB, data.RepoConfig{Logger: logger})
		return receiptStore{Repo: repo, Lister: repo, Pinger: deps.DB}, nil
	case config.StoreBackendRedis:
		if deps.RedisClient == nil {
			return receiptStore{}, errors.New("redis store backend requires a redis connection")
		}
		store := redisstore.NewReceiptStore(deps.RedisClient, logger)
		return receiptStore{Repo: store, Lister: store, Pinger: redisPinger{client: deps.RedisClient}}, nil
	default:
		return receiptStore{}, fmt.Errorf("unknown store backend: %q", backend)
	}
}

// buildSigner loads the RSA signing key when one is configured. A missing
// configuration returns a nil signer; the lifecycle service then fails
// evidence reports with a key error instead of producing unsigned receipts.
func buildSigner(cfg config.SigningConfig, logger *slog.Logger) (core.Signer, error) {
	if cfg.KeyPath == "" {
		if logger != nil {
			logger.Warn("no signing key configured; evidence reports will fail until one is provided")
		}
		return nil, nil
	}
	signer, err := signing.NewRSASignerFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	return signer, nil
}

// buildDeliverer constructs the SMTP mailer when delivery is configured.
func buildDeliverer(cfg config.SMTPConfig, logger *slog.Logger) (core.Deliverer, error) {
	if !cfg.Enabled() {
		if logger != nil {
			logger.Info("smtp delivery not configured; certificate send will be unavailable")
		}
		return nil, nil
	}
	mailer, err := smtp.NewMailer(smtp.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("configure smtp mailer: %w", err)
	}
	return mailer, nil
}

func newReceiptService(deps *ServiceDeps, store receiptStore, observability ObservabilityContainer) (*service.ReceiptService, error) {
	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	signer, err := buildSigner(appCfg.Signing, deps.Logger)
	if err != nil {
		return nil, err
	}
	deliverer, err := buildDeliverer(appCfg.SMTP, deps.Logger)
	if err != nil {
		return nil, err
	}
	publisher, err := certificate.NewPublisher(certificate.PublisherOptions{
		OutputDir:       appCfg.Certificates.OutputDir,
		VerifierBaseURL: appCfg.Verifier.BaseURL,
		Logger:          deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("configure certificate publisher: %w", err)
	}

	var sink statsd.Sink
	if observability.MetricsSink != nil {
		sink = observability.MetricsSink
	}

	return service.NewReceiptService(service.ReceiptServiceOptions{
		Repo:           store.Repo,
		Publisher:      publisher,
		Signer:         signer,
		Deliverer:      deliverer,
		Logger:         deps.Logger,
		Metrics:        sink,
		SignTimeout:    appCfg.Signing.Timeout,
		PublishTimeout: appCfg.Certificates.PublishTimeout,
	})
}

func newAuthService(cfg config.AuthConfig, logger *slog.Logger) (*service.AuthService, error) {
	return service.NewAuthService(service.AuthServiceOptions{
		OperatorPIN: cfg.OperatorPIN,
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenTTL:    cfg.TokenTTL,
		Logger:      logger,
	})
}

func newRateLimiter(deps *ServiceDeps, logger *slog.Logger) ratelimit.Limiter {
	if deps.Config == nil || !deps.Config.RateLimit.Enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ratelimit.Pick(ctx, deps.RedisClient, ratelimit.Config{
		Limit:  deps.Config.RateLimit.Limit,
		Window: deps.Config.RateLimit.Window,
	}, logger)
}

// NewServices wires repositories, collaborators, and business services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)

	store, err := buildReceiptStore(deps, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	receipts, err := newReceiptService(deps, store, observability)
	if err != nil {
		return ServiceContainer{}, err
	}

	var authCfg config.AuthConfig
	if deps.Config != nil {
		authCfg = deps.Config.Auth
	}
	auth, err := newAuthService(authCfg, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	return ServiceContainer{
		Receipts:      receipts,
		Auth:          auth,
		Store:         store.Repo,
		Lister:        store.Lister,
		StorePinger:   store.Pinger,
		Limiter:       newRateLimiter(deps, logger),
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the operator API server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

// startVerifierServerIfEnabled starts the certificate verifier server if enabled.
func startVerifierServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeVerifier] {
		return nil
	}
	return StartVerifierServer(&VerifierServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				if deps.logger != nil {
					deps.logger.WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				} else {
					slog.Default().WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				}
			}
		}
	}()

	if deps.logger != nil {
		deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	} else {
		slog.Default().InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	}

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newAgentBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeAgent,
		name: "wipe agent",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			agentCfg := config.AgentConfig{}
			if deps.cfg.Config != nil {
				agentCfg = deps.cfg.Config.Agent
			}
			dryRun := agentCfg.DryRun
			runner, err := agent.NewRunner(agent.Options{
				Receipts:    deps.cfg.Services.Receipts,
				Lister:      deps.cfg.Services.Lister,
				Interval:    agentCfg.Interval,
				DryRun:      &dryRun,
				AutoSend:    agentCfg.AutoSend,
				Concurrency: agentCfg.Concurrency,
				Operator:    agentCfg.Operator,
				Logger:      deps.logger,
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newAgentBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer     *http.Server
	VerifierServer *http.Server
	Background     []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer:     startHTTPServerIfEnabled(deps),
		VerifierServer: startVerifierServerIfEnabled(deps),
		Background:     startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:            serviceCtx,
		cancel:         cancel,
		errCh:          errCh,
		httpServer:     result.HTTPServer,
		verifierServer: result.VerifierServer,
		logger:         logger,
		backgrounds:    result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx            context.Context
	cancel         context.CancelFunc
	errCh          <-chan error
	httpServer     *http.Server
	verifierServer *http.Server
	logger         *slog.Logger
	backgrounds    []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	for _, server := range []struct {
		name string
		srv  *http.Server
	}{
		{name: "operator API", srv: cfg.httpServer},
		{name: "verifier", srv: cfg.verifierServer},
	} {
		if server.srv == nil {
			continue
		}
		// The service context is already cancelled at this point; the shutdown
		// deadline has to come from a fresh context.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  server.srv,
			Name:    server.name,
			Logger:  cfg.logger,
		})
		cancel()
		if err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
