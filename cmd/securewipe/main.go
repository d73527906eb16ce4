package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/ark074/SecureWipe3/config"
	"github.com/ark074/SecureWipe3/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	cfgPtr := &cfg

	if err = bootstrap.ValidateServiceConfig(cfgPtr); err != nil {
		return err
	}

	db, redisClient, err := initInfrastructure(ctx, cfgPtr, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}()
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	if db != nil {
		if cfg.Postgres.RunMigrationsOnStart {
			if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
				return err
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      cfgPtr,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:      cfgPtr,
		Services:    services,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	enabledServices := bootstrap.GetEnabledServices(cfg)
	logger.InfoContext(ctx, "starting securewipe service",
		"store_backend", cfg.Store.Backend,
		"dry_run", cfg.Agent.DryRun,
		"enabled_services", enabledServices)
}

// initInfrastructure connects the stores the configured backend needs. A
// redis-backed deployment runs without postgres entirely, and vice versa
// unless redis is enabled for the shared rate limiter.
//
//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	var db *sql.DB
	if cfg.Store.Backend == config.StoreBackendPostgres {
		conn, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
			DBConfig: cfg.Postgres,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		db = conn
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled || cfg.Store.Backend == config.StoreBackendRedis {
		client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			RedisConfig: cfg.Redis,
			Logger:      logger,
		})
		if err != nil {
			if db != nil {
				if cerr := db.Close(); cerr != nil {
					logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
					return nil, nil, fmt.Errorf("connect redis: %w", errors.Join(err, fmt.Errorf("close database: %w", cerr)))
				}
			}
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		redisClient = client
	}

	return db, redisClient, nil
}
