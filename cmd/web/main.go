// Package main provides the entry point for the recipe view web frontend.
// It serves HTMX pages and talks to the recipe API backend.
package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/alchemorsel/recipeview/internal/infrastructure/config"
	"github.com/alchemorsel/recipeview/internal/infrastructure/http/webserver"
	"github.com/alchemorsel/recipeview/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipeview/pkg/healthcheck"
	"github.com/alchemorsel/recipeview/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Configuration and logging
		fx.Provide(provideConfigAndLogger(os.Getenv("RECIPEVIEW_CONFIG_FILE"))),
		fx.Provide(func(l *logger.Logger) *zap.Logger { return l.Logger }),

		// Observability
		fx.Provide(monitoring.NewMetricsCollector),
		fx.Provide(provideTracing),

		// Backend client
		fx.Provide(func(cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector) *webserver.APIClient {
			return webserver.NewAPIClient(cfg, log, metrics)
		}),

		// Sessions and mounted views
		fx.Provide(webserver.NewSessionStore),
		fx.Provide(webserver.NewSessionManager),
		fx.Provide(func(cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector) *webserver.ViewRegistry {
			return webserver.NewViewRegistry(cfg.Session.ViewIdleTTL, log, metrics)
		}),

		// Health
		fx.Provide(provideHealthCheck),

		// Web server
		fx.Provide(webserver.NewWebServer),

		fx.Invoke(registerLifecycleHooks),
	)

	app.Run()
}

// provideConfigAndLogger loads the configuration and keeps the logger level in
// step with the config file while the process runs.
func provideConfigAndLogger(configPath string) func() (*config.Config, *logger.Logger, error) {
	return func() (*config.Config, *logger.Logger, error) {
		var current atomic.Pointer[logger.Logger]

		cfg, err := config.Watch(configPath, func(next *config.Config, err error) {
			log := current.Load()
			if log == nil {
				return
			}
			if err != nil {
				log.Warn("Ignoring invalid configuration change", zap.Error(err))
				return
			}
			log.SetLevel(next.App.LogLevel)
			log.Info("Configuration reloaded", zap.String("log_level", next.App.LogLevel))
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}

		log, err := logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create logger: %w", err)
		}
		current.Store(log)

		return cfg, log, nil
	}
}

func provideTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
	tracing, err := monitoring.NewTracingProvider(monitoring.TracingConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
		SamplingRate:   cfg.Monitoring.SamplingRate,
		Enabled:        cfg.Monitoring.EnableTracing,
	}, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: tracing.Shutdown,
	})
	return tracing, nil
}

// provideHealthCheck registers checks for the API backend, the session
// store and the mounted views.
func provideHealthCheck(
	cfg *config.Config,
	log *zap.Logger,
	apiClient *webserver.APIClient,
	sessions *webserver.SessionManager,
	views *webserver.ViewRegistry,
) *healthcheck.HealthCheck {
	hc := healthcheck.New(cfg.App.Version, log)
	hc.SetCacheTTL(cfg.Monitoring.HealthCacheTTL)

	hc.Register("api_backend", healthcheck.NewExternalServiceChecker(
		"api_backend", apiClient.BaseURL()+"/health", cfg.API.Timeout,
	))

	if store, ok := sessions.Store().(*webserver.RedisSessionStore); ok {
		hc.Register("redis", healthcheck.NewRedisChecker(store.Client()))
	}

	hc.Register("recipe_views", healthcheck.NewCustomChecker("recipe_views",
		func(ctx context.Context) (healthcheck.Status, string, interface{}) {
			return healthcheck.StatusHealthy, "View registry operational", map[string]interface{}{
				"mounted": views.Len(),
			}
		},
	))

	return hc
}

func registerLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	server *webserver.WebServer,
	sessions *webserver.SessionManager,
) {
	maintenance, stopMaintenance := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting recipe view web frontend",
				zap.String("address", cfg.ListenAddr()),
				zap.String("environment", cfg.App.Environment),
				zap.String("api_url", cfg.API.BaseURL),
			)

			go func() {
				if err := server.Start(); err != nil {
					log.Error("Web server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			go server.RunMaintenance(maintenance)

			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopMaintenance()
			err := server.Shutdown(ctx)
			if closeErr := sessions.Store().Close(); closeErr != nil {
				log.Warn("Failed to close session store", zap.Error(closeErr))
			}
			_ = log.Sync()
			return err
		},
	})
}
