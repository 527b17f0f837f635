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

	"github.com/assistly/llm-jobs/config"
	"github.com/assistly/llm-jobs/internal/adapters/sweeper"
	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/data"
	"github.com/assistly/llm-jobs/internal/observability/notify"
	"github.com/assistly/llm-jobs/internal/observability/notify/redispub"
	"github.com/assistly/llm-jobs/internal/observability/notify/slack"
	"github.com/assistly/llm-jobs/internal/observability/statsd"
	"github.com/assistly/llm-jobs/internal/provider"
	"github.com/assistly/llm-jobs/internal/service"
	"github.com/assistly/llm-jobs/internal/service/lifecyclenotifier"
	"github.com/assistly/llm-jobs/internal/webhook"
)

// ObservabilityContainer groups the metrics sink and lifecycle notifier
// shared by all services.
type ObservabilityContainer struct {
	MetricsSink       statsd.Sink
	LifecycleNotifier *lifecyclenotifier.Service
}

// ServiceContainer holds all wired application services.
type ServiceContainer struct {
	Store         core.JobStore
	Provider      provider.Client
	Jobs          *service.JobService
	Sweeper       *service.SweeperService
	Dispatcher    *webhook.Dispatcher
	Secrets       core.SecretSource
	Observability ObservabilityContainer
}

// ServiceDeps groups external dependencies needed to build services.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires the application services from shared infrastructure.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	obs := buildObservability(logger, cfg.Observability, deps.RedisClient)

	store, err := newJobStore(deps, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	providerClient, err := provider.NewHTTPClient(provider.Options{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire provider client: %w", err)
	}

	jobOpts := service.JobServiceOptions{
		Store:    store,
		Provider: providerClient,
		Logger:   logger,
		Metrics:  obs.MetricsSink,
	}
	// Assigning a nil *Service would hide the nil inside the interface value.
	if obs.LifecycleNotifier != nil {
		jobOpts.Notifier = obs.LifecycleNotifier
	}
	jobs, err := service.NewJobService(jobOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire job service: %w", err)
	}

	sweepSvc, err := service.NewSweeperService(service.SweeperServiceOptions{
		Store:   store,
		Config:  cfg.Sweeper,
		Logger:  logger,
		Metrics: obs.MetricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire sweeper service: %w", err)
	}

	dispatchOpts := webhook.DispatcherOptions{
		Store:      store,
		Provider:   providerClient,
		Verifier:   &webhook.Verifier{Tolerance: cfg.Webhook.Tolerance},
		Logger:     logger,
		Metrics:    obs.MetricsSink,
		OutputExpr: cfg.Provider.OutputExpr,
	}
	if obs.LifecycleNotifier != nil {
		dispatchOpts.Notifier = obs.LifecycleNotifier
	}
	dispatcher, err := webhook.NewDispatcher(dispatchOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire webhook dispatcher: %w", err)
	}

	secret := cfg.Webhook.Secret
	secrets := core.SecretSourceFunc(func(context.Context) (string, error) {
		return secret, nil
	})

	return ServiceContainer{
		Store:         store,
		Provider:      providerClient,
		Jobs:          jobs,
		Sweeper:       sweepSvc,
		Dispatcher:    dispatcher,
		Secrets:       secrets,
		Observability: obs,
	}, nil
}

// newJobStore selects the job store backend from configuration.
//
//nolint:ireturn // the driver is a runtime decision.
func newJobStore(deps *ServiceDeps, logger *slog.Logger) (core.JobStore, error) {
	cfg := deps.Config
	storeCfg := data.JobStoreConfig{
		RetentionDays: cfg.Store.RetentionDays,
		KeyPrefix:     cfg.Store.KeyPrefix,
		Logger:        logger,
	}

	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		if deps.RedisClient == nil {
			return nil, errors.New("redis store driver requires a redis client")
		}
		return data.NewRedisJobStore(deps.RedisClient, storeCfg), nil
	case config.StoreDriverPostgres:
		if deps.DB == nil {
			return nil, errors.New("postgres store driver requires a database connection")
		}
		return data.NewPostgresJobStore(deps.DB, storeCfg), nil
	case config.StoreDriverMemory:
		if !cfg.IsDev {
			return nil, errors.New("memory store driver is only available in dev mode")
		}
		logger.Warn("using in-memory job store; records are lost on restart")
		return data.NewMemoryJobStore(storeCfg), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}
}

func buildObservability(
	logger *slog.Logger,
	cfg config.ObservabilityConfig,
	redisClient redis.UniversalClient,
) ObservabilityContainer {
	container := ObservabilityContainer{}

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "llmjobs",
			Logger:  logger,
		})
		if err != nil {
			logger.Warn("statsd client unavailable; metrics disabled", "error", err)
		} else {
			container.MetricsSink = client
		}
	}

	var sinks []lifecyclenotifier.SinkRegistration

	if cfg.Notifications.Redis.Enabled && redisClient != nil {
		pub, err := redispub.NewPublisher(redispub.Config{
			Client:  redisClient,
			Channel: cfg.Notifications.Redis.Channel,
		})
		if err != nil {
			logger.Warn("redis lifecycle publisher unavailable", "error", err)
		} else {
			sinks = append(sinks, lifecyclenotifier.SinkRegistration{
				Name: "redis",
				Sink: pub,
			})
		}
	}

	if cfg.Notifications.Slack.Enabled {
		slackClient, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Notifications.Slack.WebhookURL,
			Channel:    cfg.Notifications.Slack.Channel,
			Username:   cfg.Notifications.Slack.Username,
			Timeout:    cfg.Notifications.Timeout,
			RetryLimit: cfg.Notifications.RetryLimit,
		})
		if err != nil {
			logger.Warn("slack lifecycle sink unavailable", "error", err)
		} else {
			// Slack alerts are for humans; only failures page the channel.
			sinks = append(sinks, lifecyclenotifier.SinkRegistration{
				Name:     "slack",
				Sink:     slackClient,
				Outcomes: []string{notify.OutcomeFailed},
			})
		}
	}

	if len(sinks) > 0 {
		container.LifecycleNotifier = lifecyclenotifier.NewService(lifecyclenotifier.Options{
			Logger: logger,
			Sinks:  sinks,
		})
	}

	return container
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
const shutdownWaitTimeout = 15 * time.Second

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, len(enabledServices)+1)

	var httpServer *http.Server
	if enabledServices[config.ServiceModeHTTP] {
		httpServer = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
	}

	var backgrounds []backgroundServiceHandle
	if enabledServices[config.ServiceModeSweeper] {
		handle, startErr := startSweeper(serviceCtx, cfg, logger, errCh)
		if startErr != nil {
			cancel()
			return startErr
		}
		backgrounds = append(backgrounds, handle)
	}

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  httpServer,
		logger:      logger,
		backgrounds: backgrounds,
	})
}

func startSweeper(
	ctx context.Context,
	cfg *ServiceOrchestrationConfig,
	logger *slog.Logger,
	errCh chan<- error,
) (backgroundServiceHandle, error) {
	runner, err := sweeper.NewRunner(sweeper.RunnerOptions{
		Store:   cfg.Services.Store,
		Config:  cfg.Config.Sweeper,
		Logger:  logger,
		Metrics: cfg.Services.Observability.MetricsSink,
	})
	if err != nil {
		return backgroundServiceHandle{}, fmt.Errorf("wire sweeper runner: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := runner.Run(ctx); runErr != nil {
			select {
			case errCh <- fmt.Errorf("sweeper failed: %w", runErr):
			case <-ctx.Done():
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", "sweeper")
	return backgroundServiceHandle{name: "sweeper", done: done}, nil
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
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
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
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
