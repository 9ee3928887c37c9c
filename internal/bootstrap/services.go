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
	"github.com/zecrep/aggregator/config"
	"github.com/zecrep/aggregator/internal/adapters/prover"
	"github.com/zecrep/aggregator/internal/core"
	"github.com/zecrep/aggregator/internal/data"
	"github.com/zecrep/aggregator/internal/data/memstore"
	"github.com/zecrep/aggregator/internal/observability/metrics"
	"github.com/zecrep/aggregator/internal/observability/statsd"
	"github.com/zecrep/aggregator/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *service.JobService
	Tiers         *service.TierService
	Webhooks      *service.WebhookService
	Processor     *service.ProcessorService
	Reaper        *service.ReaperService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Recorder backs GET /metrics and forwards to the StatsD sink when one
	// is configured. Always non-nil after NewServices.
	Recorder      *metrics.Recorder
	StatsdClient  *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// Sink returns the sink services should emit through.
//
//nolint:ireturn // the recorder is used through the Sink interface everywhere downstream.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.Recorder == nil {
		return nil
	}
	return o.Recorder
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB // nil when the memory backend is selected
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Jobs     core.JobRepository
	Tiers    core.TierRepository
	Webhooks core.WebhookRepository
	Cache    core.CacheRepository
}

// buildObservability configures the metrics recorder and optional StatsD push.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var statsdClient *statsd.Client
	var next statsd.Sink
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
			statsdClient = client
			next = client
		}
	}

	return ObservabilityContainer{
		Recorder:      metrics.NewRecorder(next),
		StatsdClient:  statsdClient,
		MetricsConfig: cfg.Metrics,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(cfg *config.AppConfig, db *sql.DB, redisClient redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	var cache core.CacheRepository
	if redisClient != nil {
		cache = data.NewRedisCacheRepo(redisClient)
	} else {
		cache = memstore.NewCache()
	}

	if cfg != nil && cfg.Storage.IsMemory() {
		jobs := memstore.New()
		tiers := memstore.NewTierStore()
		jobs.AttachTierStore(tiers)
		return &serviceRepositories{
			Jobs:     jobs,
			Tiers:    tiers,
			Webhooks: memstore.NewWebhookStore(),
			Cache:    cache,
		}
	}

	repoCfg := data.RepoConfig{Logger: logger}
	return &serviceRepositories{
		Jobs:     data.NewJobRepo(db, repoCfg),
		Tiers:    data.NewTierRepo(db, repoCfg),
		Webhooks: data.NewWebhookRepo(db, repoCfg),
		Cache:    cache,
	}
}

// DomainServicesOptions groups dependencies for domain service wiring.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) ServiceContainer {
	if opts == nil {
		return ServiceContainer{}
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	sink := opts.Observability.Sink()

	jobService := service.MustNewJobService(service.JobServiceOptions{
		Repo:    opts.Repos.Jobs,
		Logger:  svcLogger,
		Metrics: sink,
	})

	tierService := service.MustNewTierService(service.TierServiceOptions{
		Repo:   opts.Repos.Tiers,
		Cache:  opts.Repos.Cache,
		Config: service.TierServiceConfig{CacheTTL: appCfg.Cache.TierTTL},
		Logger: svcLogger,
	})

	webhookService := service.MustNewWebhookService(service.WebhookServiceOptions{
		Repo: opts.Repos.Webhooks,
		Config: service.WebhookServiceConfig{
			Timeout:       appCfg.Webhooks.Timeout,
			MaxConcurrent: appCfg.Webhooks.MaxConcurrent,
		},
		Logger:  svcLogger,
		Metrics: sink,
	})

	proverGateway := prover.NewGateway(prover.MustNewClient(prover.Config{
		BaseURL: appCfg.Prover.URL,
		Timeout: appCfg.Prover.Timeout,
	}))

	processorService := service.MustNewProcessorService(service.ProcessorServiceOptions{
		Jobs:     opts.Repos.Jobs,
		Prover:   proverGateway,
		Tiers:    tierService,
		Webhooks: webhookService,
		Config: service.ProcessorServiceConfig{
			Interval:  appCfg.Processor.Interval,
			BatchSize: appCfg.Processor.BatchSize,
		},
		Logger:  svcLogger,
		Metrics: sink,
	})

	reaperService := service.MustNewReaperService(service.ReaperServiceOptions{
		Repo:    opts.Repos.Jobs,
		Config:  appCfg.Reaper,
		Logger:  svcLogger,
		Metrics: sink,
	})

	return ServiceContainer{
		Jobs:          jobService,
		Tiers:         tierService,
		Webhooks:      webhookService,
		Processor:     processorService,
		Reaper:        reaperService,
		Observability: opts.Observability,
	}
}

// NewServices builds the full service container from shared infrastructure.
func NewServices(deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
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
	repos := buildRepositories(deps.Config, deps.DB, deps.RedisClient, logger)
	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
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

// startHTTPServerIfEnabled starts the HTTP server if enabled.
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
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

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

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		{
			mode: config.ServiceModeProcessor,
			name: "job processor",
			start: func(ctx context.Context) error {
				return deps.cfg.Services.Processor.Run(ctx)
			},
		},
		{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(ctx context.Context) error {
				return deps.cfg.Services.Reaper.Run(ctx)
			},
		},
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
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
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		webhooks:    cfg.Services.Webhooks,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := len(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	webhooks    *service.WebhookService
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
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(cfg.ctx, shutdownWaitTimeout)
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

	// Drain in-flight webhook deliveries last so events emitted by the final
	// processor tick still go out.
	if cfg.webhooks != nil {
		cfg.webhooks.Close()
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
