package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/http"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/policy"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/shutdown"
)

// Version is overridden at link time.
var Version = "dev"

const closeTimeout = 10 * time.Second

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Policy   *policy.Store
	Metrics  *observability.Metrics
	Server   *http.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// NewLogger builds the process logger from LOG_MODE.
func NewLogger() (*logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func New(ctx context.Context) (*App, error) {
	log, err := NewLogger()
	if err != nil {
		return nil, err
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	a, err := NewWithConfig(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

// NewWithConfig wires the full dependency graph without starting background work.
func NewWithConfig(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	store, err := policy.NewStore(cfg.PolicyPath, log)
	if err != nil {
		return nil, fmt.Errorf("init policy: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		return nil, err
	}

	metrics := observability.Init(log)
	otelShutdown := observability.InitTracing(ctx, log, observability.TracingConfigFromEnv(cfg.ServiceName, cfg.Environment, Version))

	reposet := wireRepos(clients.DB, log)
	serviceset := wireServices(log, cfg, clients, reposet, store, metrics)
	handlerset := wireHandlers(log, clients, serviceset)
	middleware := wireMiddleware(log, cfg, serviceset)
	server := wireServer(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Policy:       store,
		Metrics:      metrics,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background work: metric collectors, the policy watcher and the
// profile change watcher.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		a.Metrics.StartDBCollector(ctx, a.Log, a.Clients.DB)
		if a.Clients.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
		}
	}
	if a.Cfg.PolicyWatch && a.Cfg.PolicyPath != "" {
		a.Policy.OnChange(func(doc policy.Document) {
			a.Log.Info("policy reloaded", "expected_agents", len(doc.Reconcile.ExpectedAgents))
		})
		if err := a.Policy.Watch(ctx); err != nil {
			cancel()
			return err
		}
	}
	if err := a.Services.Watcher.Start(ctx); err != nil {
		cancel()
		return err
	}
	return nil
}

// Run starts background work and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Server.Run(ctx, ":"+a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if err := shutdown.Drain(context.Background(), closeTimeout,
		shutdown.Step{Name: "tracing", Fn: a.otelShutdown},
		shutdown.Step{Name: "clients", Fn: a.Clients.Close},
	); err != nil && a.Log != nil {
		a.Log.Warn("shutdown incomplete", "error", err)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
