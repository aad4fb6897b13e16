package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/flowgraph/internal/config"
	httpAdapter "github.com/aretw0/flowgraph/pkg/adapters/http"
	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/flowgraph/pkg/adapters/redis"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/observability"
	"github.com/aretw0/flowgraph/pkg/persistence/middleware"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/aretw0/flowgraph/pkg/registry"
	"github.com/aretw0/flowgraph/pkg/tools/codereview"
	"github.com/aretw0/flowgraph/pkg/tools/command"
	"github.com/aretw0/flowgraph/pkg/workflow"
)

// App holds the wired components shared by the serve, mcp and run commands.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Tools   *registry.Registry
	Store   ports.RunStore
	Service *workflow.Service
	Metrics *observability.Metrics
	Streams *httpAdapter.StreamManager

	// CodeReviewGraphID is set when the built-in review graph is preloaded.
	CodeReviewGraphID string

	closers []func() error
}

// NewApp builds the tool registry, the run store, the observability hooks
// and the workflow service described by cfg, then preloads graphs.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Tools:   registry.NewRegistry(),
		Streams: httpAdapter.NewStreamManager(logger),
	}
	if err := RegisterTools(app.Tools, cfg, logger); err != nil {
		return nil, err
	}

	store, locker, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	app.Store, err = app.secureStore(store)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	if cfg.Server.Metrics {
		app.Metrics = observability.NewMetrics()
	}

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithDefaultMaxSteps(cfg.Engine.DefaultMaxSteps),
		workflow.WithStepLog(cfg.Engine.StepLog),
		workflow.WithHooks(app.hooks),
	}
	if locker != nil {
		opts = append(opts, workflow.WithLocker(locker, cfg.Store.Redis.LockTTL))
	}
	app.Service = workflow.NewService(app.Tools, app.Store, opts...)

	if err := app.preload(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// RegisterTools adds the built-in review tools and the command tools
// declared in cfg.ToolsFile.
func RegisterTools(reg *registry.Registry, cfg config.Config, logger *slog.Logger) error {
	if err := codereview.Register(reg); err != nil {
		return err
	}
	if cfg.ToolsFile == "" {
		return nil
	}
	specs, err := command.LoadFile(cfg.ToolsFile)
	if err != nil {
		return err
	}
	err = command.Register(reg, specs,
		command.WithBaseDir(filepath.Dir(cfg.ToolsFile)),
		command.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.ToolsFile, err)
	}
	logger.Info("Loaded command tools", "count", len(specs), "path", cfg.ToolsFile)
	return nil
}

func (a *App) openStore(ctx context.Context) (ports.RunStore, ports.DistributedLocker, error) {
	switch a.Config.Store.Driver {
	case config.DriverRedis:
		rc := a.Config.Store.Redis
		store := redisAdapter.New(rc.Addr, rc.Password, rc.DB,
			redisAdapter.WithPrefix(rc.Prefix),
			redisAdapter.WithTTL(rc.TTL),
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", rc.Addr, err)
		}
		a.closers = append(a.closers, store.Close)
		a.Logger.Info("Using redis run store", "addr", rc.Addr, "prefix", rc.Prefix)
		return store, redisAdapter.NewLocker(store.Client(), rc.Prefix), nil
	default:
		a.Logger.Debug("Using in-memory run store")
		return memory.NewStore(), nil, nil
	}
}

// secureStore wraps the store with the configured redaction and encryption.
// Redaction runs first so masked values are what gets encrypted.
func (a *App) secureStore(store ports.RunStore) (ports.RunStore, error) {
	sc := a.Config.Store
	var mws []middleware.Middleware

	if len(sc.RedactKeys) > 0 {
		mw, err := middleware.NewPIIMiddleware(sc.RedactKeys)
		if err != nil {
			return nil, fmt.Errorf("store.redact_keys: %w", err)
		}
		mws = append(mws, mw)
	}

	if sc.EncryptionKey != "" {
		active, err := middleware.ParseKey(sc.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		cfg := middleware.EncryptionConfig{ActiveKey: active}
		for i, raw := range sc.FallbackKeys {
			key, err := middleware.ParseKey(raw)
			if err != nil {
				return nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
			}
			cfg.FallbackKeys = append(cfg.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(cfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
		a.Logger.Info("Run records are encrypted at rest", "fallback_keys", len(cfg.FallbackKeys))
	}

	return middleware.Chain(store, mws...), nil
}

// hooks builds the lifecycle hooks of each catalogued graph.
func (a *App) hooks(g *workflow.Graph) domain.LifecycleHooks {
	hooks := a.Streams.Hooks()
	if a.Metrics != nil {
		hooks = a.Metrics.Hooks(g.Name).Merge(hooks)
	}
	if a.Logger.Enabled(context.Background(), slog.LevelDebug) {
		hooks = hooks.Merge(observability.LoggingHooks(a.Logger.With("graph", g.Name)))
	}
	return hooks
}

func (a *App) preload(ctx context.Context) error {
	if a.Config.Server.CodeReview {
		g, err := a.Service.CreateGraph(ctx, codereview.Definition())
		if err != nil {
			return fmt.Errorf("failed to load code review graph: %w", err)
		}
		a.CodeReviewGraphID = g.ID
		a.Logger.Info("Loaded graph", "graph_id", g.ID, "name", g.Name)
	}

	for _, path := range a.Config.Graphs {
		def, err := graph.LoadDefinition(path)
		if err != nil {
			return err
		}
		g, err := a.Service.CreateGraph(ctx, *def)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		a.Logger.Info("Loaded graph", "graph_id", g.ID, "name", g.Name, "path", path)
	}
	return nil
}

// Close releases the store connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
