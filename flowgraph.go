package flowgraph

import (
	"context"
	"io"
	"log/slog"

	"github.com/aretw0/flowgraph/internal/runtime"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/registry"
)

// Engine is the high-level entry point for the flowgraph library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime  *runtime.Engine
	registry *registry.Registry
	edges    *graph.EdgeTable

	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	stepLog  bool
	newRunID func() string

	Name string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithName labels the engine. The name is added to every log record.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// WithStepLog toggles per-step snapshots in RunResult.Log (default: on).
func WithStepLog(enabled bool) Option {
	return func(e *Engine) {
		e.stepLog = enabled
	}
}

// WithRunIDGenerator replaces the default UUID run ids.
func WithRunIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newRunID = fn
	}
}

// New builds an engine over a node registry and an edge table.
//
// entry must name a registered node and maxSteps must be at least 1, otherwise
// a *domain.InvalidConfigurationError is returned.
func New(reg *registry.Registry, edges *graph.EdgeTable, entry string, maxSteps int, opts ...Option) (*Engine, error) {
	eng := &Engine{
		registry: reg,
		edges:    edges,
		stepLog:  true,
	}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which would overwrite its default)
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("graph", eng.Name)
	}

	// A nil *Registry or *EdgeTable must reach the runtime as a nil interface.
	var nodes runtime.NodeResolver
	if reg != nil {
		nodes = reg
	}
	var table runtime.EdgeResolver
	if edges != nil {
		table = edges
	}

	rt, err := runtime.NewEngine(nodes, table, entry, maxSteps,
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithStepLog(eng.stepLog),
		runtime.WithRunIDGenerator(eng.newRunID),
	)
	if err != nil {
		return nil, err
	}
	eng.runtime = rt
	return eng, nil
}

// Run executes the graph from the entry node with a copy of initial as state.
// The result is always returned; err is non-nil exactly when the run failed.
func (e *Engine) Run(ctx context.Context, initial map[string]any) (*domain.RunResult, error) {
	return e.runtime.Run(ctx, initial)
}

// RunWithID is like Run but uses a caller-provided run id.
func (e *Engine) RunWithID(ctx context.Context, runID string, initial map[string]any) (*domain.RunResult, error) {
	return e.runtime.RunWithID(ctx, runID, initial)
}

// EntryNodeID returns the node every run starts at.
func (e *Engine) EntryNodeID() string {
	return e.runtime.EntryNodeID()
}

// MaxSteps returns the loop-safety ceiling.
func (e *Engine) MaxSteps() int {
	return e.runtime.MaxSteps()
}

// Inspect describes the wired graph for visualization or introspection tools.
// Node specs carry the node name as tool name, since a registry binds names
// directly to implementations.
func (e *Engine) Inspect() *graph.Definition {
	def := &graph.Definition{
		Name:      e.Name,
		Nodes:     make(map[string]graph.NodeSpec, e.registry.Len()),
		Edges:     e.edges.Edges(),
		StartNode: e.runtime.EntryNodeID(),
		MaxSteps:  e.runtime.MaxSteps(),
	}
	for _, name := range e.registry.Names() {
		def.Nodes[name] = graph.NodeSpec{Tool: name}
	}
	return def
}
