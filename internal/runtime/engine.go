package runtime

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// NodeResolver resolves node names to implementations. *registry.Registry implements it.
type NodeResolver interface {
	Resolve(name string) (domain.Node, error)
	Has(name string) bool
}

// EdgeResolver returns the default successor of a node. *graph.EdgeTable implements it.
type EdgeResolver interface {
	NextOf(from string) (string, error)
}

// Engine is the core run loop.
// It is immutable after construction, so independent runs may execute
// concurrently as long as the registry and edges are not mutated.
type Engine struct {
	nodes       NodeResolver
	edges       EdgeResolver
	entryNodeID string
	maxSteps    int

	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	stepLog  bool
	newRunID func() string
}

// EngineOption defines a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithStepLog enables or disables per-step snapshots in RunResult.Log (enabled by default).
func WithStepLog(enabled bool) EngineOption {
	return func(e *Engine) {
		e.stepLog = enabled
	}
}

// WithRunIDGenerator replaces the default UUID run id generator.
func WithRunIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.newRunID = fn
		}
	}
}

// NewEngine creates an engine positioned at entryNodeID.
//
// maxSteps is mandatory: it bounds every run so that graphs whose overrides
// never reach an exit condition still terminate. It fails with
// *domain.InvalidConfigurationError if the entry node is not registered or
// maxSteps is not positive.
func NewEngine(nodes NodeResolver, edges EdgeResolver, entryNodeID string, maxSteps int, opts ...EngineOption) (*Engine, error) {
	if nodes == nil {
		return nil, domain.Invalidf("node registry is required")
	}
	if edges == nil {
		return nil, domain.Invalidf("edge table is required")
	}
	if entryNodeID == "" {
		return nil, domain.Invalidf("entry node is required")
	}
	if !nodes.Has(entryNodeID) {
		return nil, domain.Invalidf("entry node %q is not registered", entryNodeID)
	}
	if maxSteps < 1 {
		return nil, domain.Invalidf("max steps must be at least 1, got %d", maxSteps)
	}

	e := &Engine{
		nodes:       nodes,
		edges:       edges,
		entryNodeID: entryNodeID,
		maxSteps:    maxSteps,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		stepLog:     true,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EntryNodeID returns the node every run starts at.
func (e *Engine) EntryNodeID() string {
	return e.entryNodeID
}

// MaxSteps returns the loop-safety ceiling.
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// Run executes the graph from the entry node against a copy of initial.
// The result is never nil. The returned error is result.Err and is set
// exactly when the run ends in domain.StatusFailed.
func (e *Engine) Run(ctx context.Context, initial map[string]any) (*domain.RunResult, error) {
	return e.RunWithID(ctx, e.newRunID(), initial)
}

// RunWithID is like Run but uses the caller-provided run id.
func (e *Engine) RunWithID(ctx context.Context, runID string, initial map[string]any) (*domain.RunResult, error) {
	r := newRun(e, runID, domain.NewState(initial))
	res := r.execute(ctx)
	return res, res.Err
}
