package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/aretw0/flowgraph/pkg/registry"
	"github.com/aretw0/flowgraph/pkg/runs"
)

// Graph is a catalogued graph definition bound to an engine.
type Graph struct {
	ID string `json:"graph_id"`
	graph.Definition
	CreatedAt time.Time `json:"created_at"`

	engine *flowgraph.Engine
	schema *gojsonschema.Schema
}

// Engine returns the engine executing the graph.
func (g *Graph) Engine() *flowgraph.Engine {
	return g.engine
}

// RunRequest asks the service to run a catalogued graph.
type RunRequest struct {
	GraphID      string         `json:"graph_id"`
	RunID        string         `json:"run_id,omitempty"`
	InitialState map[string]any `json:"initial_state"`
}

// HooksFunc builds lifecycle hooks for a graph, e.g. metrics labelled by graph name.
type HooksFunc func(g *Graph) domain.LifecycleHooks

// Service catalogs graph definitions, binds their nodes to registered tools
// and orchestrates runs, storing the record of every finished run.
type Service struct {
	tools *registry.Registry
	runs  *runs.Manager

	mu     sync.RWMutex
	graphs map[string]*Graph

	defaultMaxSteps int
	stepLog         bool
	hooks           HooksFunc
	logger          *slog.Logger
	newID           func() string
	runOpts         []runs.Option
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger. It is also handed to every engine.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultMaxSteps applies to definitions that leave max_steps unset.
func WithDefaultMaxSteps(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultMaxSteps = n
		}
	}
}

// WithStepLog toggles per-step snapshots in run records.
func WithStepLog(enabled bool) Option {
	return func(s *Service) {
		s.stepLog = enabled
	}
}

// WithHooks installs per-graph lifecycle hooks.
func WithHooks(fn HooksFunc) Option {
	return func(s *Service) {
		s.hooks = fn
	}
}

// WithLocker coordinates run IDs across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *Service) {
		s.runOpts = append(s.runOpts, runs.WithLocker(locker), runs.WithLockTTL(ttl))
	}
}

// WithIDGenerator replaces the UUID generator used for graph and run IDs.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService creates a service resolving node tools from tools and storing
// finished runs in store.
func NewService(tools *registry.Registry, store ports.RunStore, opts ...Option) *Service {
	s := &Service{
		tools:           tools,
		graphs:          make(map[string]*Graph),
		defaultMaxSteps: graph.DefaultMaxSteps,
		stepLog:         true,
		logger:          logging.NewNop(),
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runs = runs.NewManager(store, append([]runs.Option{runs.WithLogger(s.logger)}, s.runOpts...)...)
	return s
}

// Tools lists the registered tool names.
func (s *Service) Tools() []string {
	return s.tools.Names()
}

// CreateGraph validates a definition, binds each node to its tool and adds
// the graph to the catalog. Edge targets are not checked here: an edge to
// a missing node fails the run that follows it.
func (s *Service) CreateGraph(ctx context.Context, def graph.Definition) (*Graph, error) {
	def.Nodes = maps.Clone(def.Nodes)
	def.Edges = maps.Clone(def.Edges)
	if def.MaxSteps == 0 {
		def.MaxSteps = s.defaultMaxSteps
	}
	if def.Name == "" {
		return nil, domain.Invalidf("graph name is required")
	}
	if err := def.Check(); err != nil {
		return nil, err
	}

	nodes := registry.NewRegistry()
	for _, id := range def.NodeIDs() {
		tool, err := s.tools.Resolve(def.Nodes[id].Tool)
		if err != nil {
			return nil, domain.Invalidf("node %q uses unregistered tool %q", id, def.Nodes[id].Tool)
		}
		if err := nodes.Register(id, tool); err != nil {
			return nil, err
		}
	}

	schema, err := compileSchema(def.StateSchema)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		ID:         s.newID(),
		Definition: def,
		CreatedAt:  time.Now().UTC(),
		schema:     schema,
	}

	var hooks domain.LifecycleHooks
	if s.hooks != nil {
		hooks = s.hooks(g)
	}
	engine, err := flowgraph.New(nodes, g.Definition.EdgeTable(), def.StartNode, def.MaxSteps,
		flowgraph.WithName(def.Name),
		flowgraph.WithLogger(s.logger.With("graph_id", g.ID)),
		flowgraph.WithLifecycleHooks(hooks),
		flowgraph.WithStepLog(s.stepLog),
	)
	if err != nil {
		return nil, err
	}
	g.engine = engine

	s.mu.Lock()
	s.graphs[g.ID] = g
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "graph created", "graph_id", g.ID, "name", def.Name, "nodes", len(def.Nodes))
	return g, nil
}

// Graph returns a catalogued graph.
func (s *Service) Graph(id string) (*Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	return g, nil
}

// Graphs returns all catalogued graphs, oldest first.
func (s *Service) Graphs() []*Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Graph, 0, len(s.graphs))
	for _, g := range s.graphs {
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// RunGraph runs a catalogued graph to completion and stores its record.
//
// A run that ends in domain.StatusFailed is not an error of RunGraph: the
// record is returned with its Error and ErrorKind set. The returned error
// covers requests that could not run at all (ErrGraphNotFound,
// *InvalidStateError, ErrRunExists) and storage failures.
func (s *Service) RunGraph(ctx context.Context, req RunRequest) (*domain.RunRecord, error) {
	g, err := s.Graph(req.GraphID)
	if err != nil {
		return nil, err
	}
	if err := validateState(g.ID, g.schema, req.InitialState); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = s.newID()
	}

	return s.runs.Execute(ctx, runID, func(ctx context.Context) (*domain.RunRecord, error) {
		res, runErr := g.engine.RunWithID(ctx, runID, req.InitialState)
		if runErr != nil {
			s.logger.WarnContext(ctx, "run failed",
				"graph_id", g.ID,
				"run_id", runID,
				"kind", domain.KindOf(runErr),
				"err", runErr,
			)
		}
		return domain.NewRunRecord(g.ID, res), nil
	})
}

// GetRun returns the stored record of a run.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	rec, err := s.runs.Load(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	return rec, nil
}

// ListRuns returns every stored run record. Records that expire between
// listing and loading are skipped.
func (s *Service) ListRuns(ctx context.Context) ([]*domain.RunRecord, error) {
	ids, err := s.runs.List(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.RunRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.runs.Load(ctx, id)
		if errors.Is(err, domain.ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
