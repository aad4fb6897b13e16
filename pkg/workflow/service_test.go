package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/registry"
	"github.com/aretw0/flowgraph/pkg/tools/codereview"
	"github.com/aretw0/flowgraph/pkg/workflow"
)

func newService(t *testing.T, opts ...workflow.Option) *workflow.Service {
	t.Helper()
	tools := registry.NewRegistry()
	require.NoError(t, codereview.Register(tools))
	tools.MustRegister("incr", domain.NodeFunc(func(_ context.Context, s domain.State) (domain.State, error) {
		n, _ := s["n"].(int)
		s["n"] = n + 1
		return s, nil
	}))
	tools.MustRegister("fail", domain.NodeFunc(func(context.Context, domain.State) (domain.State, error) {
		return nil, errors.New("tool exploded")
	}))
	return workflow.NewService(tools, memory.NewStore(), opts...)
}

func loopDefinition(maxSteps int) graph.Definition {
	return graph.Definition{
		Name:      "loop",
		Nodes:     map[string]graph.NodeSpec{"a": {Tool: "incr"}},
		Edges:     map[string]string{"a": "a"},
		StartNode: "a",
		MaxSteps:  maxSteps,
	}
}

func TestService_CreateGraph(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, codereview.Definition())
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, codereview.GraphName, g.Name)
	assert.Equal(t, codereview.GraphMaxSteps, g.MaxSteps)

	got, err := svc.Graph(g.ID)
	require.NoError(t, err)
	assert.Same(t, g, got)
	assert.Len(t, svc.Graphs(), 1)
}

func TestService_CreateGraph_DefaultMaxSteps(t *testing.T) {
	svc := newService(t, workflow.WithDefaultMaxSteps(7))

	g, err := svc.CreateGraph(context.Background(), loopDefinition(0))
	require.NoError(t, err)
	assert.Equal(t, 7, g.MaxSteps)
	assert.Equal(t, 7, g.Engine().MaxSteps())
}

func TestService_CreateGraph_Invalid(t *testing.T) {
	svc := newService(t)

	tests := map[string]graph.Definition{
		"missing name": {Nodes: map[string]graph.NodeSpec{"a": {Tool: "incr"}}, StartNode: "a"},
		"no nodes":     {Name: "x", StartNode: "a"},
		"bad start":    {Name: "x", Nodes: map[string]graph.NodeSpec{"a": {Tool: "incr"}}, StartNode: "b"},
		"missing tool": {Name: "x", Nodes: map[string]graph.NodeSpec{"a": {}}, StartNode: "a"},
		"unknown tool": {Name: "x", Nodes: map[string]graph.NodeSpec{"a": {Tool: "nope"}}, StartNode: "a"},
		"negative max": {Name: "x", Nodes: map[string]graph.NodeSpec{"a": {Tool: "incr"}}, StartNode: "a", MaxSteps: -1},
		"bad schema": {
			Name: "x", Nodes: map[string]graph.NodeSpec{"a": {Tool: "incr"}}, StartNode: "a",
			StateSchema: map[string]any{"type": 12},
		},
	}
	for name, def := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateGraph(context.Background(), def)
			var cfgErr *domain.InvalidConfigurationError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
	assert.Empty(t, svc.Graphs())
}

func TestService_GraphNotFound(t *testing.T) {
	svc := newService(t)

	_, err := svc.Graph("missing")
	assert.ErrorIs(t, err, workflow.ErrGraphNotFound)

	_, err = svc.RunGraph(context.Background(), workflow.RunRequest{GraphID: "missing"})
	assert.ErrorIs(t, err, workflow.ErrGraphNotFound)
}

func TestService_RunGraph_CodeReview(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGraph(ctx, codereview.Definition())
	require.NoError(t, err)

	initial := map[string]any{"code": "def ok():\n    return 1\n"}
	rec, err := svc.RunGraph(ctx, workflow.RunRequest{GraphID: g.ID, InitialState: initial})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTerminated, rec.Status)
	assert.Equal(t, g.ID, rec.GraphID)
	assert.Equal(t, 4, rec.StepsTaken)
	assert.Len(t, rec.Log, 4)
	assert.Empty(t, rec.Error)
	assert.NotContains(t, initial, "functions", "caller state must not be mutated")

	stored, err := svc.GetRun(ctx, rec.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, stored.RunID)
	assert.Equal(t, domain.StatusTerminated, stored.Status)
}

func TestService_RunGraph_MaxStepsRecorded(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGraph(ctx, loopDefinition(5))
	require.NoError(t, err)

	rec, err := svc.RunGraph(ctx, workflow.RunRequest{GraphID: g.ID})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.Equal(t, "max_steps_exceeded", rec.ErrorKind)
	assert.Equal(t, 5, rec.StepsTaken)
	assert.Equal(t, 5, rec.FinalState["n"])
}

func TestService_RunGraph_NodeFailureRecorded(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGraph(ctx, graph.Definition{
		Name:      "broken",
		Nodes:     map[string]graph.NodeSpec{"a": {Tool: "incr"}, "b": {Tool: "fail"}},
		Edges:     map[string]string{"a": "b"},
		StartNode: "a",
	})
	require.NoError(t, err)

	rec, err := svc.RunGraph(ctx, workflow.RunRequest{GraphID: g.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.Equal(t, "node_execution", rec.ErrorKind)
	assert.Equal(t, "b", rec.CurrentNode)
	assert.Contains(t, rec.Error, "tool exploded")
}

func TestService_RunGraph_DanglingEdgeFailsAtRunTime(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGraph(ctx, graph.Definition{
		Name:      "dangling",
		Nodes:     map[string]graph.NodeSpec{"a": {Tool: "incr"}},
		Edges:     map[string]string{"a": "ghost"},
		StartNode: "a",
	})
	require.NoError(t, err)

	rec, err := svc.RunGraph(ctx, workflow.RunRequest{GraphID: g.ID})
	require.NoError(t, err)
	assert.Equal(t, "unknown_node", rec.ErrorKind)
	assert.Equal(t, "ghost", rec.CurrentNode)
}

func TestService_RunGraph_SchemaValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGraph(ctx, codereview.Definition())
	require.NoError(t, err)

	_, err = svc.RunGraph(ctx, workflow.RunRequest{GraphID: g.ID, InitialState: map[string]any{"threshold": 2}})
	var stateErr *workflow.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Len(t, stateErr.Problems, 2) // code missing, threshold > 1

	runs, err := svc.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestService_RunGraph_CustomRunID(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGraph(ctx, loopDefinition(3))
	require.NoError(t, err)

	rec, err := svc.RunGraph(ctx, workflow.RunRequest{GraphID: g.ID, RunID: "my-run"})
	require.NoError(t, err)
	assert.Equal(t, "my-run", rec.RunID)

	_, err = svc.RunGraph(ctx, workflow.RunRequest{GraphID: g.ID, RunID: "my-run"})
	assert.ErrorIs(t, err, workflow.ErrRunExists)
}

func TestService_GetRunNotFound(t *testing.T) {
	svc := newService(t)

	_, err := svc.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, workflow.ErrRunNotFound)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestService_ConcurrentRuns(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGraph(ctx, loopDefinition(4))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := svc.RunGraph(ctx, workflow.RunRequest{
				GraphID:      g.ID,
				RunID:        fmt.Sprintf("run-%d", i),
				InitialState: map[string]any{"n": i},
			})
			assert.NoError(t, err)
			assert.Equal(t, i+4, rec.FinalState["n"])
		}()
	}
	wg.Wait()

	runs, err := svc.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 20)
}

func TestService_Hooks(t *testing.T) {
	var mu sync.Mutex
	finished := map[string]domain.RunStatus{}
	svc := newService(t, workflow.WithHooks(func(g *workflow.Graph) domain.LifecycleHooks {
		return domain.LifecycleHooks{
			OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
				mu.Lock()
				defer mu.Unlock()
				finished[g.Name] = e.Status
			},
		}
	}))
	ctx := context.Background()
	g, err := svc.CreateGraph(ctx, loopDefinition(2))
	require.NoError(t, err)

	_, err = svc.RunGraph(ctx, workflow.RunRequest{GraphID: g.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, finished["loop"])
}
