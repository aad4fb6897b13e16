package codereview_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/registry"
	"github.com/aretw0/flowgraph/pkg/tools/codereview"
)

const cleanCode = `def add(a, b):
    return a + b

def sub(a, b):
    return a - b
`

var messyCode = strings.Repeat("def f(x):\n    if x and y or z:\n        return x  # TODO tidy\n", 12) +
	"value = " + strings.Repeat("1 + ", 40) + "1\n"

func TestExtractFunctions(t *testing.T) {
	state := domain.State{"code": cleanCode + "func (s *Server) Run(ctx context.Context) error {\n"}

	out, err := codereview.ExtractFunctions(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "sub", "Run"}, out["functions"])
	assert.Equal(t, 1, out["iteration"])
	assert.Equal(t, []string{}, out["issues"])
	assert.Equal(t, 0.0, out["quality_score"])
}

func TestExtractFunctions_IterationFromJSON(t *testing.T) {
	state := domain.State{"code": "", "iteration": float64(2)}

	out, err := codereview.ExtractFunctions(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, 3, out["iteration"])
}

func TestCheckComplexity(t *testing.T) {
	state := domain.State{"code": "x = 1\n\nif a and b:\n    pass\n"}

	out, err := codereview.CheckComplexity(context.Background(), state)
	require.NoError(t, err)
	// 3 non-blank lines, one " and " token.
	assert.Equal(t, 5, out["complexity_score"])
}

func TestDetectIssues(t *testing.T) {
	code := "ok = 1\n# TODO: remove\n" + strings.Repeat("x", 101)
	state := domain.State{"code": code, "issues": []any{"stale"}}

	out, err := codereview.DetectIssues(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, []string{"Line 2: contains TODO", "Line 3: line too long"}, out["issues"])
	assert.Equal(t, 2, out["anomaly_count"])
}

func TestDetectIssues_CountsCharacters(t *testing.T) {
	code := strings.Repeat("é", 100) + "\r\n" +
		strings.Repeat("x", 100) + "\r\n" +
		strings.Repeat("ü", 101)
	out, err := codereview.DetectIssues(context.Background(), domain.State{"code": code})
	require.NoError(t, err)
	assert.Equal(t, []string{"Line 3: line too long"}, out["issues"])
}

func TestSuggestImprovements(t *testing.T) {
	t.Run("clean code terminates", func(t *testing.T) {
		state := domain.State{"complexity_score": 4, "issues": []string{}, "iteration": 1}

		out, err := codereview.SuggestImprovements(context.Background(), state)
		require.NoError(t, err)
		assert.Equal(t, []string{"Code looks reasonably clean."}, out["suggestions"])
		assert.Equal(t, 0.96, out["quality_score"])
		assert.Equal(t, domain.Terminal, out[domain.OverrideKey])
	})

	t.Run("low score loops", func(t *testing.T) {
		state := domain.State{"complexity_score": 80, "issues": []string{"a", "b"}, "iteration": 1}

		out, err := codereview.SuggestImprovements(context.Background(), state)
		require.NoError(t, err)
		assert.Len(t, out["suggestions"], 2)
		assert.Equal(t, 0.2, out["quality_score"])
		assert.Equal(t, codereview.NodeExtract, out[domain.OverrideKey])
	})

	t.Run("iteration cap stops", func(t *testing.T) {
		state := domain.State{"complexity_score": 80, "iteration": 5}

		out, err := codereview.SuggestImprovements(context.Background(), state)
		require.NoError(t, err)
		assert.Equal(t, domain.Terminal, out[domain.OverrideKey])
	})

	t.Run("custom threshold", func(t *testing.T) {
		state := domain.State{"complexity_score": 30, "iteration": 1, "threshold": 0.5}

		out, err := codereview.SuggestImprovements(context.Background(), state)
		require.NoError(t, err)
		assert.Equal(t, domain.Terminal, out[domain.OverrideKey])
	})
}

func newReviewEngine(t *testing.T) *flowgraph.Engine {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, codereview.Register(reg))

	def := codereview.Definition()
	nodes := registry.NewRegistry()
	for id, spec := range def.Nodes {
		tool, err := reg.Resolve(spec.Tool)
		require.NoError(t, err)
		nodes.MustRegister(id, tool)
	}

	eng, err := flowgraph.New(nodes, def.EdgeTable(), def.StartNode, def.MaxSteps)
	require.NoError(t, err)
	return eng
}

func TestReviewGraph_CleanCodeSinglePass(t *testing.T) {
	res, err := newReviewEngine(t).Run(context.Background(), map[string]any{"code": cleanCode})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTerminated, res.Status)
	assert.Equal(t, 4, res.StepsTaken)
	assert.Equal(t, 1, res.FinalState["iteration"])
	assert.GreaterOrEqual(t, res.FinalState["quality_score"].(float64), codereview.DefaultThreshold)
	assert.NotContains(t, res.FinalState, domain.OverrideKey)
}

func TestReviewGraph_MessyCodeHitsIterationCap(t *testing.T) {
	res, err := newReviewEngine(t).Run(context.Background(), map[string]any{"code": messyCode, "max_iterations": 3})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTerminated, res.Status)
	assert.Equal(t, 3, res.FinalState["iteration"])
	assert.Equal(t, 12, res.StepsTaken)
	assert.Less(t, res.FinalState["quality_score"].(float64), codereview.DefaultThreshold)
}
