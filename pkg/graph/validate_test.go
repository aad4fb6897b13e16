package graph_test

import (
	"testing"

	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidGraph(t *testing.T) {
	def, err := graph.ParseDefinition([]byte(reviewYAML), "yaml")
	require.NoError(t, err)

	tools := nodeSet{"extract_functions": true, "check_complexity": true, "detect_issues": true, "suggest_improvements": true}
	assert.NoError(t, graph.Validate(def, tools))
}

func TestValidate_Problems(t *testing.T) {
	def := &graph.Definition{
		Name:      "broken",
		StartNode: "a",
		Nodes: map[string]graph.NodeSpec{
			"a":      {Tool: "known"},
			"b":      {Tool: "unknown_tool"},
			"island": {Tool: "known"},
		},
		Edges: map[string]string{
			"a":     "b",
			"b":     "ghost",
			"stray": "a",
		},
	}

	err := graph.Validate(def, nodeSet{"known": true})

	var vErr *graph.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Problems, "Node 'b' uses unregistered tool 'unknown_tool'")
	assert.Contains(t, vErr.Problems, "Missing node: 'ghost' (edge from 'b')")
	assert.Contains(t, vErr.Problems, "Edge source 'stray' is not a node")
	assert.Contains(t, vErr.Problems, "Unreachable node from 'a' via default edges: 'island'")
	assert.False(t, vErr.OnlyUnreachable())
	assert.Contains(t, err.Error(), "found 4 errors")
}

func TestValidate_OverrideOnlyTargetsAreWarnings(t *testing.T) {
	def := &graph.Definition{
		StartNode: "check",
		Nodes: map[string]graph.NodeSpec{
			"check":  {Tool: "t"},
			"repair": {Tool: "t"},
		},
	}

	err := graph.Validate(def, nil)

	var vErr *graph.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.True(t, vErr.OnlyUnreachable())
}
