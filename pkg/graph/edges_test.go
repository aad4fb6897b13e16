package graph_test

import (
	"testing"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nodeSet map[string]bool

func (s nodeSet) Has(name string) bool { return s[name] }

func TestEdgeTable_NextOf(t *testing.T) {
	table := graph.NewEdgeTable(nodeSet{"score": true, "refine": true, "done": true})
	table.SetDefault("score", "refine").SetDefault("refine", "score")

	next, err := table.NextOf("score")
	require.NoError(t, err)
	assert.Equal(t, "refine", next)

	t.Run("No Default Is Terminal", func(t *testing.T) {
		next, err := table.NextOf("done")
		require.NoError(t, err)
		assert.Equal(t, domain.Terminal, next)
	})

	t.Run("Unknown Source", func(t *testing.T) {
		_, err := table.NextOf("ghost")
		var unknown *domain.UnknownNodeError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "ghost", unknown.NodeID)
	})
}

func TestEdgeTable_LastWriteWins(t *testing.T) {
	table := graph.NewEdgeTable(nodeSet{"a": true})
	table.SetDefault("a", "b")
	table.SetDefault("a", "c")

	next, err := table.NextOf("a")
	require.NoError(t, err)
	assert.Equal(t, "c", next)
	assert.Equal(t, map[string]string{"a": "c"}, table.Edges())
}

func TestEdgeTable_TargetsNotValidatedOnInsert(t *testing.T) {
	table := graph.NewEdgeTable(nodeSet{"a": true})
	table.SetDefault("a", "not-registered")

	next, err := table.NextOf("a")
	require.NoError(t, err)
	assert.Equal(t, "not-registered", next)
}

func TestEdgeTable_EdgesIsACopy(t *testing.T) {
	table := graph.NewEdgeTable(nil)
	table.SetDefault("a", "b")

	edges := table.Edges()
	edges["a"] = "mutated"

	next, err := table.NextOf("a")
	require.NoError(t, err)
	assert.Equal(t, "b", next)
}
