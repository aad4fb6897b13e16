package codereview

import (
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/registry"
)

// Node ids of the default graph.
const (
	NodeExtract    = "extract"
	NodeComplexity = "complexity"
	NodeIssues     = "issues"
	NodeSuggest    = "suggest"
)

// GraphName is the name of the preloaded review graph.
const GraphName = "code_review_mini_agent"

// GraphMaxSteps leaves room for DefaultMaxIterations passes of four nodes.
const GraphMaxSteps = 50

// Tools returns the review tools keyed by tool name.
func Tools() map[string]domain.NodeFunc {
	return map[string]domain.NodeFunc{
		ToolExtractFunctions:    ExtractFunctions,
		ToolCheckComplexity:     CheckComplexity,
		ToolDetectIssues:        DetectIssues,
		ToolSuggestImprovements: SuggestImprovements,
	}
}

// Register adds the review tools to reg.
func Register(reg *registry.Registry) error {
	for _, name := range []string{ToolExtractFunctions, ToolCheckComplexity, ToolDetectIssues, ToolSuggestImprovements} {
		if err := reg.Register(name, Tools()[name]); err != nil {
			return err
		}
	}
	return nil
}

// Definition returns the review workflow:
// extract -> complexity -> issues -> suggest, with suggest looping back to
// extract through the override.
func Definition() graph.Definition {
	return graph.Definition{
		Name: GraphName,
		Nodes: map[string]graph.NodeSpec{
			NodeExtract:    {Tool: ToolExtractFunctions},
			NodeComplexity: {Tool: ToolCheckComplexity},
			NodeIssues:     {Tool: ToolDetectIssues},
			NodeSuggest:    {Tool: ToolSuggestImprovements},
		},
		Edges: map[string]string{
			NodeExtract:    NodeComplexity,
			NodeComplexity: NodeIssues,
			NodeIssues:     NodeSuggest,
			NodeSuggest:    domain.Terminal,
		},
		StartNode: NodeExtract,
		MaxSteps:  GraphMaxSteps,
		StateSchema: map[string]any{
			"type":     "object",
			"required": []any{"code"},
			"properties": map[string]any{
				"code":           map[string]any{"type": "string"},
				"threshold":      map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				"max_iterations": map[string]any{"type": "integer", "minimum": 1},
			},
		},
	}
}
