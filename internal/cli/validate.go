package cli

import (
	"errors"

	"github.com/aretw0/flowgraph/pkg/graph"
)

// ValidateFile loads a graph definition and checks it against the known
// tools. Nodes reachable only through runtime overrides are returned as
// warnings instead of failing validation.
func ValidateFile(path string, tools graph.NodeSet) (*graph.Definition, []string, error) {
	def, err := graph.LoadDefinition(path)
	if err != nil {
		return nil, nil, err
	}

	err = graph.Validate(def, tools)
	var verr *graph.ValidationError
	if errors.As(err, &verr) && verr.OnlyUnreachable() {
		return def, verr.Problems, nil
	}
	return def, nil, err
}
