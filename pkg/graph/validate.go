package graph

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError lists every problem found in a definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("found %d errors:\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}

// Validate checks the definition for consistency: the structural checks of
// Check, edges whose source or target is not a node, and nodes that cannot
// be reached from the start node through default edges.
//
// Nodes that are only reachable through runtime overrides are reported as
// unreachable; callers that rely on overrides should treat that problem as
// a warning. knownTools, if not nil, is used to flag unregistered tools.
func Validate(def *Definition, knownTools NodeSet) error {
	if err := def.Check(); err != nil {
		return err
	}

	var problems []string

	for _, id := range def.NodeIDs() {
		if knownTools != nil && !knownTools.Has(def.Nodes[id].Tool) {
			problems = append(problems, fmt.Sprintf("Node '%s' uses unregistered tool '%s'", id, def.Nodes[id].Tool))
		}
	}

	for _, from := range sortedKeys(def.Edges) {
		to := def.Edges[from]
		if !def.Has(from) {
			problems = append(problems, fmt.Sprintf("Edge source '%s' is not a node", from))
		}
		if to != "" && !def.Has(to) {
			problems = append(problems, fmt.Sprintf("Missing node: '%s' (edge from '%s')", to, from))
		}
	}

	// Crawler
	visited := map[string]bool{}
	queue := []string{def.StartNode}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] || !def.Has(current) {
			continue
		}
		visited[current] = true
		if next := def.Edges[current]; next != "" && !visited[next] {
			queue = append(queue, next)
		}
	}
	for _, id := range def.NodeIDs() {
		if !visited[id] {
			problems = append(problems, fmt.Sprintf("Unreachable node from '%s' via default edges: '%s'", def.StartNode, id))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// OnlyUnreachable reports whether every problem is a reachability warning.
func (e *ValidationError) OnlyUnreachable() bool {
	for _, p := range e.Problems {
		if !strings.HasPrefix(p, "Unreachable node") {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
