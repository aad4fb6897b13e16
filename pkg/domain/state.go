package domain

import "maps"

// OverrideKey is the reserved state key a node sets to choose the next node
// for a single transition, superseding the default edge.
const OverrideKey = "_next_node"

// Terminal is the "no next node" sentinel. It is returned by the edge table
// for nodes without a default successor and may be written to OverrideKey
// to end the run explicitly.
const Terminal = ""

// State is the mutable record shared by every node of a run.
// Exactly one State exists per run; nodes observe the cumulative effect of
// all prior nodes in the same run.
type State map[string]any

// NewState creates a state seeded with a shallow copy of initial.
// The caller's map is never shared with the run.
func NewState(initial map[string]any) State {
	s := make(State, len(initial))
	for k, v := range initial {
		s[k] = v
	}
	return s
}

// Snapshot returns a shallow copy of the state, safe to keep after the run
// continues mutating the original.
func (s State) Snapshot() State {
	if s == nil {
		return nil
	}
	return maps.Clone(s)
}

// SetNext records an override for the next transition.
func (s State) SetNext(nodeID string) {
	s[OverrideKey] = nodeID
}

// Stop requests termination after the current step.
func (s State) Stop() {
	s[OverrideKey] = Terminal
}
