package domain

import "context"

// Node is a unit of computation over the shared state.
//
// Apply may mutate state in place and return nil, or return a (possibly
// different) State which the engine then treats as authoritative.
// Nodes never depend on engine types; branching is expressed through
// OverrideKey in the state.
type Node interface {
	Apply(ctx context.Context, state State) (State, error)
}

// NodeFunc adapts an ordinary function to the Node interface.
type NodeFunc func(ctx context.Context, state State) (State, error)

// Apply calls f(ctx, state).
func (f NodeFunc) Apply(ctx context.Context, state State) (State, error) {
	return f(ctx, state)
}
