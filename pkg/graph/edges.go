package graph

import (
	"maps"
	"sync"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// NodeSet reports which node names exist. *registry.Registry implements it.
type NodeSet interface {
	Has(name string) bool
}

// EdgeTable maps each node to its default successor.
//
// There is at most one default per source: setting it twice overwrites the
// first value (last write wins). Targets are not checked on insertion; an
// unregistered target fails the run when the engine resolves it.
type EdgeTable struct {
	mu       sync.RWMutex
	nodes    NodeSet
	defaults map[string]string
}

// NewEdgeTable creates an empty edge table bound to the given node set.
// With a nil node set every source name is accepted by NextOf.
func NewEdgeTable(nodes NodeSet) *EdgeTable {
	return &EdgeTable{
		nodes:    nodes,
		defaults: make(map[string]string),
	}
}

// SetDefault sets the default successor of from.
// Passing domain.Terminal records an explicit terminal node.
func (t *EdgeTable) SetDefault(from, to string) *EdgeTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.defaults[from] = to
	return t
}

// NextOf returns the default successor of from, or domain.Terminal if none
// is configured. An unknown from fails with *domain.UnknownNodeError.
func (t *EdgeTable) NextOf(from string) (string, error) {
	if t.nodes != nil && !t.nodes.Has(from) {
		return domain.Terminal, &domain.UnknownNodeError{NodeID: from}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.defaults[from], nil
}

// Edges returns a copy of the configured defaults, terminal entries included.
func (t *EdgeTable) Edges() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.defaults)
}
