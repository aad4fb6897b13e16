package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// Registry maps node names to their implementation.
// It is populated before runs start; the engine only reads from it.
// Registration is guarded by a lock so that deployments which register
// at runtime stay race-free.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]domain.Node
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]domain.Node),
	}
}

// Register adds a node to the registry.
// It fails with *domain.DuplicateNodeError if the name is already taken.
func (r *Registry) Register(name string, node domain.Node) error {
	if name == "" {
		return domain.Invalidf("node name must not be empty")
	}
	if node == nil {
		return domain.Invalidf("node %q has no implementation", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[name]; exists {
		return &domain.DuplicateNodeError{NodeID: name}
	}
	r.nodes[name] = node
	return nil
}

// RegisterFunc registers a plain function as a node.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, state domain.State) (domain.State, error)) error {
	if fn == nil {
		return domain.Invalidf("node %q has no implementation", name)
	}
	return r.Register(name, domain.NodeFunc(fn))
}

// MustRegister is like Register but panics on error.
// Intended for static setup code.
func (r *Registry) MustRegister(name string, node domain.Node) {
	if err := r.Register(name, node); err != nil {
		panic(err)
	}
}

// Resolve looks up a node by name.
// It fails with *domain.UnknownNodeError if the node is not registered.
func (r *Registry) Resolve(name string) (domain.Node, error) {
	r.mu.RLock()
	node, ok := r.nodes[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.UnknownNodeError{NodeID: name}
	}
	return node, nil
}

// Has reports whether a node with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[name]
	return ok
}

// Names returns the registered node names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
