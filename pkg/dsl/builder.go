package dsl

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/registry"
)

// Builder manages the graph construction.
// Errors are collected while adding nodes and reported by Build.
type Builder struct {
	order []string
	nodes map[string]*NodeBuilder
	errs  []error
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add declares a node. Adding the same id twice is reported by Build as a
// *domain.DuplicateNodeError; the returned builder still accepts edges so the
// chain is not broken.
func (b *Builder) Add(id string, node domain.Node) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		b.errs = append(b.errs, &domain.DuplicateNodeError{NodeID: id})
		return nb
	}
	nb := &NodeBuilder{id: id, node: node, builder: b}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// AddFunc declares a node backed by a plain function.
func (b *Builder) AddFunc(id string, fn func(ctx context.Context, state domain.State) (domain.State, error)) *NodeBuilder {
	var node domain.Node
	if fn != nil {
		node = domain.NodeFunc(fn)
	}
	return b.Add(id, node)
}

// Registry compiles the declared nodes into a registry.
func (b *Builder) Registry() (*registry.Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	reg := registry.NewRegistry()
	for _, id := range b.order {
		if err := reg.Register(id, b.nodes[id].node); err != nil {
			return nil, fmt.Errorf("failed to register node %q: %w", id, err)
		}
	}
	return reg, nil
}

// Build compiles the graph into an engine starting at entry.
func (b *Builder) Build(entry string, maxSteps int, opts ...flowgraph.Option) (*flowgraph.Engine, error) {
	reg, err := b.Registry()
	if err != nil {
		return nil, err
	}

	edges := graph.NewEdgeTable(reg)
	for _, id := range b.order {
		if nb := b.nodes[id]; nb.hasNext {
			edges.SetDefault(id, nb.next)
		}
	}

	return flowgraph.New(reg, edges, entry, maxSteps, opts...)
}
