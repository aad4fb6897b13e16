package dsl

import "github.com/aretw0/flowgraph/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	id      string
	node    domain.Node
	next    string
	hasNext bool
	builder *Builder
}

// Go sets the default edge to the target node. Calling it again replaces
// the previous target.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.next = target
	n.hasNext = true
	return n
}

// Terminal marks the node as a terminal node (end of the flow unless the
// node overrides it at run time).
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.next = domain.Terminal
	n.hasNext = false
	return n
}

// ID returns the node id.
func (n *NodeBuilder) ID() string {
	return n.id
}

// Builder returns the parent builder, so node declarations can be chained.
func (n *NodeBuilder) Builder() *Builder {
	return n.builder
}
