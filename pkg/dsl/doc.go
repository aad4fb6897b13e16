/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing flowgraph engines.

It allows developers to declare nodes and their default edges with a fluent builder instead of
wiring a registry and an edge table by hand.

Example usage:

	b := dsl.New()

	b.AddFunc("extract", extract).Go("score")
	b.AddFunc("score", score).Go("report")
	b.AddFunc("refine", refine) // reached only through the "_next_node" override
	b.AddFunc("report", report).Terminal()

	engine, err := b.Build("extract", 50)
*/
package dsl
