/*
Package flowgraph is a minimal graph-execution engine for building multi-step workflows,
such as agent pipelines or analysis loops, out of small named functions.

A workflow is a set of named nodes connected by a static table of default edges. Every node
reads and writes one shared, mutable state that lives for a single run. Branching and loops
are expressed by the state itself: a node that writes a node id to the reserved key
"_next_node" (domain.OverrideKey) chooses the next node for exactly one transition,
superseding the default edge.

# Concept

The engine core (registry, edge table, run loop) is pure and synchronous. Storage, HTTP, MCP
and CLI concerns live in adapters around it, the way a hexagonal architecture keeps a domain
free from its transports.

# Key Features

  - Deterministic Execution: the same nodes, edges and initial state always produce the same run.
  - State-Carried Branching: overrides replace conditional edges.
  - Loop Safety: every engine has a mandatory max-steps ceiling.
  - Typed Failures: unknown nodes, node errors and exhausted step budgets surface as distinct errors.

# Usage

	reg := registry.NewRegistry()
	reg.MustRegister("score", domain.NodeFunc(func(ctx context.Context, s domain.State) (domain.State, error) {
		if s["quality"].(float64) < 0.8 {
			s.SetNext("refine")
		}
		return s, nil
	}))
	// ... register "refine" and "report"

	edges := graph.NewEdgeTable(reg).
		SetDefault("refine", "score").
		SetDefault("score", "report")

	eng, err := flowgraph.New(reg, edges, "score", 10)
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Run(ctx, map[string]any{"quality": 0.5})
	if err != nil {
		log.Printf("run %s failed after %d steps: %v", res.RunID, res.StepsTaken, err)
	}
*/
package flowgraph
