/*
Package graph holds the static structure of a flowgraph: the Edge Table of
default successors and the declarative Definition used to describe a graph
in YAML or JSON.

A Definition maps node ids to registered tool names, so the same tool can
back several nodes:

	name: code_review_mini_agent
	start_node: extract
	max_steps: 50
	nodes:
	  extract:    { tool_name: extract_functions }
	  complexity: { tool_name: check_complexity }
	edges:
	  extract: complexity
	  complexity: null

A null (or missing) edge means the node is terminal unless a node sets the
override key at runtime.
*/
package graph
