/*
Package domain contains the core domain models of the flowgraph engine.

It defines the vocabulary shared by the engine and its callers: the shared
State of a run, the Node capability, run statuses and results, lifecycle
events and the error taxonomy. This package is kept pure and free of
external dependencies like I/O or persistence.

# Key Entities

  - State: the mutable map passed by reference through every node of a run.
  - Node: anything that reads and writes State (see NodeFunc).
  - OverrideKey: the reserved "_next_node" key used for per-step branching.
  - RunResult: final state, status, error and step count of a run.
  - StepLog: per-step snapshot and delta, useful to inspect partial progress.
*/
package domain
