/*
Package ports defines the driven ports (interfaces) for the flowgraph services.

These interfaces decouple run orchestration from external implementations, allowing
the workflow service to work with various storage backends and lock providers.

# Key Interfaces

  - RunStore: Responsible for persisting and loading finished run records.
  - DistributedLocker: Provides distributed locking for handling concurrent access to one run ID.
*/
package ports
