/*
Package observability provides tools for monitoring the flowgraph engine.

It turns engine lifecycle hooks into prometheus metrics and structured log records.
Hooks from both sources can be combined with domain.LifecycleHooks.Merge.
*/
package observability
