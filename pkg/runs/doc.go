/*
Package runs guards run IDs.

It serializes work on the same run ID with a local reference-counted mutex and, when
configured, a distributed lock, so that a state instance never belongs to two runs even
across replicas. Finished runs are saved through a ports.RunStore.
*/
package runs
