/*
Package workflow turns declarative graph definitions into runnable engines.

A Service holds a catalog of graphs whose nodes name pre-registered tools, validates
initial states against an optional JSON Schema, runs graphs to completion and stores
one record per finished run through a ports.RunStore.
*/
package workflow
