package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidOverride is wrapped by NodeExecutionError when a node writes a
// value of an unsupported type to OverrideKey.
var ErrInvalidOverride = errors.New("override must be a node id string or nil")

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// UnknownNodeError reports a reference to a node id that is not registered.
// The id may come from the entry point, a default edge or an override.
type UnknownNodeError struct {
	NodeID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q", e.NodeID)
}

// DuplicateNodeError is raised at registration time.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q already registered", e.NodeID)
}

// NodeExecutionError wraps a failure raised by a node body.
type NodeExecutionError struct {
	NodeID string
	Step   int
	Cause  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed at step %d: %v", e.NodeID, e.Step, e.Cause)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Cause
}

// MaxStepsExceededError reports that the loop-safety ceiling was hit.
// The run result carries the state as of the last successful step.
type MaxStepsExceededError struct {
	MaxSteps   int
	Steps      int
	LastNodeID string
	NextNodeID string
}

func (e *MaxStepsExceededError) Error() string {
	return fmt.Sprintf("max steps exceeded: %d steps taken (limit %d), last node %q would continue to %q",
		e.Steps, e.MaxSteps, e.LastNodeID, e.NextNodeID)
}

// InvalidConfigurationError reports a malformed engine or graph setup.
type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

// Invalidf builds an InvalidConfigurationError.
func Invalidf(format string, args ...any) error {
	return &InvalidConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
