package domain

import (
	"errors"
	"time"
)

// RunStatus is the position of a run in the engine state machine.
type RunStatus string

const (
	StatusRunning    RunStatus = "running"    // Steps are still being executed
	StatusTerminated RunStatus = "terminated" // Normal completion
	StatusFailed     RunStatus = "failed"     // Unrecoverable error
)

// StepLog records a single successful node invocation.
type StepLog struct {
	Step       int           `json:"step" yaml:"step"`
	NodeID     string        `json:"node_id" yaml:"node_id"`
	NextNodeID string        `json:"next_node_id,omitempty" yaml:"next_node_id,omitempty"`
	Overridden bool          `json:"overridden,omitempty" yaml:"overridden,omitempty"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration_ns"`

	// Snapshot is a shallow copy of the state right after the node returned,
	// with the override key already removed.
	Snapshot State `json:"state_snapshot" yaml:"state_snapshot"`

	// Delta holds the keys changed by this step (deleted keys map to nil).
	Delta map[string]any `json:"delta,omitempty" yaml:"delta,omitempty"`
}

// RunResult is what a run hands back to its caller.
type RunResult struct {
	RunID         string    `json:"run_id"`
	Status        RunStatus `json:"status"`
	FinalState    State     `json:"final_state"`
	Err           error     `json:"-"`
	StepsTaken    int       `json:"steps_taken"`
	CurrentNodeID string    `json:"current_node,omitempty"`
	Log           []StepLog `json:"log,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Failed reports whether the run ended in StatusFailed.
func (r *RunResult) Failed() bool {
	return r != nil && r.Status == StatusFailed
}

// ErrorKind classifies Err for transports that need a stable string.
func (r *RunResult) ErrorKind() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return KindOf(r.Err)
}

// KindOf maps an engine error to a stable identifier.
func KindOf(err error) string {
	var (
		unknown    *UnknownNodeError
		duplicate  *DuplicateNodeError
		execution  *NodeExecutionError
		maxSteps   *MaxStepsExceededError
		invalidCfg *InvalidConfigurationError
	)
	switch {
	case errors.As(err, &maxSteps):
		return "max_steps_exceeded"
	case errors.As(err, &execution):
		return "node_execution"
	case errors.As(err, &unknown):
		return "unknown_node"
	case errors.As(err, &duplicate):
		return "duplicate_node"
	case errors.As(err, &invalidCfg):
		return "invalid_configuration"
	default:
		return "internal"
	}
}
