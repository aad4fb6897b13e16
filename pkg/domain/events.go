package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart  EventType = "run_start"
	EventNodeEnter EventType = "node_enter"
	EventNodeLeave EventType = "node_leave"
	EventRunFinish EventType = "run_finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Step     int           `json:"step"`
	Duration time.Duration `json:"duration,omitempty"` // Set on leave
	IsError  bool          `json:"is_error,omitempty"`
}

// RunEvent represents the start or the end of a run.
type RunEvent struct {
	EventBase
	EntryNodeID string    `json:"entry_node_id"`
	Status      RunStatus `json:"status"`
	Steps       int       `json:"steps"`
	Err         error     `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any of them may be nil.
type LifecycleHooks struct {
	OnRunStart  func(context.Context, *RunEvent)
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
	OnRunFinish func(context.Context, *RunEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart:  chain(h.OnRunStart, other.OnRunStart),
		OnNodeEnter: chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave: chain(h.OnNodeLeave, other.OnNodeLeave),
		OnRunFinish: chain(h.OnRunFinish, other.OnRunFinish),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
