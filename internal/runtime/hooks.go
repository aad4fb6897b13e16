package runtime

import (
	"context"
	"time"

	"github.com/aretw0/flowgraph/pkg/domain"
)

func (e *Engine) emitRunStart(ctx context.Context, r *run) {
	if e.hooks.OnRunStart == nil {
		return
	}
	e.hooks.OnRunStart(ctx, &domain.RunEvent{
		EventBase:   domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunStart, RunID: r.id},
		EntryNodeID: e.entryNodeID,
		Status:      domain.StatusRunning,
	})
}

func (e *Engine) emitRunFinish(ctx context.Context, r *run) {
	if e.hooks.OnRunFinish == nil {
		return
	}
	e.hooks.OnRunFinish(ctx, &domain.RunEvent{
		EventBase:   domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunFinish, RunID: r.id},
		EntryNodeID: e.entryNodeID,
		Status:      r.result.Status,
		Steps:       r.result.StepsTaken,
		Err:         r.result.Err,
	})
}

func (e *Engine) emitNodeEnter(ctx context.Context, r *run, step int) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeEnter, RunID: r.id},
		NodeID:    r.current,
		Step:      step,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, r *run, step int, elapsed time.Duration, isError bool) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeLeave, RunID: r.id},
		NodeID:    r.current,
		Step:      step,
		Duration:  elapsed,
		IsError:   isError,
	})
}
