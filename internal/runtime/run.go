package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// run is the ephemeral state of a single execution: current node, state and
// step count. It lives for exactly one call to Engine.Run.
type run struct {
	engine *Engine
	id     string
	logger *slog.Logger

	state   domain.State
	current string
	steps   int

	result   *domain.RunResult
	lastSnap domain.State
}

func newRun(e *Engine, id string, state domain.State) *run {
	return &run{
		engine:  e,
		id:      id,
		logger:  e.logger.With("run_id", id),
		state:   state,
		current: e.entryNodeID,
		result: &domain.RunResult{
			RunID:     id,
			Status:    domain.StatusRunning,
			StartedAt: time.Now(),
		},
	}
}

func (r *run) execute(ctx context.Context) *domain.RunResult {
	e := r.engine
	e.emitRunStart(ctx, r)
	r.logger.DebugContext(ctx, "run started", "entry_node_id", e.entryNodeID, "max_steps", e.maxSteps)

	for {
		// 1. Resolve
		node, err := e.nodes.Resolve(r.current)
		if err != nil {
			return r.fail(ctx, err)
		}

		// 2. Apply
		step := r.steps + 1
		e.emitNodeEnter(ctx, r, step)
		started := time.Now()
		out, err := applyNode(ctx, node, r.state)
		elapsed := time.Since(started)
		if err != nil {
			e.emitNodeLeave(ctx, r, step, elapsed, true)
			return r.fail(ctx, &domain.NodeExecutionError{NodeID: r.current, Step: step, Cause: err})
		}
		if out != nil {
			r.state = out
		}
		r.steps = step

		// 3. Next node: override first, then default edge
		next, overridden, err := r.resolveNext()
		if err != nil {
			e.emitNodeLeave(ctx, r, step, elapsed, true)
			return r.fail(ctx, err)
		}
		e.emitNodeLeave(ctx, r, step, elapsed, false)
		r.record(step, next, overridden, elapsed)

		r.logger.DebugContext(ctx, "step completed",
			"step", step,
			"node_id", r.current,
			"next_node_id", next,
			"overridden", overridden,
		)

		// 4. Terminal
		if next == domain.Terminal {
			return r.terminate(ctx)
		}

		// 5. Loop-safety bound
		if r.steps >= e.maxSteps {
			last := r.current
			r.current = next
			return r.fail(ctx, &domain.MaxStepsExceededError{
				MaxSteps:   e.maxSteps,
				Steps:      r.steps,
				LastNodeID: last,
				NextNodeID: next,
			})
		}

		r.current = next
	}
}

// resolveNext pops the override key so it never outlives the step that set it.
func (r *run) resolveNext() (string, bool, error) {
	if raw, ok := r.state[domain.OverrideKey]; ok {
		delete(r.state, domain.OverrideKey)
		switch v := raw.(type) {
		case nil:
			return domain.Terminal, true, nil
		case string:
			return v, true, nil
		default:
			return domain.Terminal, true, &domain.NodeExecutionError{
				NodeID: r.current,
				Step:   r.steps,
				Cause:  fmt.Errorf("%w, got %T", domain.ErrInvalidOverride, raw),
			}
		}
	}

	next, err := r.engine.edges.NextOf(r.current)
	return next, false, err
}

func (r *run) record(step int, next string, overridden bool, elapsed time.Duration) {
	if !r.engine.stepLog {
		return
	}
	snap := r.state.Snapshot()
	r.result.Log = append(r.result.Log, domain.StepLog{
		Step:       step,
		NodeID:     r.current,
		NextNodeID: next,
		Overridden: overridden,
		Duration:   elapsed,
		Snapshot:   snap,
		Delta:      domain.Diff(r.lastSnap, snap),
	})
	r.lastSnap = snap
}

func (r *run) terminate(ctx context.Context) *domain.RunResult {
	r.result.Status = domain.StatusTerminated
	r.current = ""
	r.finish()
	r.logger.InfoContext(ctx, "run terminated", "steps", r.steps)
	r.engine.emitRunFinish(ctx, r)
	return r.result
}

func (r *run) fail(ctx context.Context, err error) *domain.RunResult {
	r.result.Status = domain.StatusFailed
	r.result.Err = err
	r.finish()
	r.logger.WarnContext(ctx, "run failed",
		"steps", r.steps,
		"node_id", r.current,
		"kind", domain.KindOf(err),
		"err", err,
	)
	r.engine.emitRunFinish(ctx, r)
	return r.result
}

func (r *run) finish() {
	r.result.FinalState = r.state
	r.result.StepsTaken = r.steps
	r.result.CurrentNodeID = r.current
	r.result.FinishedAt = time.Now()
}

// applyNode invokes the node, turning a panic into an error.
func applyNode(ctx context.Context, node domain.Node, state domain.State) (out domain.State, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return node.Apply(ctx, state)
}
