package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// LoggingHooks returns lifecycle hooks writing one structured record per event.
// Node events are logged at debug level, run completion at info or warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "run_start", "run_id", e.RunID, "entry_node_id", e.EntryNodeID)
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "run_id", e.RunID, "node_id", e.NodeID, "step", e.Step)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave",
				"run_id", e.RunID,
				"node_id", e.NodeID,
				"step", e.Step,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "run_finish", "run_id", e.RunID, "status", e.Status, "steps", e.Steps, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "run_finish", "run_id", e.RunID, "status", e.Status, "steps", e.Steps)
		},
	}
}
