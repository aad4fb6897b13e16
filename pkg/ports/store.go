package ports

import (
	"context"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// RunStore defines the interface for persisting finished runs.
// Only final records are stored; a run in progress lives in memory only.
type RunStore interface {
	// Save persists the record under its RunID, replacing any previous one.
	Save(ctx context.Context, rec *domain.RunRecord) error

	// Load retrieves the record for a given run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Delete removes the record for a given run ID.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of all stored runs.
	List(ctx context.Context) ([]string, error)
}
