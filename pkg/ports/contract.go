package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/flowgraph/pkg/domain"
)

func contractRecord(runID string) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:       runID,
		GraphID:     "contract-graph",
		Status:      domain.StatusTerminated,
		CurrentNode: "",
		FinalState:  domain.State{"foo": "bar", "count": 42},
		StepsTaken:  3,
		Log: []domain.StepLog{
			{Step: 1, NodeID: "start", NextNodeID: "end", Snapshot: domain.State{"foo": "bar"}},
		},
		StartedAt:  time.Now().Add(-time.Second).UTC(),
		FinishedAt: time.Now().UTC(),
	}
}

// RunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		rec := contractRecord(runID)

		err := store.Save(ctx, rec)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.RunID, loaded.RunID)
		assert.Equal(t, rec.GraphID, loaded.GraphID)
		assert.Equal(t, rec.Status, loaded.Status)
		assert.Equal(t, rec.StepsTaken, loaded.StepsTaken)
		assert.Equal(t, "bar", loaded.FinalState["foo"])
		// JSON persistence may turn ints into float64; only check presence.
		assert.NotNil(t, loaded.FinalState["count"])
		require.Len(t, loaded.Log, 1)
		assert.Equal(t, "start", loaded.Log[0].NodeID)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		rec := contractRecord(runID)
		rec.Status = domain.StatusFailed
		rec.Error = "boom"
		require.NoError(t, store.Save(ctx, rec))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, loaded.Status)
		assert.Equal(t, "boom", loaded.Error)
	})

	t.Run("Loaded Copy Is Independent", func(t *testing.T) {
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		loaded.FinalState["foo"] = "mutated"

		again, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.FinalState["foo"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractRecord(runID)))

		err := store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, contractRecord(id1))
		_ = store.Save(ctx, contractRecord(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
