package domain

import "time"

// RunRecord is the persisted outcome of a finished run.
// Records are written once, after the run leaves StatusRunning.
type RunRecord struct {
	RunID       string    `json:"run_id"`
	GraphID     string    `json:"graph_id,omitempty"`
	Status      RunStatus `json:"status"`
	CurrentNode string    `json:"current_node,omitempty"`
	FinalState  State     `json:"final_state"`
	StepsTaken  int       `json:"steps_taken"`
	Log         []StepLog `json:"log,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// NewRunRecord captures a run result for storage.
func NewRunRecord(graphID string, res *RunResult) *RunRecord {
	rec := &RunRecord{
		RunID:       res.RunID,
		GraphID:     graphID,
		Status:      res.Status,
		CurrentNode: res.CurrentNodeID,
		FinalState:  res.FinalState,
		StepsTaken:  res.StepsTaken,
		Log:         res.Log,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
		rec.ErrorKind = KindOf(res.Err)
	}
	return rec
}
