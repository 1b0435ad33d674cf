package domain

import "time"

// IngestRun statuses.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// IngestRun is one end-to-end ingestion, persisted for partial-failure
// visibility. Counters mirror EdgeStats plus the node total.
type IngestRun struct {
	ID         string
	Status     string
	Wipe       bool
	StartedAt  time.Time
	FinishedAt *time.Time
	Labels     int64
	Nodes      int64
	Edges      EdgeStats
	Error      *string
}
