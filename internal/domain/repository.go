package domain

// RunRepository defines persistence for album runs and their per-resource
// outcomes. Server mode uses it as the work queue and reporting store.
type RunRepository interface {
	// CreateRun persists a new run.
	CreateRun(run *AlbumRun) error

	// UpdateRun updates an existing run.
	UpdateRun(run *AlbumRun) error

	// FindRun finds a run by ID.
	FindRun(id string) (*AlbumRun, error)

	// FindRuns finds all runs, newest first. An empty status matches all.
	FindRuns(status RunStatus) ([]*AlbumRun, error)

	// FindPendingRuns finds queued runs, oldest first.
	FindPendingRuns() ([]*AlbumRun, error)

	// RecordOutcome persists one resource outcome.
	RecordOutcome(outcome *ResourceOutcome) error

	// FindOutcomes lists the outcomes recorded for a run.
	FindOutcomes(runID string) ([]*ResourceOutcome, error)

	// Stats returns aggregate run statistics.
	Stats() (*RunStatsReport, error)
}

// RunStatsReport aggregates run counts for the stats endpoint.
type RunStatsReport struct {
	Total      int64 `json:"total"`
	Queued     int64 `json:"queued"`
	Running    int64 `json:"running"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Downloaded int64 `json:"downloaded"`
	Bytes      int64 `json:"bytes"`
}
