package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle of a queued album run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// AlbumRun is the persisted record of one album task, used by server mode
// for queueing and reporting. The per-resource dedup memory lives in the
// Ledger, not here.
type AlbumRun struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	URL           string    `json:"url" gorm:"not null"`
	OutputDir     string    `json:"output_dir"`
	Status        RunStatus `json:"status" gorm:"not null;index"`
	AlbumName     string    `json:"album_name,omitempty"`
	Found         int       `json:"found"`
	Downloaded    int       `json:"downloaded"`
	SkippedDone   int       `json:"skipped_done"`
	SkippedFailed int       `json:"skipped_failed"`
	Failed        int       `json:"failed"`
	Bytes         int64     `json:"bytes"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewAlbumRun creates a queued run for an album URL.
func NewAlbumRun(url, outputDir string) *AlbumRun {
	return &AlbumRun{
		ID:        uuid.New().String(),
		URL:       url,
		OutputDir: outputDir,
		Status:    RunQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// MarkRunning marks the run as in progress.
func (r *AlbumRun) MarkRunning() {
	r.Status = RunRunning
	now := time.Now()
	r.StartedAt = &now
	r.UpdatedAt = now
}

// MarkCompleted records the final stats on a successful run.
func (r *AlbumRun) MarkCompleted(stats TaskStats) {
	r.Status = RunCompleted
	r.Found = stats.Found
	r.Downloaded = stats.Downloaded
	r.SkippedDone = stats.SkippedDone
	r.SkippedFailed = stats.SkippedFailed
	r.Failed = stats.Failed
	r.Bytes = stats.Bytes
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// MarkFailed marks the run as failed with the cause.
func (r *AlbumRun) MarkFailed(err error) {
	r.Status = RunFailed
	r.ErrorMessage = err.Error()
	r.UpdatedAt = time.Now()
}

// IsTerminal reports whether the run reached a final state.
func (r *AlbumRun) IsTerminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}

// ResourceOutcome is the persisted per-resource result of a run, kept for
// reporting through the API.
type ResourceOutcome struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID     string    `json:"run_id" gorm:"index"`
	Key       string    `json:"key" gorm:"not null"`
	Status    string    `json:"status" gorm:"not null"`
	FileName  string    `json:"file_name,omitempty"`
	Bytes     int64     `json:"bytes"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
