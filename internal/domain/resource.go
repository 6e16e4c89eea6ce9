package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceReference is a raw, site-encoded pointer to a resource as it was
// found in album page markup. It is immutable once produced by an adapter.
type ResourceReference struct {
	// Raw is the reference exactly as extracted (an href value, token, or
	// absolute URL depending on the site).
	Raw string
	// PageURL is the canonical resource page URL. It is stable across runs
	// and serves as the ledger key.
	PageURL string
	// Host identifies the site adapter that produced the reference.
	Host string
}

// Key returns the ledger key for the reference.
func (r ResourceReference) Key() string {
	return r.PageURL
}

// AlbumInfo is the page-level metadata an adapter discovers while resolving
// an album.
type AlbumInfo struct {
	// Name is the album name as found on the page, already sanitized.
	// Empty when the page exposes none.
	Name string
	// Found is the number of references discovered.
	Found int
}

// AlbumTask is one unit of orchestrator work: a source URL plus where its
// resources should land.
type AlbumTask struct {
	ID        string
	URL       string
	OutputDir string
	CreatedAt time.Time
}

// NewAlbumTask creates a task for a single input URL.
func NewAlbumTask(url, outputDir string) AlbumTask {
	return AlbumTask{
		ID:        uuid.New().String(),
		URL:       url,
		OutputDir: outputDir,
		CreatedAt: time.Now(),
	}
}

// TaskStats aggregates the outcome counts for one task or a whole run.
type TaskStats struct {
	Found         int
	Downloaded    int
	SkippedDone   int
	SkippedFailed int
	Failed        int
	Bytes         int64
	Elapsed       time.Duration
}

// Add folds another stats block into s.
func (s *TaskStats) Add(other TaskStats) {
	s.Found += other.Found
	s.Downloaded += other.Downloaded
	s.SkippedDone += other.SkippedDone
	s.SkippedFailed += other.SkippedFailed
	s.Failed += other.Failed
	s.Bytes += other.Bytes
	s.Elapsed += other.Elapsed
}
