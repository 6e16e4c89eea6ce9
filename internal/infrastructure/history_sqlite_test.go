package infrastructure

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/albumgrab-go/internal/domain"
)

func setupTestRepo(t *testing.T) *SQLiteRunRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewSQLiteRunRepository(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunRepository_CreateAndFind(t *testing.T) {
	repo := setupTestRepo(t)

	run := domain.NewAlbumRun("https://bunkr.sk/a/abc123", "/tmp/out")
	require.NoError(t, repo.CreateRun(run))

	found, err := repo.FindRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.URL, found.URL)
	assert.Equal(t, domain.RunQueued, found.Status)
}

func TestRunRepository_UpdateRun(t *testing.T) {
	repo := setupTestRepo(t)

	run := domain.NewAlbumRun("https://bunkr.sk/a/abc123", "/tmp/out")
	require.NoError(t, repo.CreateRun(run))

	run.MarkRunning()
	run.MarkCompleted(domain.TaskStats{Found: 5, Downloaded: 3, SkippedDone: 1, Failed: 1, Bytes: 2048})
	require.NoError(t, repo.UpdateRun(run))

	found, err := repo.FindRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, found.Status)
	assert.Equal(t, 3, found.Downloaded)
	assert.Equal(t, int64(2048), found.Bytes)
	assert.NotNil(t, found.CompletedAt)
}

func TestRunRepository_FindPendingRuns_OldestFirst(t *testing.T) {
	repo := setupTestRepo(t)

	older := domain.NewAlbumRun("https://bunkr.sk/a/first", "")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.CreateRun(older))

	newer := domain.NewAlbumRun("https://bunkr.sk/a/second", "")
	require.NoError(t, repo.CreateRun(newer))

	done := domain.NewAlbumRun("https://bunkr.sk/a/done", "")
	done.MarkRunning()
	done.MarkCompleted(domain.TaskStats{})
	require.NoError(t, repo.CreateRun(done))

	pending, err := repo.FindPendingRuns()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)
	assert.Equal(t, newer.ID, pending[1].ID)
}

func TestRunRepository_FindRuns_FiltersOnStatus(t *testing.T) {
	repo := setupTestRepo(t)

	queued := domain.NewAlbumRun("https://bunkr.sk/a/q", "")
	require.NoError(t, repo.CreateRun(queued))

	failed := domain.NewAlbumRun("https://bunkr.sk/a/f", "")
	failed.MarkFailed(assert.AnError)
	require.NoError(t, repo.CreateRun(failed))

	runs, err := repo.FindRuns(domain.RunFailed)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, failed.ID, runs[0].ID)

	all, err := repo.FindRuns("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunRepository_Outcomes(t *testing.T) {
	repo := setupTestRepo(t)

	run := domain.NewAlbumRun("https://bunkr.sk/a/abc123", "")
	require.NoError(t, repo.CreateRun(run))

	require.NoError(t, repo.RecordOutcome(&domain.ResourceOutcome{
		RunID: run.ID, Key: "https://bunkr.sk/f/one", Status: "downloaded",
		FileName: "one.mp4", Bytes: 1024,
	}))
	require.NoError(t, repo.RecordOutcome(&domain.ResourceOutcome{
		RunID: run.ID, Key: "https://bunkr.sk/f/two", Status: "failed",
		Reason: "status 404",
	}))
	require.NoError(t, repo.RecordOutcome(&domain.ResourceOutcome{
		RunID: "other-run", Key: "https://bunkr.sk/f/three", Status: "downloaded",
	}))

	outcomes, err := repo.FindOutcomes(run.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "https://bunkr.sk/f/one", outcomes[0].Key)
	assert.Equal(t, "status 404", outcomes[1].Reason)
}

func TestRunRepository_Stats(t *testing.T) {
	repo := setupTestRepo(t)

	queued := domain.NewAlbumRun("https://bunkr.sk/a/q", "")
	require.NoError(t, repo.CreateRun(queued))

	completed := domain.NewAlbumRun("https://bunkr.sk/a/c", "")
	completed.MarkRunning()
	completed.MarkCompleted(domain.TaskStats{Found: 4, Downloaded: 4, Bytes: 4096})
	require.NoError(t, repo.CreateRun(completed))

	failed := domain.NewAlbumRun("https://bunkr.sk/a/f", "")
	failed.MarkFailed(assert.AnError)
	require.NoError(t, repo.CreateRun(failed))

	report, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Total)
	assert.Equal(t, int64(1), report.Queued)
	assert.Equal(t, int64(1), report.Completed)
	assert.Equal(t, int64(1), report.Failed)
	assert.Equal(t, int64(4), report.Downloaded)
	assert.Equal(t, int64(4096), report.Bytes)
}
