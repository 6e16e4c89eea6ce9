package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/domain"
)

// TaskQueue drains queued album runs from the repository and hands them to
// the orchestrator one at a time. Albums are processed sequentially so the
// per-worker rate limiting inside a run stays meaningful; concurrency lives
// inside the run, not across runs.
type TaskQueue struct {
	repo   domain.RunRepository
	orch   *Orchestrator
	config *domain.QueueConfig
	logger *zap.Logger

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	workerWg sync.WaitGroup
}

// NewTaskQueue creates a queue processor. Per-resource outcomes of every
// run it starts are persisted through the repository.
func NewTaskQueue(repo domain.RunRepository, orch *Orchestrator, config *domain.QueueConfig, logger *zap.Logger) *TaskQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &TaskQueue{
		repo:     repo,
		orch:     orch,
		config:   config,
		logger:   logger.Named("queue"),
		stopChan: make(chan struct{}),
	}
	orch.OnOutcome = func(outcome *domain.ResourceOutcome) {
		if err := repo.RecordOutcome(outcome); err != nil {
			q.logger.Warn("failed to record outcome",
				zap.String("run_id", outcome.RunID),
				zap.Error(err))
		}
	}
	return q
}

// Start starts the queue processor
func (q *TaskQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("task queue already running")
	}
	q.running = true
	q.mu.Unlock()

	q.logger.Info("queue started")
	q.workerWg.Add(1)
	go q.processQueue(ctx)

	return nil
}

// Stop stops the queue processor
func (q *TaskQueue) Stop() error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return fmt.Errorf("task queue not running")
	}
	q.running = false
	q.mu.Unlock()

	close(q.stopChan)
	q.workerWg.Wait()
	q.logger.Info("queue stopped")

	return nil
}

// IsRunning returns whether the queue processor is running
func (q *TaskQueue) IsRunning() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.running
}

// Enqueue adds an album run to the queue
func (q *TaskQueue) Enqueue(url, outputDir string) (*domain.AlbumRun, error) {
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	run := domain.NewAlbumRun(url, outputDir)
	if err := q.repo.CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	q.logger.Info("run enqueued",
		zap.String("id", run.ID),
		zap.String("url", url))
	return run, nil
}

// GetRun retrieves a run by ID
func (q *TaskQueue) GetRun(id string) (*domain.AlbumRun, error) {
	return q.repo.FindRun(id)
}

// ListRuns lists runs, optionally filtered by status
func (q *TaskQueue) ListRuns(status domain.RunStatus) ([]*domain.AlbumRun, error) {
	return q.repo.FindRuns(status)
}

// GetOutcomes lists the per-resource outcomes recorded for a run
func (q *TaskQueue) GetOutcomes(runID string) ([]*domain.ResourceOutcome, error) {
	return q.repo.FindOutcomes(runID)
}

// GetStats returns aggregate queue statistics
func (q *TaskQueue) GetStats() (*domain.RunStatsReport, error) {
	return q.repo.Stats()
}

// processQueue polls for pending runs and executes them
func (q *TaskQueue) processQueue(ctx context.Context) {
	defer q.workerWg.Done()

	interval := q.config.CheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("queue processor stopped", zap.String("reason", "context_cancelled"))
			return
		case <-q.stopChan:
			q.logger.Info("queue processor stopped", zap.String("reason", "stop_signal"))
			return
		case <-ticker.C:
			pending, err := q.repo.FindPendingRuns()
			if err != nil {
				q.logger.Error("failed to fetch pending runs", zap.Error(err))
				continue
			}

			for _, run := range pending {
				select {
				case <-ctx.Done():
					return
				case <-q.stopChan:
					return
				default:
				}
				q.executeRun(ctx, run)
			}
		}
	}
}

func (q *TaskQueue) executeRun(ctx context.Context, run *domain.AlbumRun) {
	run.MarkRunning()
	if err := q.repo.UpdateRun(run); err != nil {
		q.logger.Error("failed to mark run running",
			zap.String("id", run.ID),
			zap.Error(err))
		return
	}

	q.logger.Info("run started",
		zap.String("id", run.ID),
		zap.String("url", run.URL))

	task := domain.AlbumTask{
		ID:        run.ID,
		URL:       run.URL,
		OutputDir: run.OutputDir,
		CreatedAt: run.CreatedAt,
	}

	stats, err := q.orch.RunAlbum(ctx, task)
	if err != nil {
		run.MarkFailed(err)
		q.logger.Warn("run failed",
			zap.String("id", run.ID),
			zap.Error(err))
	} else {
		run.MarkCompleted(stats)
		q.logger.Info("run completed",
			zap.String("id", run.ID),
			zap.Int("downloaded", stats.Downloaded),
			zap.Int("failed", stats.Failed),
			zap.Int64("bytes", stats.Bytes))
	}

	if err := q.repo.UpdateRun(run); err != nil {
		q.logger.Error("failed to persist run result",
			zap.String("id", run.ID),
			zap.Error(err))
	}
}
