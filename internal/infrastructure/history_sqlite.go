package infrastructure

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/albumgrab-go/internal/domain"
)

// SQLiteRunRepository implements RunRepository using SQLite
type SQLiteRunRepository struct {
	db *gorm.DB
}

var _ domain.RunRepository = (*SQLiteRunRepository)(nil)

// NewSQLiteRunRepository creates a new SQLite repository
func NewSQLiteRunRepository(dbPath string) (*SQLiteRunRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.AlbumRun{}, &domain.ResourceOutcome{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteRunRepository{db: db}, nil
}

// CreateRun persists a new run
func (r *SQLiteRunRepository) CreateRun(run *domain.AlbumRun) error {
	return r.db.Create(run).Error
}

// UpdateRun updates an existing run
func (r *SQLiteRunRepository) UpdateRun(run *domain.AlbumRun) error {
	return r.db.Save(run).Error
}

// FindRun finds a run by ID
func (r *SQLiteRunRepository) FindRun(id string) (*domain.AlbumRun, error) {
	var run domain.AlbumRun
	err := r.db.First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// FindRuns finds runs by status, newest first. An empty status matches all.
func (r *SQLiteRunRepository) FindRuns(status domain.RunStatus) ([]*domain.AlbumRun, error) {
	var runs []*domain.AlbumRun
	query := r.db
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Find(&runs).Error
	return runs, err
}

// FindPendingRuns finds queued runs ordered by creation time
func (r *SQLiteRunRepository) FindPendingRuns() ([]*domain.AlbumRun, error) {
	var runs []*domain.AlbumRun
	err := r.db.Where("status = ?", domain.RunQueued).
		Order("created_at ASC").
		Find(&runs).Error
	return runs, err
}

// RecordOutcome persists one resource outcome
func (r *SQLiteRunRepository) RecordOutcome(outcome *domain.ResourceOutcome) error {
	return r.db.Create(outcome).Error
}

// FindOutcomes lists the outcomes recorded for a run
func (r *SQLiteRunRepository) FindOutcomes(runID string) ([]*domain.ResourceOutcome, error) {
	var outcomes []*domain.ResourceOutcome
	err := r.db.Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&outcomes).Error
	return outcomes, err
}

// Stats returns aggregate run statistics
func (r *SQLiteRunRepository) Stats() (*domain.RunStatsReport, error) {
	report := &domain.RunStatsReport{}

	if err := r.db.Model(&domain.AlbumRun{}).Count(&report.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.RunStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.AlbumRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.RunQueued:
			report.Queued = sc.Count
		case domain.RunRunning:
			report.Running = sc.Count
		case domain.RunCompleted:
			report.Completed = sc.Count
		case domain.RunFailed:
			report.Failed = sc.Count
		}
	}

	totals := struct {
		Downloaded int64
		Bytes      int64
	}{}
	if err := r.db.Model(&domain.AlbumRun{}).
		Select("coalesce(sum(downloaded), 0) as downloaded, coalesce(sum(bytes), 0) as bytes").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	report.Downloaded = totals.Downloaded
	report.Bytes = totals.Bytes

	return report, nil
}

// Close closes the database connection
func (r *SQLiteRunRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
