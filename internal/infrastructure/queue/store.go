package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/semmidev/dbpull/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

// Store persists jobs in a SQLite file.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open queue db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to open queue db: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Job{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Enqueue(ctx context.Context, req domain.JobRequest) (uint, error) {
	trigger := req.Trigger
	if trigger == "" {
		trigger = "manual"
	}

	job := Job{
		Status:     JobStatusPending,
		Trigger:    trigger,
		SkipBackup: req.SkipBackup,
		Force:      req.Force,
		CreatedAt:  s.now(),
	}

	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return 0, err
	}
	return job.ID, nil
}

// Claim moves the oldest pending job to running and returns it. It returns
// nil when nothing is pending or another worker won the job.
func (s *Store) Claim(ctx context.Context) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).
		Where("status = ?", JobStatusPending).
		Order("id").
		Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	started := s.now()
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", job.ID, JobStatusPending).
		Updates(map[string]any{"status": JobStatusRunning, "started_at": started})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	job.Status = JobStatusRunning
	job.StartedAt = &started
	return &job, nil
}

// Finish records the result of a running job. outcome may be nil when the
// pull was rejected before it started.
func (s *Store) Finish(ctx context.Context, id uint, outcome *domain.Outcome, runErr error) error {
	updates := map[string]any{
		"status":      JobStatusSucceeded,
		"finished_at": s.now(),
	}

	if outcome != nil {
		updates["backup_path"] = outcome.BackupPath
		updates["import_mode"] = outcome.ImportMode
	}

	if runErr != nil {
		stage := domain.StageOf(runErr)
		if outcome != nil && outcome.State == domain.StateFailed {
			stage = outcome.FailedStage
		}
		updates["status"] = JobStatusFailed
		updates["failed_stage"] = stage.String()
		updates["error"] = runErr.Error()
	}

	res := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Recover fails jobs left running by a process that exited mid-pull.
func (s *Store) Recover(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("status = ?", JobStatusRunning).
		Updates(map[string]any{
			"status":      JobStatusFailed,
			"error":       "interrupted: worker exited before the pull finished",
			"finished_at": s.now(),
		})
	return res.RowsAffected, res.Error
}

// List returns the most recent jobs first.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}

	var jobs []Job
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

func (s *Store) Get(ctx context.Context, id uint) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}
