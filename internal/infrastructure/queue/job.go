package queue

import (
	"time"

	"github.com/semmidev/dbpull/internal/domain"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one recorded pull request and, once finished, its result.
type Job struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Status      JobStatus  `gorm:"not null;default:'pending';index" json:"status"`
	Trigger     string     `gorm:"not null" json:"trigger"`
	SkipBackup  bool       `json:"skip_backup"`
	Force       bool       `json:"force"`
	FailedStage string     `json:"failed_stage,omitempty"`
	Error       string     `json:"error,omitempty"`
	BackupPath  string     `json:"backup_path,omitempty"`
	ImportMode  string     `json:"import_mode,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func (j *Job) Request() domain.JobRequest {
	return domain.JobRequest{
		SkipBackup: j.SkipBackup,
		Force:      j.Force,
		Trigger:    j.Trigger,
	}
}

func (j *Job) Finished() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
