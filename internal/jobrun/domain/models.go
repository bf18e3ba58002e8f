package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// JobRun is one execution of a scheduled job.
type JobRun struct {
	ID         snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	RunID      string            `gorm:"type:varchar(26);not null;uniqueIndex:ux_job_runs_run_id" json:"run_id"`
	Job        string            `gorm:"type:varchar(64);not null;index:ix_job_runs_job_started,priority:1" json:"job"`
	Trigger    string            `gorm:"type:varchar(16);not null" json:"trigger"`
	Status     string            `gorm:"type:varchar(16);not null" json:"status"`
	Processed  int               `gorm:"not null;default:0" json:"processed"`
	ErrorCount int               `gorm:"not null;default:0" json:"error_count"`
	Message    string            `gorm:"type:text;not null;default:''" json:"message"`
	Details    datatypes.JSONMap `gorm:"type:json" json:"details,omitempty"`
	StartedAt  time.Time         `gorm:"not null;index:ix_job_runs_job_started,priority:2" json:"started_at"`
	FinishedAt time.Time         `gorm:"not null" json:"finished_at"`
}

func (JobRun) TableName() string { return "job_runs" }
