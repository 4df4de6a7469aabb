package models

import (
	"time"

	"gorm.io/gorm"
)

// Execution types: what caused the task to run
const (
	ExecutionScheduled = "scheduled"
	ExecutionRunOnce   = "run_once"
	ExecutionManual    = "manual"
)

// Execution statuses
const (
	ExecutionStatusRunning = "running"
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
)

// TaskExecution records one run of a task for a tenant. Created at dispatch
// with status=running, finalized exactly once with success or failed, then
// immutable.
type TaskExecution struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TenantID      uint       `gorm:"index" json:"tenant_id"`
	TaskName      string     `gorm:"index" json:"task_name"`
	ExecutionType string     `gorm:"not null" json:"execution_type"` // scheduled, run_once, manual
	Status        string     `gorm:"index;not null" json:"status"`   // running, success, failed
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	DurationMs    int64      `json:"duration_ms"`
	Result        string     `gorm:"type:text" json:"result"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MigrateExecutionModels runs database migrations for execution models
func MigrateExecutionModels(db *gorm.DB) error {
	return db.AutoMigrate(&TaskExecution{})
}
