package models

import (
	"time"

	"gorm.io/gorm"
)

// ServiceStatus tracks the run state of one task for one tenant.
// One row per (tenant, task); upserted on start/stop and never deleted.
type ServiceStatus struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	TenantID        uint       `gorm:"index:idx_tenant_task,unique;not null" json:"tenant_id"`
	TaskName        string     `gorm:"index:idx_tenant_task,unique;not null" json:"task_name"`
	IsRunning       bool       `gorm:"default:false" json:"is_running"`
	ProcessID       int        `json:"process_id"`
	StartedAt       *time.Time `json:"started_at"`
	LastExecutionAt *time.Time `json:"last_execution_at"`
	NextExecutionAt *time.Time `json:"next_execution_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UnifiedServiceStatus tracks the per-tenant continuous service. A heartbeat
// is written on start/stop and refreshed by the running instance.
type UnifiedServiceStatus struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TenantID    uint       `gorm:"uniqueIndex;not null" json:"tenant_id"`
	IsRunning   bool       `gorm:"default:false" json:"is_running"`
	TradeMode   string     `json:"trade_mode"`
	StartedAt   *time.Time `json:"started_at"`
	HeartbeatAt *time.Time `json:"heartbeat_at"`
	ErrorCount  int        `gorm:"default:0" json:"error_count"`
	LastError   string     `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MigrateStatusModels runs database migrations for service status models
func MigrateStatusModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&ServiceStatus{},
		&UnifiedServiceStatus{},
	)
}
