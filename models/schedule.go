package models

import (
	"time"

	"gorm.io/gorm"
)

// Canonical automation task names. Every tenant runs the same six tasks.
const (
	TaskPremarketRetry  = "premarket_retry"
	TaskSellMonitor     = "sell_monitor"
	TaskPositionMonitor = "position_monitor"
	TaskBuyOrders       = "buy_orders"
	TaskEODCleanup      = "eod_cleanup"
	TaskAnalysis        = "analysis"
)

// AllTaskNames returns the six canonical task names in display order
func AllTaskNames() []string {
	return []string{
		TaskPremarketRetry,
		TaskSellMonitor,
		TaskPositionMonitor,
		TaskBuyOrders,
		TaskEODCleanup,
		TaskAnalysis,
	}
}

// IsValidTaskName reports whether name is one of the canonical tasks
func IsValidTaskName(name string) bool {
	for _, t := range AllTaskNames() {
		if t == name {
			return true
		}
	}
	return false
}

// TaskSchedule defines when an automation task runs.
// Exactly one of the trigger kinds applies: hourly, continuous, or once-daily
// (neither flag set). Rows are created or updated by administrative action and
// never hard-deleted.
type TaskSchedule struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TaskName     string    `gorm:"uniqueIndex;not null" json:"task_name"`
	IsHourly     bool      `gorm:"default:false" json:"is_hourly"`
	IsContinuous bool      `gorm:"default:false" json:"is_continuous"`
	StartTime    string    `gorm:"not null" json:"start_time"` // "HH:MM"
	EndTime      *string   `json:"end_time,omitempty"`         // "HH:MM", optional
	Enabled      bool      `gorm:"default:true" json:"enabled"`
	UpdatedBy    string    `json:"updated_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultSchedules returns the seed rows for the six canonical tasks
func DefaultSchedules() []TaskSchedule {
	sellEnd := "15:30"
	monitorEnd := "15:30"
	return []TaskSchedule{
		{TaskName: TaskPremarketRetry, StartTime: "08:45", Enabled: true, UpdatedBy: "system"},
		{TaskName: TaskSellMonitor, IsContinuous: true, StartTime: "09:15", EndTime: &sellEnd, Enabled: true, UpdatedBy: "system"},
		{TaskName: TaskPositionMonitor, IsHourly: true, StartTime: "09:30", EndTime: &monitorEnd, Enabled: true, UpdatedBy: "system"},
		{TaskName: TaskBuyOrders, StartTime: "09:30", Enabled: true, UpdatedBy: "system"},
		{TaskName: TaskEODCleanup, StartTime: "15:45", Enabled: true, UpdatedBy: "system"},
		{TaskName: TaskAnalysis, StartTime: "16:00", Enabled: true, UpdatedBy: "system"},
	}
}

// MigrateScheduleModels runs database migrations for schedule models
func MigrateScheduleModels(db *gorm.DB) error {
	return db.AutoMigrate(&TaskSchedule{})
}
