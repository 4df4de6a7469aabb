package repository

import (
	"errors"
	"fmt"
	"time"

	"go_trading_automation/models"

	"gorm.io/gorm"
)

// StatusRepository persists per-(tenant, task) service status rows
type StatusRepository struct {
	db *gorm.DB
}

// NewStatusRepository creates a status repository
func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// GetStatus returns the status row for (tenant, task), or nil when none exists
func (r *StatusRepository) GetStatus(tenantID uint, taskName string) (*models.ServiceStatus, error) {
	var st models.ServiceStatus
	err := r.db.Where("tenant_id = ? AND task_name = ?", tenantID, taskName).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load status for tenant %d task %s: %w", tenantID, taskName, err)
	}
	return &st, nil
}

// ListStatuses returns every status row for a tenant
func (r *StatusRepository) ListStatuses(tenantID uint) ([]models.ServiceStatus, error) {
	var statuses []models.ServiceStatus
	if err := r.db.Where("tenant_id = ?", tenantID).Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("failed to list statuses for tenant %d: %w", tenantID, err)
	}
	return statuses, nil
}

// ListRunning returns every status row currently marked running
func (r *StatusRepository) ListRunning() ([]models.ServiceStatus, error) {
	var statuses []models.ServiceStatus
	if err := r.db.Where("is_running = ?", true).Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("failed to list running statuses: %w", err)
	}
	return statuses, nil
}

// UpsertStarted marks (tenant, task) running with the given process ID and
// next execution time. One row per pair; rows are never deleted.
func (r *StatusRepository) UpsertStarted(tenantID uint, taskName string, pid int, next *time.Time) error {
	now := time.Now()
	var st models.ServiceStatus
	err := r.db.Where("tenant_id = ? AND task_name = ?", tenantID, taskName).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		st = models.ServiceStatus{
			TenantID:        tenantID,
			TaskName:        taskName,
			IsRunning:       true,
			ProcessID:       pid,
			StartedAt:       &now,
			NextExecutionAt: next,
		}
		if err := r.db.Create(&st).Error; err != nil {
			return fmt.Errorf("failed to create status for tenant %d task %s: %w", tenantID, taskName, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load status for tenant %d task %s: %w", tenantID, taskName, err)
	}

	updates := map[string]interface{}{
		"is_running":        true,
		"process_id":        pid,
		"started_at":        now,
		"next_execution_at": next,
	}
	if err := r.db.Model(&st).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update status for tenant %d task %s: %w", tenantID, taskName, err)
	}
	return nil
}

// MarkStopped clears the running flag and process handle for (tenant, task)
func (r *StatusRepository) MarkStopped(tenantID uint, taskName string) error {
	res := r.db.Model(&models.ServiceStatus{}).
		Where("tenant_id = ? AND task_name = ?", tenantID, taskName).
		Updates(map[string]interface{}{"is_running": false, "process_id": 0})
	if res.Error != nil {
		return fmt.Errorf("failed to mark stopped for tenant %d task %s: %w", tenantID, taskName, res.Error)
	}
	return nil
}

// UpdateNextExecution sets the computed next execution time
func (r *StatusRepository) UpdateNextExecution(tenantID uint, taskName string, next *time.Time) error {
	res := r.db.Model(&models.ServiceStatus{}).
		Where("tenant_id = ? AND task_name = ?", tenantID, taskName).
		Update("next_execution_at", next)
	if res.Error != nil {
		return fmt.Errorf("failed to update next execution for tenant %d task %s: %w", tenantID, taskName, res.Error)
	}
	return nil
}

// UpdateLastExecution records the most recent run time
func (r *StatusRepository) UpdateLastExecution(tenantID uint, taskName string, at time.Time) error {
	res := r.db.Model(&models.ServiceStatus{}).
		Where("tenant_id = ? AND task_name = ?", tenantID, taskName).
		Update("last_execution_at", at)
	if res.Error != nil {
		return fmt.Errorf("failed to update last execution for tenant %d task %s: %w", tenantID, taskName, res.Error)
	}
	return nil
}
