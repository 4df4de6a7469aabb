package repository

import (
	"fmt"
	"time"

	"go_trading_automation/models"

	"gorm.io/gorm"
)

// ExecutionRepository persists task execution records
type ExecutionRepository struct {
	db *gorm.DB
}

// NewExecutionRepository creates an execution repository
func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create inserts a new execution record with status running
func (r *ExecutionRepository) Create(tenantID uint, taskName, executionType string) (*models.TaskExecution, error) {
	rec := &models.TaskExecution{
		TenantID:      tenantID,
		TaskName:      taskName,
		ExecutionType: executionType,
		Status:        models.ExecutionStatusRunning,
		StartedAt:     time.Now(),
	}
	if err := r.db.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}
	return rec, nil
}

// Finalize completes an execution record exactly once. The conditional update
// from running guarantees a record is never finalized twice.
func (r *ExecutionRepository) Finalize(id uint, status, result, errorMessage string) error {
	now := time.Now()
	res := r.db.Model(&models.TaskExecution{}).
		Where("id = ? AND status = ?", id, models.ExecutionStatusRunning).
		Updates(map[string]interface{}{
			"status":        status,
			"completed_at":  now,
			"duration_ms":   gorm.Expr("EXTRACT(EPOCH FROM (? - started_at)) * 1000", now),
			"result":        result,
			"error_message": errorMessage,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finalize execution %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("execution %d already finalized", id)
	}
	return nil
}

// HasRunning reports whether a running execution exists for (tenant, task)
func (r *ExecutionRepository) HasRunning(tenantID uint, taskName string) (bool, error) {
	var count int64
	err := r.db.Model(&models.TaskExecution{}).
		Where("tenant_id = ? AND task_name = ? AND status = ?", tenantID, taskName, models.ExecutionStatusRunning).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count running executions: %w", err)
	}
	return count > 0, nil
}

// ListCompletedSince returns finalized executions completed at or after the
// given time. Feeds the archive job.
func (r *ExecutionRepository) ListCompletedSince(since time.Time) ([]models.TaskExecution, error) {
	var execs []models.TaskExecution
	err := r.db.Where("status <> ? AND completed_at >= ?", models.ExecutionStatusRunning, since).
		Order("completed_at ASC").
		Find(&execs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed executions: %w", err)
	}
	return execs, nil
}

// List returns the most recent executions for a tenant
func (r *ExecutionRepository) List(tenantID uint, limit int) ([]models.TaskExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	var execs []models.TaskExecution
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("started_at DESC").
		Limit(limit).
		Find(&execs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for tenant %d: %w", tenantID, err)
	}
	return execs, nil
}
