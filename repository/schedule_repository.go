package repository

import (
	"errors"
	"fmt"

	"go_trading_automation/models"

	"gorm.io/gorm"
)

// ScheduleRepository persists task schedules
type ScheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a schedule repository
func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// GetSchedule returns the schedule for a task, or nil when none exists
func (r *ScheduleRepository) GetSchedule(taskName string) (*models.TaskSchedule, error) {
	var s models.TaskSchedule
	err := r.db.Where("task_name = ?", taskName).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule for %s: %w", taskName, err)
	}
	return &s, nil
}

// ListSchedules returns every schedule row
func (r *ScheduleRepository) ListSchedules() ([]models.TaskSchedule, error) {
	var schedules []models.TaskSchedule
	if err := r.db.Order("task_name").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

// ListEnabledSchedules returns only enabled schedules
func (r *ScheduleRepository) ListEnabledSchedules() ([]models.TaskSchedule, error) {
	var schedules []models.TaskSchedule
	if err := r.db.Where("enabled = ?", true).Order("task_name").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list enabled schedules: %w", err)
	}
	return schedules, nil
}

// UpsertSchedule creates or updates the schedule for a task. Schedules are
// never hard-deleted; disabling is the only way to retire one.
func (r *ScheduleRepository) UpsertSchedule(s *models.TaskSchedule) error {
	var existing models.TaskSchedule
	err := r.db.Where("task_name = ?", s.TaskName).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(s).Error; err != nil {
			return fmt.Errorf("failed to create schedule for %s: %w", s.TaskName, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load schedule for %s: %w", s.TaskName, err)
	}

	updates := map[string]interface{}{
		"is_hourly":     s.IsHourly,
		"is_continuous": s.IsContinuous,
		"start_time":    s.StartTime,
		"end_time":      s.EndTime,
		"enabled":       s.Enabled,
		"updated_by":    s.UpdatedBy,
	}
	if err := r.db.Model(&existing).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update schedule for %s: %w", s.TaskName, err)
	}
	return nil
}

// SetEnabled flips the enabled flag for a task schedule
func (r *ScheduleRepository) SetEnabled(taskName string, enabled bool, updatedBy string) error {
	res := r.db.Model(&models.TaskSchedule{}).
		Where("task_name = ?", taskName).
		Updates(map[string]interface{}{"enabled": enabled, "updated_by": updatedBy})
	if res.Error != nil {
		return fmt.Errorf("failed to set enabled for %s: %w", taskName, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no schedule found for task %s", taskName)
	}
	return nil
}

// SeedDefaultsIfEmpty inserts the six canonical schedules when the table is
// empty. Idempotent: an already-populated table is left untouched.
func (r *ScheduleRepository) SeedDefaultsIfEmpty() (bool, error) {
	var count int64
	if err := r.db.Model(&models.TaskSchedule{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count schedules: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	defaults := models.DefaultSchedules()
	if err := r.db.Create(&defaults).Error; err != nil {
		return false, fmt.Errorf("failed to seed default schedules: %w", err)
	}
	return true, nil
}
