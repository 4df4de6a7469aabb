package repository

import (
	"errors"
	"fmt"
	"time"

	"go_trading_automation/models"

	"gorm.io/gorm"
)

// UnifiedStatusRepository persists the per-tenant continuous service status
type UnifiedStatusRepository struct {
	db *gorm.DB
}

// NewUnifiedStatusRepository creates a unified status repository
func NewUnifiedStatusRepository(db *gorm.DB) *UnifiedStatusRepository {
	return &UnifiedStatusRepository{db: db}
}

// GetStatus returns the unified service status for a tenant, or nil when the
// tenant never started
func (r *UnifiedStatusRepository) GetStatus(tenantID uint) (*models.UnifiedServiceStatus, error) {
	var st models.UnifiedServiceStatus
	err := r.db.Where("tenant_id = ?", tenantID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load unified status for tenant %d: %w", tenantID, err)
	}
	return &st, nil
}

// IsRunning reports whether the tenant's unified service is marked running
func (r *UnifiedStatusRepository) IsRunning(tenantID uint) (bool, error) {
	st, err := r.GetStatus(tenantID)
	if err != nil {
		return false, err
	}
	return st != nil && st.IsRunning, nil
}

// MarkRunning upserts the status row as running with a fresh heartbeat
func (r *UnifiedStatusRepository) MarkRunning(tenantID uint, tradeMode string) error {
	now := time.Now()
	st, err := r.GetStatus(tenantID)
	if err != nil {
		return err
	}
	if st == nil {
		st = &models.UnifiedServiceStatus{
			TenantID:    tenantID,
			IsRunning:   true,
			TradeMode:   tradeMode,
			StartedAt:   &now,
			HeartbeatAt: &now,
		}
		if err := r.db.Create(st).Error; err != nil {
			return fmt.Errorf("failed to create unified status for tenant %d: %w", tenantID, err)
		}
		return nil
	}

	updates := map[string]interface{}{
		"is_running":   true,
		"trade_mode":   tradeMode,
		"started_at":   now,
		"heartbeat_at": now,
	}
	if err := r.db.Model(st).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark unified status running for tenant %d: %w", tenantID, err)
	}
	return nil
}

// MarkStopped clears the running flag with a fresh heartbeat
func (r *UnifiedStatusRepository) MarkStopped(tenantID uint) error {
	res := r.db.Model(&models.UnifiedServiceStatus{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{"is_running": false, "heartbeat_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to mark unified status stopped for tenant %d: %w", tenantID, res.Error)
	}
	return nil
}

// RecordError increments the error counter with the failure message. The
// running flag is left alone: transient task failures inside a live loop must
// not make the row claim the service stopped. Creates the row when the tenant
// has never started.
func (r *UnifiedStatusRepository) RecordError(tenantID uint, message string) error {
	st, err := r.GetStatus(tenantID)
	if err != nil {
		return err
	}
	if st == nil {
		st = &models.UnifiedServiceStatus{
			TenantID:   tenantID,
			ErrorCount: 1,
			LastError:  message,
		}
		if err := r.db.Create(st).Error; err != nil {
			return fmt.Errorf("failed to record error for tenant %d: %w", tenantID, err)
		}
		return nil
	}

	res := r.db.Model(st).
		Updates(map[string]interface{}{
			"error_count": gorm.Expr("error_count + 1"),
			"last_error":  message,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to record error for tenant %d: %w", tenantID, res.Error)
	}
	return nil
}

// Heartbeat refreshes the heartbeat timestamp for a running tenant
func (r *UnifiedStatusRepository) Heartbeat(tenantID uint) error {
	res := r.db.Model(&models.UnifiedServiceStatus{}).
		Where("tenant_id = ? AND is_running = ?", tenantID, true).
		Update("heartbeat_at", time.Now())
	if res.Error != nil {
		return fmt.Errorf("failed to heartbeat tenant %d: %w", tenantID, res.Error)
	}
	return nil
}
