package repository

import (
	"errors"
	"fmt"

	"go_trading_automation/models"

	"gorm.io/gorm"
)

// NotificationRepository persists notification preferences and in-app
// delivery records
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a notification repository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ShouldNotify reports whether the tenant opted in to this event on this
// channel. A missing preference row counts as enabled.
func (r *NotificationRepository) ShouldNotify(tenantID uint, eventType, channel string) (bool, error) {
	var pref models.NotificationPreference
	err := r.db.Where("tenant_id = ? AND event_type = ? AND channel = ?", tenantID, eventType, channel).
		First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load notification preference: %w", err)
	}
	return pref.Enabled, nil
}

// UpsertPreference creates or updates one preference flag
func (r *NotificationRepository) UpsertPreference(tenantID uint, eventType, channel string, enabled bool) error {
	var pref models.NotificationPreference
	err := r.db.Where("tenant_id = ? AND event_type = ? AND channel = ?", tenantID, eventType, channel).
		First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pref = models.NotificationPreference{
			TenantID:  tenantID,
			EventType: eventType,
			Channel:   channel,
			Enabled:   enabled,
		}
		if err := r.db.Create(&pref).Error; err != nil {
			return fmt.Errorf("failed to create notification preference: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load notification preference: %w", err)
	}

	if err := r.db.Model(&pref).Update("enabled", enabled).Error; err != nil {
		return fmt.Errorf("failed to update notification preference: %w", err)
	}
	return nil
}

// SaveNotification records a delivered in-app message
func (r *NotificationRepository) SaveNotification(n *models.Notification) error {
	if err := r.db.Create(n).Error; err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// ListNotifications returns recent in-app notifications for a tenant
func (r *NotificationRepository) ListNotifications(tenantID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var notifications []models.Notification
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for tenant %d: %w", tenantID, err)
	}
	return notifications, nil
}
