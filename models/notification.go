package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification channels
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelInApp = "in_app"
)

// Notification event types
const (
	EventServiceStarted     = "service_started"
	EventServiceStopped     = "service_stopped"
	EventExecutionCompleted = "execution_completed"
)

// NotificationPreference is a per-tenant, per-event, per-channel opt-in flag
type NotificationPreference struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"index:idx_pref,unique;not null" json:"tenant_id"`
	EventType string    `gorm:"index:idx_pref,unique;not null" json:"event_type"`
	Channel   string    `gorm:"index:idx_pref,unique;not null" json:"channel"`
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification is a delivered in-app message record
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	TenantID  uint       `gorm:"index" json:"tenant_id"`
	EventType string     `json:"event_type"`
	Title     string     `json:"title"`
	Message   string     `gorm:"type:text" json:"message"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// MigrateNotificationModels runs database migrations for notification models
func MigrateNotificationModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&NotificationPreference{},
		&Notification{},
	)
}
