package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade modes for the unified service
const (
	TradeModeBroker = "broker"
	TradeModePaper  = "paper"
)

// Tenant is an isolated account whose tasks run independently of every other
// tenant's
type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	TradeMode string    `gorm:"default:'paper'" json:"trade_mode"` // broker, paper
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BrokerCredential stores a tenant's broker login sealed with the master key.
// The plaintext only ever exists in the ephemeral artifact created while the
// tenant's unified service is running.
type BrokerCredential struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   uint      `gorm:"uniqueIndex;not null" json:"tenant_id"`
	Ciphertext []byte    `gorm:"not null" json:"-"`
	Nonce      []byte    `gorm:"not null" json:"-"`
	Salt       []byte    `gorm:"not null" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MigrateTenantModels runs database migrations for tenant models
func MigrateTenantModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Tenant{},
		&BrokerCredential{},
	)
}
