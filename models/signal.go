package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Signal lifecycle statuses. EXPIRED is terminal.
const (
	SignalActive   = "ACTIVE"
	SignalTraded   = "TRADED"
	SignalRejected = "REJECTED"
	SignalExpired  = "EXPIRED"
)

// TradingSignal represents a generated trading candidate with a lifecycle
// status. The scoring payload (prices, score, reason) is opaque to the
// lifecycle logic.
type TradingSignal struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	TenantID    uint            `gorm:"index" json:"tenant_id"`
	Ticker      string          `gorm:"index;not null" json:"ticker"`
	Status      string          `gorm:"index;not null;default:'ACTIVE'" json:"status"`
	Price       decimal.Decimal `gorm:"type:decimal(15,2)" json:"price"`
	TargetPrice decimal.Decimal `gorm:"type:decimal(15,2)" json:"target_price"`
	StopLoss    decimal.Decimal `gorm:"type:decimal(15,2)" json:"stop_loss"`
	Score       decimal.Decimal `gorm:"type:decimal(5,2)" json:"score"`
	Reason      string          `json:"reason"`
	GeneratedAt time.Time       `gorm:"index;not null" json:"generated_at"`
	TradedAt    *time.Time      `json:"traded_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MigrateSignalModels runs database migrations for signal models
func MigrateSignalModels(db *gorm.DB) error {
	return db.AutoMigrate(&TradingSignal{})
}
