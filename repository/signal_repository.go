package repository

import (
	"errors"
	"fmt"
	"time"

	"go_trading_automation/models"

	"gorm.io/gorm"
)

// SignalRepository persists trading signals. Status transitions are single-row
// conditional updates so concurrent callers can never produce a lost update.
type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a signal repository
func NewSignalRepository(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create inserts a new signal
func (r *SignalRepository) Create(s *models.TradingSignal) error {
	if err := r.db.Create(s).Error; err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}
	return nil
}

// Get returns a signal by ID, or nil when none exists
func (r *SignalRepository) Get(id uint) (*models.TradingSignal, error) {
	var s models.TradingSignal
	err := r.db.First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signal %d: %w", id, err)
	}
	return &s, nil
}

// ListActive returns ACTIVE signals, newest first
func (r *SignalRepository) ListActive(limit int) ([]models.TradingSignal, error) {
	if limit <= 0 {
		limit = 100
	}
	var signals []models.TradingSignal
	err := r.db.Where("status = ?", models.SignalActive).
		Order("generated_at DESC").
		Limit(limit).
		Find(&signals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active signals: %w", err)
	}
	return signals, nil
}

// TransitionStatus moves one signal from an expected status to a new one.
// Returns false without error when the signal was not in the expected status.
func (r *SignalRepository) TransitionStatus(id uint, from, to string) (bool, error) {
	res := r.db.Model(&models.TradingSignal{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition signal %d from %s to %s: %w", id, from, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ExpireActiveBefore bulk-transitions ACTIVE signals generated before the
// cutoff to EXPIRED and returns the number of rows changed. Re-applying with
// the same cutoff changes nothing further.
func (r *SignalRepository) ExpireActiveBefore(cutoff time.Time) (int64, error) {
	res := r.db.Model(&models.TradingSignal{}).
		Where("status = ? AND generated_at < ?", models.SignalActive, cutoff).
		Update("status", models.SignalExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire signals before %s: %w", cutoff.Format(time.RFC3339), res.Error)
	}
	return res.RowsAffected, nil
}
