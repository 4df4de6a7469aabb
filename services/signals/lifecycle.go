package signals

import (
	"fmt"
	"time"

	"go_trading_automation/models"
)

// SignalStore is the persistence collaborator for signal transitions. Every
// transition is a single-row conditional update at the store so concurrent
// callers cannot lose updates.
type SignalStore interface {
	Get(id uint) (*models.TradingSignal, error)
	ListActive(limit int) ([]models.TradingSignal, error)
	TransitionStatus(id uint, from, to string) (bool, error)
	ExpireActiveBefore(cutoff time.Time) (int64, error)
}

// Lifecycle governs signal status transitions:
//
//	ACTIVE -> TRADED | REJECTED | EXPIRED
//	TRADED, REJECTED -> ACTIVE (within the reactivation window)
//	EXPIRED -> (terminal)
type Lifecycle struct {
	store SignalStore

	// Minutes since midnight; previous-day signals may reactivate only while
	// the current time has not passed this mark. Business rule, configured.
	reactivationCutoffMin int

	now func() time.Time
}

// NewLifecycle creates a signal lifecycle service. cutoff is "HH:MM" local
// time.
func NewLifecycle(store SignalStore, cutoff string) (*Lifecycle, error) {
	t, err := time.Parse("15:04", cutoff)
	if err != nil {
		return nil, fmt.Errorf("invalid reactivation cutoff %q: %w", cutoff, err)
	}
	return &Lifecycle{
		store:                 store,
		reactivationCutoffMin: t.Hour()*60 + t.Minute(),
		now:                   time.Now,
	}, nil
}

// MarkOldSignalsAsExpired bulk-expires every ACTIVE signal generated before
// the cutoff and returns the number of rows changed. Idempotent for a fixed
// cutoff.
func (l *Lifecycle) MarkOldSignalsAsExpired(cutoff time.Time) (int64, error) {
	return l.store.ExpireActiveBefore(cutoff)
}

// MarkAsTraded transitions a signal from ACTIVE to TRADED. Returns false with
// no state change when the signal is not ACTIVE.
func (l *Lifecycle) MarkAsTraded(id uint) (bool, error) {
	return l.store.TransitionStatus(id, models.SignalActive, models.SignalTraded)
}

// MarkAsRejected transitions a signal from ACTIVE to REJECTED. Returns false
// with no state change when the signal is not ACTIVE.
func (l *Lifecycle) MarkAsRejected(id uint) (bool, error) {
	return l.store.TransitionStatus(id, models.SignalActive, models.SignalRejected)
}

// MarkAsActive reactivates a TRADED or REJECTED signal, but only inside the
// reactivation window. ACTIVE signals succeed as a no-op; EXPIRED signals and
// signals outside the window always fail.
func (l *Lifecycle) MarkAsActive(id uint) (bool, error) {
	sig, err := l.store.Get(id)
	if err != nil {
		return false, err
	}
	if sig == nil {
		return false, nil
	}

	switch sig.Status {
	case models.SignalActive:
		return true, nil
	case models.SignalExpired:
		return false, nil
	case models.SignalTraded, models.SignalRejected:
		if !l.withinReactivationWindow(sig.GeneratedAt, l.now()) {
			return false, nil
		}
		return l.store.TransitionStatus(id, sig.Status, models.SignalActive)
	default:
		return false, fmt.Errorf("signal %d has unknown status %q", id, sig.Status)
	}
}

// ListActive returns current ACTIVE signals
func (l *Lifecycle) ListActive(limit int) ([]models.TradingSignal, error) {
	return l.store.ListActive(limit)
}

// withinReactivationWindow reports whether a signal generated at generatedAt
// may return to ACTIVE: same calendar day always, previous calendar day only
// while now has not passed the daily cutoff.
func (l *Lifecycle) withinReactivationWindow(generatedAt, now time.Time) bool {
	genY, genM, genD := generatedAt.In(now.Location()).Date()
	nowY, nowM, nowD := now.Date()

	if genY == nowY && genM == nowM && genD == nowD {
		return true
	}

	yesterday := now.AddDate(0, 0, -1)
	yY, yM, yD := yesterday.Date()
	if genY == yY && genM == yM && genD == yD {
		nowMin := now.Hour()*60 + now.Minute()
		return nowMin < l.reactivationCutoffMin
	}

	return false
}
