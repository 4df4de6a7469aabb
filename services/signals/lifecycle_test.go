package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_trading_automation/models"
)

type fakeSignalStore struct {
	signals map[uint]*models.TradingSignal
}

func newFakeSignalStore() *fakeSignalStore {
	return &fakeSignalStore{signals: make(map[uint]*models.TradingSignal)}
}

func (f *fakeSignalStore) add(id uint, status string, generatedAt time.Time) {
	f.signals[id] = &models.TradingSignal{
		TenantID:    1,
		Ticker:      "HPG",
		Status:      status,
		GeneratedAt: generatedAt,
	}
	f.signals[id].ID = id
}

func (f *fakeSignalStore) Get(id uint) (*models.TradingSignal, error) {
	sig, ok := f.signals[id]
	if !ok {
		return nil, nil
	}
	copied := *sig
	return &copied, nil
}

func (f *fakeSignalStore) ListActive(limit int) ([]models.TradingSignal, error) {
	var out []models.TradingSignal
	for _, sig := range f.signals {
		if sig.Status == models.SignalActive {
			out = append(out, *sig)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSignalStore) TransitionStatus(id uint, from, to string) (bool, error) {
	sig, ok := f.signals[id]
	if !ok || sig.Status != from {
		return false, nil
	}
	sig.Status = to
	return true, nil
}

func (f *fakeSignalStore) ExpireActiveBefore(cutoff time.Time) (int64, error) {
	var n int64
	for _, sig := range f.signals {
		if sig.Status == models.SignalActive && sig.GeneratedAt.Before(cutoff) {
			sig.Status = models.SignalExpired
			n++
		}
	}
	return n, nil
}

func newTestLifecycle(t *testing.T, store SignalStore, now time.Time) *Lifecycle {
	t.Helper()
	lc, err := NewLifecycle(store, "09:15")
	require.NoError(t, err)
	lc.now = func() time.Time { return now }
	return lc
}

func TestNewLifecycleRejectsBadCutoff(t *testing.T) {
	_, err := NewLifecycle(newFakeSignalStore(), "25:00")
	assert.Error(t, err)

	_, err = NewLifecycle(newFakeSignalStore(), "nonsense")
	assert.Error(t, err)

	_, err = NewLifecycle(newFakeSignalStore(), "09:15xyz")
	assert.Error(t, err)
}

func TestMarkAsTradedOnlyFromActive(t *testing.T) {
	store := newFakeSignalStore()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)
	store.add(1, models.SignalActive, now)
	store.add(2, models.SignalRejected, now)

	lc := newTestLifecycle(t, store, now)

	ok, err := lc.MarkAsTraded(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.SignalTraded, store.signals[1].Status)

	ok, err = lc.MarkAsTraded(2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.SignalRejected, store.signals[2].Status)

	// Second attempt on an already traded signal fails without state change.
	ok, err = lc.MarkAsTraded(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkAsRejectedOnlyFromActive(t *testing.T) {
	store := newFakeSignalStore()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)
	store.add(1, models.SignalActive, now)
	store.add(2, models.SignalExpired, now)

	lc := newTestLifecycle(t, store, now)

	ok, err := lc.MarkAsRejected(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.SignalRejected, store.signals[1].Status)

	ok, err = lc.MarkAsRejected(2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkOldSignalsAsExpired(t *testing.T) {
	store := newFakeSignalStore()
	cutoff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local)
	store.add(1, models.SignalActive, cutoff.Add(-2*time.Hour))
	store.add(2, models.SignalActive, cutoff.Add(2*time.Hour))
	store.add(3, models.SignalTraded, cutoff.Add(-2*time.Hour))

	lc := newTestLifecycle(t, store, cutoff)

	n, err := lc.MarkOldSignalsAsExpired(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.SignalExpired, store.signals[1].Status)
	assert.Equal(t, models.SignalActive, store.signals[2].Status)
	assert.Equal(t, models.SignalTraded, store.signals[3].Status)

	// Running again with the same cutoff changes nothing.
	n, err = lc.MarkOldSignalsAsExpired(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMarkAsActiveSameDay(t *testing.T) {
	store := newFakeSignalStore()
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	store.add(1, models.SignalRejected, now.Add(-3*time.Hour))
	store.add(2, models.SignalTraded, now.Add(-1*time.Hour))

	lc := newTestLifecycle(t, store, now)

	ok, err := lc.MarkAsActive(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.SignalActive, store.signals[1].Status)

	ok, err = lc.MarkAsActive(2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.SignalActive, store.signals[2].Status)
}

func TestMarkAsActivePreviousDayCutoff(t *testing.T) {
	store := newFakeSignalStore()
	yesterday := time.Date(2026, 3, 9, 15, 0, 0, 0, time.Local)
	store.add(1, models.SignalRejected, yesterday)
	store.add(2, models.SignalRejected, yesterday)

	// Before the 09:15 cutoff the previous-day signal may come back.
	before := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	lc := newTestLifecycle(t, store, before)
	ok, err := lc.MarkAsActive(1)
	require.NoError(t, err)
	assert.True(t, ok)

	// At or after the cutoff it may not.
	after := time.Date(2026, 3, 10, 9, 15, 0, 0, time.Local)
	lc = newTestLifecycle(t, store, after)
	ok, err = lc.MarkAsActive(2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.SignalRejected, store.signals[2].Status)
}

func TestMarkAsActiveTooOld(t *testing.T) {
	store := newFakeSignalStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local)
	store.add(1, models.SignalRejected, now.AddDate(0, 0, -2))

	lc := newTestLifecycle(t, store, now)

	ok, err := lc.MarkAsActive(1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.SignalRejected, store.signals[1].Status)
}

func TestMarkAsActiveTerminalAndNoop(t *testing.T) {
	store := newFakeSignalStore()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)
	store.add(1, models.SignalExpired, now)
	store.add(2, models.SignalActive, now)

	lc := newTestLifecycle(t, store, now)

	// EXPIRED is terminal even inside the window.
	ok, err := lc.MarkAsActive(1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.SignalExpired, store.signals[1].Status)

	// ACTIVE reactivation is an idempotent success.
	ok, err = lc.MarkAsActive(2)
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown signal.
	ok, err = lc.MarkAsActive(99)
	require.NoError(t, err)
	assert.False(t, ok)
}
