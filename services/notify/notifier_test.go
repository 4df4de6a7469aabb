package notify

import (
	"errors"
	"testing"

	"go_trading_automation/models"

	"github.com/stretchr/testify/assert"
)

type fakePrefs struct {
	disabled map[string]bool // "event/channel" -> disabled
	err      error
}

func (f *fakePrefs) ShouldNotify(tenantID uint, eventType, channel string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.disabled[eventType+"/"+channel], nil
}

type fakePush struct {
	sent []string
	err  error
}

func (f *fakePush) SendToTenant(tenantID uint, eventType string, data interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, eventType)
	return nil
}

type fakeEmail struct {
	sent []string
	err  error
}

func (f *fakeEmail) Send(tenantID uint, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, subject)
	return nil
}

type fakeInApp struct {
	saved []*models.Notification
	err   error
}

func (f *fakeInApp) SaveNotification(n *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, n)
	return nil
}

func TestNotifyDeliversOnAllEnabledChannels(t *testing.T) {
	push := &fakePush{}
	email := &fakeEmail{}
	inApp := &fakeInApp{}
	n := NewNotifier(&fakePrefs{disabled: map[string]bool{}}, push, email, inApp)

	n.Notify(1, models.EventServiceStarted, "Service started", "buy_orders is running")

	assert.Len(t, push.sent, 1)
	assert.Len(t, email.sent, 1)
	assert.Len(t, inApp.saved, 1)
	assert.Equal(t, models.EventServiceStarted, inApp.saved[0].EventType)
}

func TestNotifySkipsDisabledChannels(t *testing.T) {
	push := &fakePush{}
	email := &fakeEmail{}
	inApp := &fakeInApp{}
	prefs := &fakePrefs{disabled: map[string]bool{
		models.EventServiceStopped + "/" + models.ChannelEmail: true,
	}}
	n := NewNotifier(prefs, push, email, inApp)

	n.Notify(1, models.EventServiceStopped, "Service stopped", "sell_monitor stopped")

	assert.Len(t, push.sent, 1)
	assert.Empty(t, email.sent)
	assert.Len(t, inApp.saved, 1)
}

func TestNotifyFailingChannelDoesNotBlockOthers(t *testing.T) {
	push := &fakePush{err: errors.New("queue full")}
	email := &fakeEmail{err: errors.New("smtp down")}
	inApp := &fakeInApp{}
	n := NewNotifier(&fakePrefs{disabled: map[string]bool{}}, push, email, inApp)

	n.Notify(1, models.EventExecutionCompleted, "Execution completed", "analysis finished")

	// In-app still delivered and persisted despite both other channels failing
	assert.Len(t, inApp.saved, 1)
}

func TestNotifyPreferenceErrorFailsClosed(t *testing.T) {
	push := &fakePush{}
	email := &fakeEmail{}
	inApp := &fakeInApp{}
	n := NewNotifier(&fakePrefs{err: errors.New("db down")}, push, email, inApp)

	n.Notify(1, models.EventServiceStarted, "Service started", "msg")

	assert.Empty(t, push.sent)
	assert.Empty(t, email.sent)
	assert.Empty(t, inApp.saved)
}
