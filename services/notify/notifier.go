package notify

import (
	"log"

	"go_trading_automation/models"
)

// PreferenceReader looks up per-tenant, per-event, per-channel opt-in flags
type PreferenceReader interface {
	ShouldNotify(tenantID uint, eventType, channel string) (bool, error)
}

// PushSender delivers real-time push messages
type PushSender interface {
	SendToTenant(tenantID uint, eventType string, data interface{}) error
}

// EmailSender delivers email messages
type EmailSender interface {
	Send(tenantID uint, subject, body string) error
}

// InAppStore persists in-app delivery records
type InAppStore interface {
	SaveNotification(n *models.Notification) error
}

// Notifier fans one event out over the push, email, and in-app channels.
// Channels are independent: a disabled or failing channel never prevents
// delivery attempts on the others.
type Notifier struct {
	prefs PreferenceReader
	push  PushSender
	email EmailSender
	inApp InAppStore
}

// NewNotifier creates a notifier
func NewNotifier(prefs PreferenceReader, push PushSender, email EmailSender, inApp InAppStore) *Notifier {
	return &Notifier{prefs: prefs, push: push, email: email, inApp: inApp}
}

// Notify delivers one event to every channel the tenant opted in to
func (n *Notifier) Notify(tenantID uint, eventType, title, message string) {
	if n.channelEnabled(tenantID, eventType, models.ChannelPush) {
		payload := map[string]string{"title": title, "message": message}
		if err := n.push.SendToTenant(tenantID, eventType, payload); err != nil {
			log.Printf("Error sending push notification to tenant %d: %v", tenantID, err)
		}
	}

	if n.channelEnabled(tenantID, eventType, models.ChannelEmail) {
		if err := n.email.Send(tenantID, title, message); err != nil {
			log.Printf("Error sending email notification to tenant %d: %v", tenantID, err)
		}
	}

	if n.channelEnabled(tenantID, eventType, models.ChannelInApp) {
		record := &models.Notification{
			TenantID:  tenantID,
			EventType: eventType,
			Title:     title,
			Message:   message,
		}
		if err := n.inApp.SaveNotification(record); err != nil {
			log.Printf("Error saving in-app notification for tenant %d: %v", tenantID, err)
		}
	}
}

func (n *Notifier) channelEnabled(tenantID uint, eventType, channel string) bool {
	enabled, err := n.prefs.ShouldNotify(tenantID, eventType, channel)
	if err != nil {
		log.Printf("Error reading notification preference for tenant %d: %v", tenantID, err)
		return false
	}
	return enabled
}
