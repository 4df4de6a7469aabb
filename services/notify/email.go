package notify

import (
	"fmt"
	"log"
	"net/smtp"

	"go_trading_automation/models"
)

// TenantDirectory resolves tenant records for address lookup
type TenantDirectory interface {
	GetTenant(id uint) (*models.Tenant, error)
}

// SMTPSender delivers email notifications through a plain SMTP relay. When no
// host is configured it degrades to a log-only sender so the email channel
// stays wired in development.
type SMTPSender struct {
	host    string
	port    string
	from    string
	tenants TenantDirectory
}

// NewSMTPSender creates an email sender
func NewSMTPSender(host, port, from string, tenants TenantDirectory) *SMTPSender {
	return &SMTPSender{host: host, port: port, from: from, tenants: tenants}
}

// Send delivers one message to the tenant's registered address
func (s *SMTPSender) Send(tenantID uint, subject, body string) error {
	tenant, err := s.tenants.GetTenant(tenantID)
	if err != nil {
		return fmt.Errorf("failed to resolve tenant %d for email: %w", tenantID, err)
	}
	if tenant == nil || tenant.Email == "" {
		return fmt.Errorf("tenant %d has no email address", tenantID)
	}

	if s.host == "" {
		log.Printf("SMTP not configured, skipping email to %s: %s", tenant.Email, subject)
		return nil
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.from, tenant.Email, subject, body))

	addr := s.host + ":" + s.port
	if err := smtp.SendMail(addr, nil, s.from, []string{tenant.Email}, msg); err != nil {
		return fmt.Errorf("failed to send email to tenant %d: %w", tenantID, err)
	}
	return nil
}
