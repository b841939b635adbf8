package email

import (
	"context"

	"go.uber.org/zap"

	"makosite/internal/config"
	"makosite/internal/contact"
)

// Notifier sends email notifications for contact queue events.
type Notifier struct {
	service   *Service
	templates *Templates
	cfg       *config.Config
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg *config.Config, logger *zap.Logger) *Notifier {
	return &Notifier{
		service:   NewService(cfg, logger),
		templates: NewTemplates(cfg),
		cfg:       cfg,
	}
}

// NotifyQueued tells the fallback contact address that msg is waiting in the
// queue. The visitor's address is set as Reply-To.
func (n *Notifier) NotifyQueued(_ context.Context, msg contact.QueuedMessage) error {
	if !n.service.IsEnabled() || n.cfg.ContactFallbackEmail == "" {
		return nil
	}

	subject, htmlBody, textBody := n.templates.MessageQueued(msg)
	m := n.service.NewMessage([]string{n.cfg.ContactFallbackEmail}, subject, htmlBody, textBody)
	if msg.Email != "" {
		m.SetAddressHeader("Reply-To", msg.Email, msg.Name)
	}
	return n.service.send(m)
}
