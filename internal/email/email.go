package email

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"makosite/internal/config"
)

// Service handles sending email notifications.
type Service struct {
	cfg     *config.Config
	enabled bool
	logger  *zap.Logger

	// send delivers a built message; replaced in tests.
	send func(m *gomail.Message) error
}

// NewService creates a new email service.
func NewService(cfg *config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cfg:     cfg,
		enabled: cfg.IsEmailEnabled(),
		logger:  logger,
	}
	s.send = func(m *gomail.Message) error {
		return s.dialer().DialAndSend(m)
	}

	if s.enabled {
		logger.Info("email notifications enabled",
			zap.String("host", cfg.SMTPHost), zap.Int("port", cfg.SMTPPort))
	} else {
		logger.Info("email notifications disabled (SMTP not configured)")
	}

	return s
}

// IsEnabled returns true if email is enabled.
func (s *Service) IsEnabled() bool {
	return s.enabled
}

func (s *Service) dialer() *gomail.Dialer {
	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUsername, s.cfg.SMTPPassword)
	d.TLSConfig = &tls.Config{
		ServerName: s.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
	// Implicit TLS (port 465); otherwise gomail upgrades with STARTTLS when offered.
	d.SSL = s.cfg.SMTPTLS == "tls"
	return d
}

// NewMessage builds a multipart message with a plain text body and an HTML
// alternative.
func (s *Service) NewMessage(to []string, subject, htmlBody, textBody string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.SMTPFrom, s.cfg.SMTPFromName)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
		if htmlBody != "" {
			m.AddAlternative("text/html", htmlBody)
		}
	} else {
		m.SetBody("text/html", htmlBody)
	}
	return m
}

// SendEmail sends an email to the specified recipients.
func (s *Service) SendEmail(to []string, subject, htmlBody, textBody string) error {
	if !s.enabled || len(to) == 0 {
		return nil
	}

	if err := s.send(s.NewMessage(to, subject, htmlBody, textBody)); err != nil {
		return fmt.Errorf("send email to %v: %w", to, err)
	}
	s.logger.Debug("email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

// SendAsync sends an email asynchronously (fire and forget with logging).
func (s *Service) SendAsync(to []string, subject, htmlBody, textBody string) {
	if !s.enabled || len(to) == 0 {
		return
	}

	go func() {
		if err := s.SendEmail(to, subject, htmlBody, textBody); err != nil {
			s.logger.Error("failed to send email", zap.Strings("to", to), zap.Error(err))
		}
	}()
}
