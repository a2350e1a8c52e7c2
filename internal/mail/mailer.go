package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/uniregistry/course_registration/internal/config"
)

// Mailer delivers outbound mail. Handlers depend on the interface so
// tests can capture messages without a running SMTP server.
type Mailer interface {
	SendPasswordReset(to, link string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.MAIL_HOST, cfg.MAIL_PORT, cfg.MAIL_USERNAME, cfg.MAIL_PASSWORD),
		from:   cfg.MAIL_FROM,
	}
}

func (m *SMTPMailer) SendPasswordReset(to, link string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Password reset request")
	msg.SetBody("text/plain", fmt.Sprintf(
		"A password reset was requested for this address.\n\n"+
			"Follow the link below to choose a new password. The link expires shortly.\n\n%s\n", link))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// ResetLink embeds the reset token into the frontend reset page URL.
func ResetLink(frontendDomain, resetPath, token string) string {
	return fmt.Sprintf("%s%s?secret_token=%s", frontendDomain, resetPath, token)
}
