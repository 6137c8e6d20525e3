package smtp

import (
	"context"

	"github.com/claytile-api/internal/config"
	"gopkg.in/gomail.v2"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type mailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:     cfg.SMTPFrom,
		fromName: cfg.SMTPFromName,
	}
}

func (m *mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := newMessage(m.from, m.fromName, to, subject, body)
	return m.dialer.DialAndSend(msg)
}

func newMessage(from, fromName, to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(from, fromName))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}
