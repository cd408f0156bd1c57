package alert

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPAlerter sends alerts over Gmail SMTP (smtp.gmail.com:587,
// STARTTLS login).
type SMTPAlerter struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

// NewSMTPAlerter builds an SMTPAlerter that authenticates as fromEmail
// and delivers to every address in toEmails.
func NewSMTPAlerter(fromEmail, password string, toEmails []string) *SMTPAlerter {
	return &SMTPAlerter{
		dialer: gomail.NewDialer("smtp.gmail.com", 587, fromEmail, password),
		from:   fromEmail,
		to:     toEmails,
	}
}

func (a *SMTPAlerter) send(subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", a.from)
	m.SetHeader("To", a.to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := a.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send alert %q: %w", subject, err)
	}
	return nil
}

// Trade implements Alerter.
func (a *SMTPAlerter) Trade(ctx context.Context, subject, message string) error {
	return a.send(subject, message)
}

// Fatal implements Alerter.
func (a *SMTPAlerter) Fatal(ctx context.Context, subject, message string) error {
	return a.send("[FATAL] "+subject, message)
}

var _ Alerter = (*SMTPAlerter)(nil)
