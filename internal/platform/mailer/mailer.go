package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("smtp is not configured")

type Attachment struct {
	Name string
	Data []byte
}

type Email struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(host string, port int, username, password, from string) *SMTPMailer {
	if from == "" {
		from = username
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *SMTPMailer) Configured() bool {
	return m.dialer.Host != "" && m.from != ""
}

// Send delivers one message. gomail has no context support, so ctx is only
// checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(buildMessage(m.from, email)); err != nil {
		return fmt.Errorf("send email failed: %w", err)
	}
	return nil
}

func buildMessage(from string, email Email) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.Body)
	for _, att := range email.Attachments {
		data := att.Data
		msg.Attach(att.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}
	return msg
}
