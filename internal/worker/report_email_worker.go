package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/platform/mailer"
)

// ReportEmailJob asks for a session's report to be mailed to Email.
type ReportEmailJob struct {
	SessionKey  string    `json:"session_key"`
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requested_at"`
}

type ReportBuilder interface {
	BuildPDF(ctx context.Context, sessionKey string) ([]byte, error)
}

type MailSender interface {
	Send(ctx context.Context, email mailer.Email) error
}

type ReportMailer struct {
	reports ReportBuilder
	mail    MailSender
	appName string
}

func NewReportMailer(reports ReportBuilder, mail MailSender, appName string) *ReportMailer {
	return &ReportMailer{reports: reports, mail: mail, appName: appName}
}

func (m *ReportMailer) Handle(ctx context.Context, body []byte) error {
	var job ReportEmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode report email job failed: %w: %w", ErrPermanent, err)
	}
	if job.SessionKey == "" {
		return fmt.Errorf("report email job without session: %w", ErrPermanent)
	}
	if _, err := mail.ParseAddress(job.Email); err != nil {
		return fmt.Errorf("report email job address %q: %w: %w", job.Email, ErrPermanent, err)
	}

	pdf, err := m.reports.BuildPDF(ctx, job.SessionKey)
	if err != nil {
		return fmt.Errorf("build report failed: %w", err)
	}

	err = m.mail.Send(ctx, mailer.Email{
		To:      job.Email,
		Subject: fmt.Sprintf("%s: your question & answer report", m.appName),
		Body:    "Attached is the report of your questions and answers, including links to your uploaded files.",
		Attachments: []mailer.Attachment{
			{Name: fmt.Sprintf("qa-report-%s.pdf", time.Now().Format("20060102-150405")), Data: pdf},
		},
	})
	if err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return err
	}

	logging.Info("report emailed", "session", job.SessionKey, "to", job.Email, "bytes", len(pdf))
	return nil
}
