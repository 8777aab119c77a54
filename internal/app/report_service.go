package app

import (
	"bytes"
	"context"
	"time"

	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/report"
	"smartfile-qa/internal/repository"
	"smartfile-qa/internal/worker"
)

const reportHistoryLimit = repository.MaxConversationHistory

type ReportService struct {
	sessionRepo      *repository.SessionRepository
	conversationRepo *repository.ConversationRepository
	files            *FileService
	publisher        JobPublisher
	title            string
}

func NewReportService(
	sessionRepo *repository.SessionRepository,
	conversationRepo *repository.ConversationRepository,
	files *FileService,
	publisher JobPublisher,
	title string,
) *ReportService {
	return &ReportService{
		sessionRepo:      sessionRepo,
		conversationRepo: conversationRepo,
		files:            files,
		publisher:        publisher,
		title:            title,
	}
}

// BuildPDF renders the session's questions, answers and files. File links
// carry tokens minted now, so they expire with the usual token lifetime.
func (s *ReportService) BuildPDF(ctx context.Context, sessionKey string) ([]byte, error) {
	session, err := s.sessionRepo.GetByKey(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	conversations, err := s.conversationRepo.ListBySessionID(ctx, session.ID, reportHistoryLimit)
	if err != nil {
		return nil, err
	}
	files, err := s.files.List(ctx, session)
	if err != nil {
		return nil, err
	}

	doc := report.Report{
		Title:       s.title,
		SessionID:   session.SessionKey,
		GeneratedAt: time.Now(),
		Items:       make([]report.Item, 0, len(conversations)),
		Files:       make([]report.FileLine, 0, len(files)),
	}
	for _, c := range conversations {
		doc.Items = append(doc.Items, report.Item{
			Question:     c.Prompt,
			Answer:       c.Answer,
			FileName:     c.FileName,
			ResponseTime: time.Duration(c.ResponseTimeMS) * time.Millisecond,
			AskedAt:      c.CreatedAt,
		})
	}
	for _, f := range files {
		doc.Files = append(doc.Files, report.FileLine{
			Name:       f.OriginalName,
			MimeType:   f.MimeType,
			Size:       f.Size,
			Link:       f.DownloadURL,
			UploadedAt: f.UploadedAt,
		})
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EnqueueEmail queues the report of session for delivery to email.
func (s *ReportService) EnqueueEmail(ctx context.Context, session *model.Session, email string) (string, error) {
	if session == nil {
		return "", ErrSessionNotFound
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	if s.publisher == nil {
		return "", ErrEnqueue
	}

	job := worker.ReportEmailJob{
		SessionKey:  session.SessionKey,
		Email:       normalized,
		RequestedAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, job); err != nil {
		logging.Error("enqueue report email failed", "session", session.SessionKey, "err", err)
		return "", ErrEnqueue
	}
	return normalized, nil
}
