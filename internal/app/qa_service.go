package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"smartfile-qa/internal/ai"
	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/pkg/pdfextract"
	"smartfile-qa/internal/repository"
	"smartfile-qa/internal/worker"
)

const systemPrompt = "You are a helpful assistant that answers questions about a file the user uploaded. " +
	"Base your answer on the file content when it is provided and say so when the file does not contain the answer."

const emptyAnswer = "The model returned an empty response."

type Completer interface {
	Configured() bool
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type JobPublisher interface {
	Publish(ctx context.Context, payload interface{}) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionKey string) ([]model.Conversation, bool, error)
	SetHistory(ctx context.Context, sessionKey string, conversations []model.Conversation) error
	DeleteHistory(ctx context.Context, sessionKey string) error
	MarkDirty(ctx context.Context, sessionKey string) error
	IsDirty(ctx context.Context, sessionKey string) (bool, error)
}

type AskInput struct {
	Session  *model.Session
	Question string
	FileID   string
}

type AskResult struct {
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	HasFile        bool      `json:"has_file"`
	FileName       string    `json:"file_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type QAService struct {
	files            *FileService
	conversationRepo *repository.ConversationRepository
	llm              Completer
	publisher        JobPublisher
	historyCache     HistoryCache
	maxFileChars     int
}

func NewQAService(
	files *FileService,
	conversationRepo *repository.ConversationRepository,
	llm Completer,
	publisher JobPublisher,
	historyCache HistoryCache,
	maxFileChars int,
) *QAService {
	if maxFileChars <= 0 {
		maxFileChars = 12000
	}
	return &QAService{
		files:            files,
		conversationRepo: conversationRepo,
		llm:              llm,
		publisher:        publisher,
		historyCache:     historyCache,
		maxFileChars:     maxFileChars,
	}
}

// Ask answers a question, optionally about a file, and records the exchange.
// Without an explicit file id the session's latest upload is used when there
// is one.
func (s *QAService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	if input.Session == nil {
		return nil, ErrSessionNotFound
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrQuestionEmpty
	}
	if s.llm == nil || !s.llm.Configured() {
		return nil, ErrLLMNotConfigured
	}

	file, err := s.files.Content(ctx, input.Session, input.FileID)
	switch {
	case errors.Is(err, ErrFileNotFound) && strings.TrimSpace(input.FileID) == "":
		file = nil
	case err != nil:
		return nil, err
	}

	messages := []ai.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: s.buildUserPrompt(question, file)},
	}

	started := time.Now()
	answer, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(started)

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = emptyAnswer
	}

	result := &AskResult{
		Question:       question,
		Answer:         answer,
		ResponseTimeMS: elapsed.Milliseconds(),
		HasFile:        file != nil,
		CreatedAt:      time.Now(),
	}
	if file != nil {
		result.FileName = file.Name
	}

	s.record(ctx, input.Session, result)
	return result, nil
}

// History returns the session's newest limit conversations, oldest first.
// Reads go through redis unless a write is still in flight.
func (s *QAService) History(ctx context.Context, session *model.Session, limit int) ([]model.Conversation, error) {
	if session == nil {
		return nil, ErrSessionNotFound
	}

	key := session.SessionKey
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, key)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, key); cacheErr == nil && hit {
				return trimConversations(cached, limit), nil
			}
		}
	}

	// The cache always holds the full window; limit only trims the reply.
	conversations, err := s.conversationRepo.ListBySessionID(ctx, session.ID, repository.MaxConversationHistory)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, key); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, key, conversations)
		}
	}
	return trimConversations(conversations, limit), nil
}

// record queues the exchange for persistence. When the queue is unavailable
// the row is written directly so the history is never lost.
func (s *QAService) record(ctx context.Context, session *model.Session, result *AskResult) {
	job := worker.ConversationJob{
		SessionRowID:   session.ID,
		SessionKey:     session.SessionKey,
		Prompt:         result.Question,
		Answer:         result.Answer,
		ResponseTimeMS: result.ResponseTimeMS,
		HasFile:        result.HasFile,
		FileName:       result.FileName,
		CreatedAt:      result.CreatedAt,
	}

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, session.SessionKey)
		_ = s.historyCache.DeleteHistory(ctx, session.SessionKey)
	}

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, job)
		if err == nil {
			return
		}
		logging.Warn("enqueue conversation failed, writing directly", "session", session.SessionKey, "err", err)
	}

	row := &model.Conversation{
		SessionID:      session.ID,
		Prompt:         job.Prompt,
		Answer:         job.Answer,
		ResponseTimeMS: job.ResponseTimeMS,
		HasFile:        job.HasFile,
		FileName:       job.FileName,
		CreatedAt:      job.CreatedAt,
	}
	if err := s.conversationRepo.Create(ctx, row); err != nil {
		logging.Error("persist conversation failed", "session", session.SessionKey, "err", err)
		return
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, session.SessionKey)
	}
}

func (s *QAService) buildUserPrompt(question string, file *FileContent) string {
	if file == nil {
		return question
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File name: %s\nFile type: %s\nFile size: %s\n", file.Name, file.MimeType, humanize.Bytes(uint64(len(file.Data))))

	text, ok := s.fileText(file)
	if ok && text != "" {
		b.WriteString("\nFile content:\n")
		b.WriteString(text)
		b.WriteString("\n")
	} else {
		if summary, ok := imageSummary(file.Data); ok {
			fmt.Fprintf(&b, "Image details: %s\n", summary)
		}
		b.WriteString("\nThe file content is not available as text; answer from the file metadata.\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

func (s *QAService) fileText(file *FileContent) (string, bool) {
	mimeType := strings.ToLower(file.MimeType)
	switch {
	case strings.HasPrefix(mimeType, "application/pdf"):
		text, err := pdfextract.ExtractText(file.Data, s.maxFileChars)
		if err != nil {
			logging.Warn("extract pdf text failed", "file", file.Name, "err", err)
			return "", false
		}
		return text, true
	case strings.HasPrefix(mimeType, "text/"),
		strings.HasPrefix(mimeType, "application/json"),
		strings.HasPrefix(mimeType, "application/xml"):
		return pdfextract.Truncate(string(file.Data), s.maxFileChars), true
	default:
		return "", false
	}
}

func trimConversations(conversations []model.Conversation, limit int) []model.Conversation {
	if limit <= 0 || limit >= len(conversations) {
		return conversations
	}
	return conversations[len(conversations)-limit:]
}

func parseFileID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidInput
	}
	return uint(id), nil
}
