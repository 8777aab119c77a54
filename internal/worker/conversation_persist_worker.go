package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/logging"
)

// ConversationJob is the queued form of one answered question.
type ConversationJob struct {
	SessionRowID   uint      `json:"session_row_id"`
	SessionKey     string    `json:"session_key"`
	Prompt         string    `json:"prompt"`
	Answer         string    `json:"answer"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	HasFile        bool      `json:"has_file"`
	FileName       string    `json:"file_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationWriter interface {
	Create(ctx context.Context, conversation *model.Conversation) error
}

type HistoryInvalidator interface {
	DeleteHistory(ctx context.Context, sessionKey string) error
}

// ConversationPersister writes queued conversations and drops the cached
// history of the session so the next read sees the new row.
type ConversationPersister struct {
	repo    ConversationWriter
	history HistoryInvalidator
}

func NewConversationPersister(repo ConversationWriter, history HistoryInvalidator) *ConversationPersister {
	return &ConversationPersister{repo: repo, history: history}
}

func (p *ConversationPersister) Handle(ctx context.Context, body []byte) error {
	var job ConversationJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode conversation job failed: %w: %w", ErrPermanent, err)
	}
	if job.SessionRowID == 0 {
		return fmt.Errorf("conversation job without session: %w", ErrPermanent)
	}

	conversation := &model.Conversation{
		SessionID:      job.SessionRowID,
		Prompt:         job.Prompt,
		Answer:         job.Answer,
		ResponseTimeMS: job.ResponseTimeMS,
		HasFile:        job.HasFile,
		FileName:       job.FileName,
		CreatedAt:      job.CreatedAt,
	}
	if err := p.repo.Create(ctx, conversation); err != nil {
		return err
	}

	if p.history != nil && job.SessionKey != "" {
		if err := p.history.DeleteHistory(ctx, job.SessionKey); err != nil {
			logging.Warn("invalidate history cache failed", "session", job.SessionKey, "err", err)
		}
	}
	return nil
}
