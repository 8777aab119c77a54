package repository

import (
	"context"
	"fmt"
	"slices"

	"gorm.io/gorm"

	"smartfile-qa/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *model.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

// MaxConversationHistory caps how many rows one history load returns.
const MaxConversationHistory = 500

// ListBySessionID returns the newest limit conversations of a session in
// chronological order. A limit of zero or above MaxConversationHistory
// means MaxConversationHistory.
func (r *ConversationRepository) ListBySessionID(ctx context.Context, sessionID uint, limit int) ([]model.Conversation, error) {
	if limit <= 0 || limit > MaxConversationHistory {
		limit = MaxConversationHistory
	}

	conversations := make([]model.Conversation, 0)
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	slices.Reverse(conversations)
	return conversations, nil
}
