package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"smartfile-qa/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) GetByKey(ctx context.Context, key string) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Preload("User").Where("session_key = ?", key).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

// CreateOrGet returns the session row for key, inserting it when missing.
func (r *SessionRepository) CreateOrGet(ctx context.Context, key string) (*model.Session, error) {
	session := model.Session{SessionKey: key}
	if err := r.db.WithContext(ctx).Where(model.Session{SessionKey: key}).FirstOrCreate(&session).Error; err != nil {
		return nil, fmt.Errorf("create or get session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) AttachUser(ctx context.Context, sessionID, userID uint) error {
	err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", sessionID).
		Update("user_id", userID).Error
	if err != nil {
		return fmt.Errorf("attach session user failed: %w", err)
	}
	return nil
}
