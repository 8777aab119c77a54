package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"smartfile-qa/internal/model"
)

type Totals struct {
	Sessions      int64 `json:"total_sessions"`
	Users         int64 `json:"total_users"`
	Files         int64 `json:"total_files"`
	Conversations int64 `json:"total_conversations"`
	StorageBytes  int64 `json:"total_storage_bytes"`
}

// MaxRecentRows caps each list returned by Recent.
const MaxRecentRows = 100

type SessionRow struct {
	ID         uint      `json:"id"`
	SessionKey string    `json:"session_id"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type FileRow struct {
	ID           uint      `json:"id"`
	SessionKey   string    `json:"session_id"`
	StoredName   string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

type ConversationRow struct {
	ID             uint      `json:"id"`
	SessionKey     string    `json:"session_id"`
	Prompt         string    `json:"prompt"`
	Answer         string    `json:"answer"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	HasFile        bool      `json:"has_file"`
	FileName       string    `json:"file_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recent holds the newest rows of every table, newest first.
type Recent struct {
	Sessions      []SessionRow      `json:"sessions"`
	Users         []model.User      `json:"users"`
	Files         []FileRow         `json:"files"`
	Conversations []ConversationRow `json:"conversations"`
}

type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Totals(ctx context.Context) (*Totals, error) {
	db := r.db.WithContext(ctx)
	var totals Totals

	if err := db.Model(&model.Session{}).Count(&totals.Sessions).Error; err != nil {
		return nil, fmt.Errorf("count sessions failed: %w", err)
	}
	if err := db.Model(&model.User{}).Count(&totals.Users).Error; err != nil {
		return nil, fmt.Errorf("count users failed: %w", err)
	}
	if err := db.Model(&model.File{}).Where("is_deleted = ?", false).Count(&totals.Files).Error; err != nil {
		return nil, fmt.Errorf("count files failed: %w", err)
	}
	if err := db.Model(&model.Conversation{}).Count(&totals.Conversations).Error; err != nil {
		return nil, fmt.Errorf("count conversations failed: %w", err)
	}
	err := db.Model(&model.File{}).
		Where("is_deleted = ?", false).
		Select("COALESCE(SUM(size), 0)").
		Scan(&totals.StorageBytes).Error
	if err != nil {
		return nil, fmt.Errorf("sum storage failed: %w", err)
	}
	return &totals, nil
}

// Recent lists up to limit rows per table. Deleted files are left out.
func (r *StatsRepository) Recent(ctx context.Context, limit int) (*Recent, error) {
	if limit <= 0 || limit > MaxRecentRows {
		limit = MaxRecentRows
	}
	db := r.db.WithContext(ctx)
	recent := &Recent{
		Sessions:      make([]SessionRow, 0),
		Users:         make([]model.User, 0),
		Files:         make([]FileRow, 0),
		Conversations: make([]ConversationRow, 0),
	}

	err := db.Model(&model.Session{}).
		Select("sessions.id, sessions.session_key, COALESCE(users.email, '') AS email, sessions.created_at, sessions.updated_at").
		Joins("LEFT JOIN users ON users.id = sessions.user_id").
		Order("sessions.created_at DESC").
		Order("sessions.id DESC").
		Limit(limit).
		Scan(&recent.Sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list recent sessions failed: %w", err)
	}

	err = db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&recent.Users).Error
	if err != nil {
		return nil, fmt.Errorf("list recent users failed: %w", err)
	}

	err = db.Model(&model.File{}).
		Select("files.id, sessions.session_key, files.stored_name, files.original_name, files.mime_type, files.size, files.uploaded_at").
		Joins("JOIN sessions ON sessions.id = files.session_id").
		Where("files.is_deleted = ?", false).
		Order("files.uploaded_at DESC").
		Order("files.id DESC").
		Limit(limit).
		Scan(&recent.Files).Error
	if err != nil {
		return nil, fmt.Errorf("list recent files failed: %w", err)
	}

	err = db.Model(&model.Conversation{}).
		Select("conversations.id, sessions.session_key, conversations.prompt, conversations.answer, conversations.response_time_ms, conversations.has_file, conversations.file_name, conversations.created_at").
		Joins("JOIN sessions ON sessions.id = conversations.session_id").
		Order("conversations.created_at DESC").
		Order("conversations.id DESC").
		Limit(limit).
		Scan(&recent.Conversations).Error
	if err != nil {
		return nil, fmt.Errorf("list recent conversations failed: %w", err)
	}
	return recent, nil
}
