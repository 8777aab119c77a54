package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"smartfile-qa/internal/model"
)

// FileRepository is the metadata catalog for uploaded files.
type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *model.File) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	return nil
}

// ListSessionFiles returns the non-deleted files of a session, newest first.
// It never returns a nil slice.
func (r *FileRepository) ListSessionFiles(ctx context.Context, sessionKey string) ([]model.File, error) {
	files := make([]model.File, 0)
	err := r.db.WithContext(ctx).
		Select("files.*").
		Joins("JOIN sessions ON sessions.id = files.session_id").
		Where("sessions.session_key = ? AND files.is_deleted = ?", sessionKey, false).
		Order("files.uploaded_at DESC").
		Order("files.id DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list session files failed: %w", err)
	}
	if files == nil {
		files = []model.File{}
	}
	return files, nil
}

func (r *FileRepository) GetByIDAndSessionID(ctx context.Context, id, sessionID uint) (*model.File, error) {
	var file model.File
	err := r.db.WithContext(ctx).
		Where("id = ? AND session_id = ? AND is_deleted = ?", id, sessionID, false).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) SoftDelete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.File{}).Where("id = ?", id).Update("is_deleted", true).Error; err != nil {
		return fmt.Errorf("soft delete file failed: %w", err)
	}
	return nil
}
