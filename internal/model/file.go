package model

import (
	"strconv"
	"time"
)

// File is the catalog row for an uploaded file. StoragePath is relative to
// the upload root so rows stay valid when the root moves.
type File struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionID    uint      `gorm:"not null;index" json:"-"`
	StoredName   string    `gorm:"size:255;not null" json:"filename"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	MimeType     string    `gorm:"size:100;not null" json:"mimetype"`
	Size         int64     `gorm:"not null" json:"size"`
	StoragePath  string    `gorm:"size:500;not null" json:"-"`
	UploadedAt   time.Time `gorm:"autoCreateTime;index" json:"uploaded_at"`
	IsDeleted    bool      `gorm:"not null;default:false;index" json:"-"`
}

// Key is the identifier used in download links and tokens.
func (f *File) Key() string {
	return strconv.FormatUint(uint64(f.ID), 10)
}
