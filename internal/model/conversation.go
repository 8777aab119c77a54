package model

import "time"

// Conversation is one question/answer exchange. Rows are append-only.
type Conversation struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionID      uint      `gorm:"not null;index" json:"-"`
	Prompt         string    `gorm:"type:text;not null" json:"prompt"`
	Answer         string    `gorm:"type:text;not null" json:"answer"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	HasFile        bool      `gorm:"not null;default:false" json:"has_file"`
	FileName       string    `gorm:"size:255" json:"file_name,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}
