package model

import "time"

// Session is one browser's working context. SessionKey is the opaque
// identifier that appears in cookies, upload paths and file tokens.
type Session struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionKey string    `gorm:"size:64;not null;uniqueIndex" json:"session_id"`
	UserID     *uint     `gorm:"index" json:"user_id,omitempty"`
	User       *User     `gorm:"constraint:OnDelete:SET NULL" json:"user,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
