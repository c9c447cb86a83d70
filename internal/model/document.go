package model

import "time"

// Document is one uploaded PDF and its extracted text. Content is written
// once at creation and never updated; re-extraction is not supported.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"user_id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Size      int64     `gorm:"not null" json:"size"`
	Content   string    `gorm:"type:longtext;not null" json:"content"`
	FileURL   string    `gorm:"size:512;not null" json:"file_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
