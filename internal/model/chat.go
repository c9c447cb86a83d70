package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MessageList is stored as a JSON column on the chat row. Scan/Value
// validate every entry so malformed roles never reach or leave storage.
type MessageList []Message

func (l MessageList) Validate() error {
	for i, m := range l {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

func (l MessageList) Value() (driver.Value, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = MessageList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal message list failed: %w", err)
	}
	return string(b), nil
}

func (l *MessageList) Scan(src interface{}) error {
	if src == nil {
		*l = MessageList{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan message list: unsupported type %T", src)
	}
	var parsed MessageList
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("unmarshal message list failed: %w", err)
	}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Chat holds the conversation for one document. Exactly one chat exists
// per document per user; the message list is overwritten wholesale after
// each completed turn.
type Chat struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	DocumentID uint        `gorm:"not null;uniqueIndex" json:"document_id"`
	UserID     string      `gorm:"size:64;not null;index" json:"user_id"`
	Messages   MessageList `gorm:"type:json" json:"messages"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
