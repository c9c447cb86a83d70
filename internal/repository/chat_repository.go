package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// GetByDocumentIDAndUserID returns (nil, nil) when no chat matches.
func (r *ChatRepository) GetByDocumentIDAndUserID(documentID uint, userID string) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.Where("document_id = ? AND user_id = ?", documentID, userID).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat failed: %w", err)
	}
	return &chat, nil
}

// ReplaceMessages overwrites the chat's message list. Last write wins;
// replaying the same list leaves the row unchanged.
func (r *ChatRepository) ReplaceMessages(documentID uint, userID string, messages model.MessageList) error {
	err := r.db.Model(&model.Chat{}).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		Update("messages", messages).Error
	if err != nil {
		return fmt.Errorf("replace chat messages failed: %w", err)
	}
	return nil
}
