package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docuchat/internal/ai"
	"docuchat/internal/model"
)

var (
	ErrNoContent   = errors.New("document has no extractable text content")
	ErrTurnEnqueue = errors.New("turn enqueue failed")
)

const systemPromptTemplate = `You are a helpful AI assistant that answers questions about PDF documents.

The user has uploaded a document titled %q. Here is the content of the document:

%s

Please answer questions based on this document content. Be helpful, accurate, and cite specific parts of the document when relevant. If a question cannot be answered from the document content, politely explain that the information is not available in the provided document.`

// ChatStore is the persistence boundary for chats.
type ChatStore interface {
	GetByDocumentIDAndUserID(documentID uint, userID string) (*model.Chat, error)
	ReplaceMessages(documentID uint, userID string, messages model.MessageList) error
}

// TurnPublisher enqueues chat-turn overwrite jobs.
type TurnPublisher interface {
	Publish(ctx context.Context, job model.TurnPersistJob) error
}

// ChatCompleter streams a model completion, forwarding deltas to onChunk.
type ChatCompleter interface {
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

type ChatService struct {
	docStore        DocumentStore
	chatStore       ChatStore
	publisher       TurnPublisher
	contentCache    DocumentCache
	llmClient       ChatCompleter
	llmConfig       ai.ChatConfig
	maxTurnMessages int
}

func NewChatService(
	docStore DocumentStore,
	chatStore ChatStore,
	publisher TurnPublisher,
	contentCache DocumentCache,
	llmClient ChatCompleter,
	llmConfig ai.ChatConfig,
	maxTurnMessages int,
) *ChatService {
	if maxTurnMessages <= 0 {
		maxTurnMessages = 200
	}
	return &ChatService{
		docStore:        docStore,
		chatStore:       chatStore,
		publisher:       publisher,
		contentCache:    contentCache,
		llmClient:       llmClient,
		llmConfig:       llmConfig,
		maxTurnMessages: maxTurnMessages,
	}
}

type ConverseInput struct {
	UserID     string
	DocumentID uint
	Messages   model.MessageList
}

// Converse loads the caller's document, wraps its full content in the
// system prompt, and streams the model reply through onChunk. Nothing is
// persisted here: the turn is saved separately once the client has the
// complete reply, so a dropped stream never corrupts the message list.
func (s *ChatService) Converse(ctx context.Context, input ConverseInput, onChunk func(string) error) (string, error) {
	if input.UserID == "" || input.DocumentID == 0 || len(input.Messages) == 0 {
		return "", ErrInvalidInput
	}
	if len(input.Messages) > s.maxTurnMessages {
		return "", fmt.Errorf("%w: message list exceeds %d entries", ErrInvalidInput, s.maxTurnMessages)
	}
	if err := input.Messages.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	name, content, err := s.loadDocumentContent(ctx, input.UserID, input.DocumentID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrNoContent
	}

	prompt := make([]ai.ChatMessage, 0, len(input.Messages)+1)
	prompt = append(prompt, ai.ChatMessage{
		Role:    string(model.RoleSystem),
		Content: fmt.Sprintf(systemPromptTemplate, name, content),
	})
	for _, m := range input.Messages {
		prompt = append(prompt, ai.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	return s.llmClient.StreamComplete(ctx, s.llmConfig, prompt, onChunk)
}

// GetChat returns the chat for a document; missing and not-owned look
// identical to the caller.
func (s *ChatService) GetChat(userID string, documentID uint) (*model.Chat, error) {
	if userID == "" || documentID == 0 {
		return nil, ErrInvalidInput
	}
	chat, err := s.chatStore.GetByDocumentIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrDocumentNotFound
	}
	return chat, nil
}

type PersistTurnInput struct {
	UserID     string
	DocumentID uint
	Messages   model.MessageList
}

// PersistTurn validates ownership and message shape, then enqueues an
// overwrite of the chat's message list. Overwrites are last-write-wins,
// so replaying the same list is harmless.
func (s *ChatService) PersistTurn(ctx context.Context, input PersistTurnInput) error {
	// An empty list would erase the chat, seeded greeting included.
	if input.UserID == "" || input.DocumentID == 0 || len(input.Messages) == 0 {
		return ErrInvalidInput
	}
	if len(input.Messages) > s.maxTurnMessages {
		return fmt.Errorf("%w: message list exceeds %d entries", ErrInvalidInput, s.maxTurnMessages)
	}
	if err := input.Messages.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	chat, err := s.chatStore.GetByDocumentIDAndUserID(input.DocumentID, input.UserID)
	if err != nil {
		return err
	}
	if chat == nil {
		return ErrDocumentNotFound
	}

	if s.publisher == nil {
		return ErrTurnEnqueue
	}
	if err := s.publisher.Publish(ctx, model.TurnPersistJob{
		DocumentID: input.DocumentID,
		UserID:     input.UserID,
		Messages:   input.Messages,
	}); err != nil {
		return ErrTurnEnqueue
	}
	return nil
}

// loadDocumentContent serves chat turns from the content cache when
// possible; ownership is re-checked on every miss because cache keys are
// user-scoped and misses fall back to a user-filtered query.
func (s *ChatService) loadDocumentContent(ctx context.Context, userID string, documentID uint) (string, string, error) {
	if s.contentCache != nil {
		if name, content, hit, err := s.contentCache.Get(ctx, userID, documentID); err == nil && hit {
			return name, content, nil
		}
	}

	doc, err := s.docStore.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return "", "", err
	}
	if doc == nil {
		return "", "", ErrDocumentNotFound
	}
	if s.contentCache != nil {
		_ = s.contentCache.Set(ctx, userID, documentID, doc.Name, doc.Content)
	}
	return doc.Name, doc.Content, nil
}
