package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"docuchat/internal/model"
	"docuchat/internal/platform/objectstore"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDocumentNotFound = errors.New("document not found")
	ErrUnprocessablePDF = errors.New("this PDF appears to be scanned or image-only and no text could be recovered")
	ErrExtractTimeout   = errors.New("text extraction timed out, please retry")
)

// TextExtractor produces a plain-text transcript from PDF bytes.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// BinaryStore holds the uploaded PDF binaries.
type BinaryStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// DocumentStore is the persistence boundary for documents and their chats.
type DocumentStore interface {
	CreateWithChat(doc *model.Document, chat *model.Chat) error
	ListByUserID(userID string) ([]model.Document, error)
	GetByIDAndUserID(id uint, userID string) (*model.Document, error)
	DeleteWithChat(id uint, userID string) error
}

// DocumentCache caches extracted content between chat turns.
type DocumentCache interface {
	Get(ctx context.Context, userID string, documentID uint) (name, content string, hit bool, err error)
	Set(ctx context.Context, userID string, documentID uint, name, content string) error
	Delete(ctx context.Context, userID string, documentID uint) error
}

type DocumentService struct {
	docStore       DocumentStore
	binaries       BinaryStore
	extractor      TextExtractor
	contentCache   DocumentCache
	extractTimeout time.Duration
}

func NewDocumentService(
	docStore DocumentStore,
	binaries BinaryStore,
	extractor TextExtractor,
	contentCache DocumentCache,
	extractTimeout time.Duration,
) *DocumentService {
	if extractTimeout <= 0 {
		extractTimeout = 120 * time.Second
	}
	return &DocumentService{
		docStore:       docStore,
		binaries:       binaries,
		extractor:      extractor,
		contentCache:   contentCache,
		extractTimeout: extractTimeout,
	}
}

type CreateDocumentInput struct {
	UserID string
	Name   string
	Data   []byte
}

// Create extracts text, stores the binary, and persists the document with
// its seeded chat. When extraction fails nothing is created and the error
// is returned synchronously to the uploader.
func (s *DocumentService) Create(ctx context.Context, input CreateDocumentInput) (*model.Document, error) {
	if input.UserID == "" || len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "document.pdf"
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()
	content, err := s.extractor.Extract(extractCtx, input.Data)
	if err != nil {
		// A timed-out extraction says nothing about the PDF itself; the
		// caller should retry, not be told the file is image-only.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrExtractTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnprocessablePDF, err)
	}

	uploadedAt := time.Now()
	key := objectstore.ObjectKey(input.UserID, name, uploadedAt)
	if err := s.binaries.Put(ctx, key, input.Data); err != nil {
		return nil, err
	}

	doc := &model.Document{
		UserID:  input.UserID,
		Name:    name,
		Size:    int64(len(input.Data)),
		Content: content,
		FileURL: key,
	}
	chat := &model.Chat{
		UserID:   input.UserID,
		Messages: model.MessageList{seedGreeting(name)},
	}
	if err := s.docStore.CreateWithChat(doc, chat); err != nil {
		// Best effort: the row is gone, do not leave the binary behind.
		if rmErr := s.binaries.Remove(ctx, key); rmErr != nil {
			log.Printf("orphaned binary %s: %v", key, rmErr)
		}
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) List(userID string) ([]model.Document, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.docStore.ListByUserID(userID)
}

func (s *DocumentService) Get(userID string, documentID uint) (*model.Document, error) {
	if userID == "" || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docStore.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) Delete(ctx context.Context, userID string, documentID uint) error {
	if userID == "" || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docStore.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.docStore.DeleteWithChat(documentID, userID); err != nil {
		return err
	}
	if s.contentCache != nil {
		_ = s.contentCache.Delete(ctx, userID, documentID)
	}
	if err := s.binaries.Remove(ctx, doc.FileURL); err != nil {
		log.Printf("remove binary for document %d: %v", documentID, err)
	}
	return nil
}

func seedGreeting(name string) model.Message {
	return model.Message{
		ID:   uuid.NewString(),
		Role: model.RoleAssistant,
		Content: fmt.Sprintf(
			"Hello! I've analyzed your PDF document %q. Feel free to ask me any questions about its content.",
			name,
		),
		CreatedAt: time.Now(),
	}
}
