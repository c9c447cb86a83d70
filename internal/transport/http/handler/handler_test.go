package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"docuchat/internal/ai"
	"docuchat/internal/app"
	"docuchat/internal/model"
	"docuchat/internal/transport/http/middleware"
	"docuchat/internal/transport/http/response"
)

// memStore is a minimal in-memory DocumentStore + ChatStore for handler
// tests.
type memStore struct {
	mu     sync.Mutex
	nextID uint
	docs   map[uint]*model.Document
	chats  map[uint]*model.Chat
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[uint]*model.Document), chats: make(map[uint]*model.Chat)}
}

func (s *memStore) CreateWithChat(doc *model.Document, chat *model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	doc.ID = s.nextID
	chat.DocumentID = doc.ID
	s.docs[doc.ID] = doc
	s.chats[doc.ID] = chat
	return nil
}

func (s *memStore) ListByUserID(userID string) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Document
	for _, d := range s.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *memStore) GetByIDAndUserID(id uint, userID string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok || d.UserID != userID {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (s *memStore) DeleteWithChat(id uint, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	delete(s.chats, id)
	return nil
}

func (s *memStore) GetByDocumentIDAndUserID(documentID uint, userID string) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[documentID]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (s *memStore) ReplaceMessages(documentID uint, userID string, messages model.MessageList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[documentID]; ok && c.UserID == userID {
		c.Messages = messages
	}
	return nil
}

type memBinaries struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBinaries() *memBinaries {
	return &memBinaries{objects: make(map[string][]byte)}
}

func (b *memBinaries) Put(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBinaries) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return e.text, e.err
}

type stubPublisher struct {
	store *memStore
	err   error
	jobs  int
}

func (p *stubPublisher) Publish(ctx context.Context, job model.TurnPersistJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs++
	if p.store != nil {
		return p.store.ReplaceMessages(job.DocumentID, job.UserID, job.Messages)
	}
	return nil
}

type stubCompleter struct {
	chunks []string
	calls  int
}

func (s *stubCompleter) StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	s.calls++
	var full string
	for _, c := range s.chunks {
		if err := onChunk(c); err != nil {
			return full, err
		}
		full += c
	}
	return full, nil
}

type testEnv struct {
	router    *gin.Engine
	store     *memStore
	binaries  *memBinaries
	extractor *stubExtractor
	publisher *stubPublisher
	completer *stubCompleter
}

// newTestEnv wires real services over in-memory fakes and mounts the
// handlers behind a middleware that injects the authenticated user.
func newTestEnv(userID string) *testEnv {
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:     newMemStore(),
		binaries:  newMemBinaries(),
		extractor: &stubExtractor{text: "extracted text"},
		completer: &stubCompleter{chunks: []string{"hi ", "there"}},
	}
	env.publisher = &stubPublisher{store: env.store}

	docSvc := app.NewDocumentService(env.store, env.binaries, env.extractor, nil, 5*time.Second)
	chatSvc := app.NewChatService(env.store, env.store, env.publisher, nil, env.completer, ai.ChatConfig{Model: "test"}, 50)

	docs := NewDocumentHandler(docSvc, 1<<20)
	chats := NewChatHandler(chatSvc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.ContextUserIDKey, userID)
		}
		c.Next()
	})
	v1 := r.Group("/api/v1")
	{
		v1.POST("/documents", docs.Upload)
		v1.GET("/documents", docs.List)
		v1.GET("/documents/:id", docs.Get)
		v1.DELETE("/documents/:id", docs.Delete)
		v1.POST("/chat", chats.Converse)
		v1.POST("/chat/save", chats.SaveTurn)
		v1.GET("/chat", chats.GetChat)
	}
	env.router = r
	return env
}

func multipartPDF(filename string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", filename)
	part.Write(data)
	writer.Close()
	return body, writer.FormDataContentType()
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) uploadPDF(filename string, data []byte) *httptest.ResponseRecorder {
	body, contentType := multipartPDF(filename, data)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	return e.do(req)
}

func decodeEnvelope(body *bytes.Buffer) (response.APIResponse, error) {
	var env response.APIResponse
	err := json.NewDecoder(body).Decode(&env)
	return env, err
}

var errQueueDown = errors.New("queue down")
