package app

import (
	"context"
	"errors"
	"sync"

	"docuchat/internal/ai"
	"docuchat/internal/model"
)

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeBinaryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	removes []string
	putErr  error
}

func newFakeBinaryStore() *fakeBinaryStore {
	return &fakeBinaryStore{objects: make(map[string][]byte)}
}

func (f *fakeBinaryStore) Put(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBinaryStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.removes = append(f.removes, key)
	return nil
}

// fakeDocumentStore backs both DocumentStore and ChatStore so service
// tests can share one in-memory world.
type fakeDocumentStore struct {
	mu        sync.Mutex
	nextID    uint
	docs      map[uint]*model.Document
	chats     map[uint]*model.Chat
	createErr error

	creates  int
	deletes  int
	replaces int
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		docs:  make(map[uint]*model.Document),
		chats: make(map[uint]*model.Chat),
	}
}

func (f *fakeDocumentStore) CreateWithChat(doc *model.Document, chat *model.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	doc.ID = f.nextID
	chat.DocumentID = doc.ID
	f.docs[doc.ID] = doc
	f.chats[doc.ID] = chat
	f.creates++
	return nil
}

func (f *fakeDocumentStore) ListByUserID(userID string) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Document
	for _, d := range f.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) GetByIDAndUserID(id uint, userID string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.UserID != userID {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (f *fakeDocumentStore) DeleteWithChat(id uint, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	delete(f.chats, id)
	f.deletes++
	return nil
}

func (f *fakeDocumentStore) GetByDocumentIDAndUserID(documentID uint, userID string) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[documentID]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeDocumentStore) ReplaceMessages(documentID uint, userID string, messages model.MessageList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[documentID]
	if !ok || c.UserID != userID {
		return nil
	}
	c.Messages = messages
	f.replaces++
	return nil
}

// fakePublisher optionally delivers jobs straight to a chat store, the
// way the worker would after draining the queue.
type fakePublisher struct {
	mu      sync.Mutex
	jobs    []model.TurnPersistJob
	deliver *fakeDocumentStore
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, job model.TurnPersistJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	if f.deliver != nil {
		return f.deliver.ReplaceMessages(job.DocumentID, job.UserID, job.Messages)
	}
	return nil
}

type fakeCompleter struct {
	chunks   []string
	err      error
	calls    int
	gotCfg   ai.ChatConfig
	gotMsgs  []ai.ChatMessage
	chunkErr error
}

func (f *fakeCompleter) StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	f.calls++
	f.gotCfg = cfg
	f.gotMsgs = messages
	if f.err != nil {
		return "", f.err
	}
	var full string
	for _, c := range f.chunks {
		if f.chunkErr != nil {
			return full, f.chunkErr
		}
		if err := onChunk(c); err != nil {
			return full, err
		}
		full += c
	}
	return full, nil
}

var errStoreDown = errors.New("store down")
