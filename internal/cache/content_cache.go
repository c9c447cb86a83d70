package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// cachedDocument is the redis payload: the two fields every chat turn
// needs without touching MySQL.
type cachedDocument struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ContentCache keeps extracted document text in redis. Content is
// immutable once extracted, so entries only ever expire or get deleted
// along with their document.
type ContentCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewContentCache(client *redisv9.Client, ttl time.Duration) *ContentCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &ContentCache{client: client, ttl: ttl}
}

func (c *ContentCache) Get(ctx context.Context, userID string, documentID uint) (name, content string, hit bool, err error) {
	raw, err := c.client.Get(ctx, c.key(userID, documentID)).Result()
	if err == redisv9.Nil {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("redis get document content failed: %w", err)
	}

	var doc cachedDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", "", false, fmt.Errorf("unmarshal cached document failed: %w", err)
	}
	return doc.Name, doc.Content, true, nil
}

func (c *ContentCache) Set(ctx context.Context, userID string, documentID uint, name, content string) error {
	payload, err := json.Marshal(cachedDocument{Name: name, Content: content})
	if err != nil {
		return fmt.Errorf("marshal document cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID, documentID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set document content failed: %w", err)
	}
	return nil
}

func (c *ContentCache) Delete(ctx context.Context, userID string, documentID uint) error {
	if err := c.client.Del(ctx, c.key(userID, documentID)).Err(); err != nil {
		return fmt.Errorf("redis delete document content failed: %w", err)
	}
	return nil
}

// Keys are user-scoped so a cache hit can never cross users.
func (c *ContentCache) key(userID string, documentID uint) string {
	return fmt.Sprintf("doc:content:%s:%d", userID, documentID)
}
