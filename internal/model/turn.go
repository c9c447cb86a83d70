package model

// TurnPersistJob is the queue payload for overwriting a chat's message
// list after a completed exchange. Applying it twice is a no-op beyond
// the first write.
type TurnPersistJob struct {
	DocumentID uint        `json:"document_id"`
	UserID     string      `json:"user_id"`
	Messages   MessageList `json:"messages"`
}
