package domain

import "time"

const DefaultSessionTitle = "New chat"

// Session groups the chat history of one conversation thread.
type Session struct {
	ID        string    `json:"session_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionMessage is one persisted chat turn. Only user and assistant turns are
// stored; system and tool messages are request-scoped and never persisted.
type SessionMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
