package model

import (
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry in a thread's conversation. Messages are embedded in
// their thread document and are not independently addressable.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread is a conversation owned by exactly one user. Messages are kept in
// insertion order; the orchestrator only ever appends.
type Thread struct {
	ThreadID  string    `json:"threadId"`
	OwnerID   string    `json:"userId"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Append adds one message and refreshes the update timestamp.
func (t *Thread) Append(role Role, content string, now time.Time) {
	t.Messages = append(t.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	t.UpdatedAt = now
}
