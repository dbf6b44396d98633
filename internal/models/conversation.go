package models

import "time"

// Conversation is the durable conversation record stored under conversation:<id>.
// MessageCount advances by exactly two per completed turn; UpdatedAt only moves
// forward.
type Conversation struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	Title        string       `json:"title"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	MessageCount int          `json:"messageCount"`
	LastMessage  *LastMessage `json:"lastMessage,omitempty"`
}

// LastMessage is a preview of the most recent assistant reply.
type LastMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
