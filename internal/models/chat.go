package models

import "encoding/json"

// ChatRequest is the payload sent to the chat message endpoint. Model accepts
// either a bare model-name string or a configuration object; it is resolved
// into one ModelConfig at the request boundary.
type ChatRequest struct {
	Message        string          `json:"message"`
	ConversationID string          `json:"conversationId,omitempty"`
	Model          json.RawMessage `json:"model,omitempty"`
}

// ModelConfig is the canonical, validated model configuration for one turn.
type ModelConfig struct {
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"maxTokens"`
	StreamResponse bool    `json:"streamResponse"`
}

// ChatResponse is the non-streaming turn response: both persisted messages
// plus the resolved conversation and usage.
type ChatResponse struct {
	Success        bool      `json:"success"`
	Messages       []Message `json:"messages"`
	ConversationID string    `json:"conversationId"`
	Usage          *Usage    `json:"usage,omitempty"`
}
