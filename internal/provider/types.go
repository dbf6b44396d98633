package provider

import "deeptalk-backend/internal/models"

// ChatMessage is one turn of history sent upstream.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat-completions request body. Thinking flags are set
// per model family by applyThinking.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Stream         bool            `json:"stream"`
	EnableThinking *bool           `json:"enable_thinking,omitempty"`
	Thinking       *ThinkingConfig `json:"thinking,omitempty"`
}

type ThinkingConfig struct {
	Type string `json:"type"`
}

// ChatResponse is the blocking (non-streaming) completion response.
type ChatResponse struct {
	Choices []Choice      `json:"choices"`
	Usage   *models.Usage `json:"usage,omitempty"`
}

type Choice struct {
	Message ChatMessage `json:"message"`
}

// StreamChunk is one decoded streaming event payload. Deltas carry answer
// text in Content and thinking text in ReasoningContent; usage typically
// arrives once, in the final chunk.
type StreamChunk struct {
	Choices []ChunkChoice `json:"choices"`
	Usage   *models.Usage `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Delta ChunkDelta `json:"delta"`
}

type ChunkDelta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}
