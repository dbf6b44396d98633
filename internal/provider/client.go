package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// UpstreamError reports a failure to reach the provider or a non-success
// status before any streaming began.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
	}
	return "upstream unavailable: " + e.Message
}

// modelAliases maps shorthand model names to canonical provider identifiers.
var modelAliases = map[string]string{
	"glm-4-6":     "glm-4.6",
	"glm-4-plus":  "glm-4-plus",
	"glm-4-air":   "glm-4-air",
	"glm-4-airx":  "glm-4-airx",
	"glm-4-flash": "glm-4-flash",
}

// NormalizeModel resolves a model alias to its canonical name. Unknown names
// pass through unchanged.
func NormalizeModel(name string) string {
	if canonical, ok := modelAliases[name]; ok {
		return canonical
	}
	return name
}

// Client talks to the GLM chat-completions endpoint.
type Client struct {
	apiURL string
	apiKey string

	// httpClient is used for blocking calls and carries the overall timeout.
	httpClient *http.Client

	// streamClient has no overall timeout: a streaming response body stays
	// open for the duration of the turn. Connection establishment and
	// response headers are still bounded.
	streamClient *http.Client

	log zerolog.Logger
}

func NewClient(apiURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &Client{
		apiURL:       apiURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		log:          log.With().Str("component", "provider").Logger(),
	}
}

// applyThinking sets the provider's extended-reasoning flag for the model
// families that support it. glm-4.6 uses a boolean flag; glm-4.5 uses an
// object parameter.
func applyThinking(req *ChatRequest) {
	switch {
	case strings.Contains(req.Model, "glm-4.6"):
		enabled := true
		req.EnableThinking = &enabled
	case strings.Contains(req.Model, "glm-4.5"):
		req.Thinking = &ThinkingConfig{Type: "enabled"}
	}
}

func (c *Client) newRequest(ctx context.Context, body *ChatRequest) (*http.Request, error) {
	applyThinking(body)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Complete performs one blocking chat completion.
func (c *Client) Complete(ctx context.Context, body *ChatRequest) (*ChatResponse, error) {
	body.Stream = false

	req, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	return &out, nil
}

// OpenStream starts a streaming chat completion and hands back the raw
// event-stream body. The caller owns closing it. A connection failure or
// non-success status is reported before any stream is exposed.
func (c *Client) OpenStream(ctx context.Context, body *ChatRequest) (io.ReadCloser, error) {
	body.Stream = true

	req, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.errorFromResponse(resp)
	}

	return resp.Body, nil
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := "request failed"
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	}

	c.log.Error().Int("status", resp.StatusCode).Str("message", message).Msg("upstream request failed")
	return &UpstreamError{StatusCode: resp.StatusCode, Message: message}
}
