package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/provider"
	"deeptalk-backend/internal/relay"
	"deeptalk-backend/internal/repository"
	"deeptalk-backend/internal/worker"
)

const (
	defaultModel       = "glm-4.6"
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
	minTemperature     = 0.0
	maxTemperature     = 2.0
	minMaxTokens       = 1
	maxMaxTokens       = 8000
	historyLookback    = 10
)

// Turn is one prepared chat turn: ownership checked, history loaded, and the
// conversation id resolved before anything touches the upstream.
type Turn struct {
	UserID         string
	ConversationID string
	UserMessage    string
	Config         models.ModelConfig

	upstream *provider.ChatRequest
}

// Chat orchestrates chat turns: request resolution, the streaming relay, the
// blocking fallback, and the hand-off to persistence.
type Chat struct {
	provider      *provider.Client
	conversations *repository.Conversations
	messages      *repository.Messages
	saver         *worker.Saver
	log           zerolog.Logger
}

func NewChat(p *provider.Client, conversations *repository.Conversations, messages *repository.Messages, saver *worker.Saver, log zerolog.Logger) *Chat {
	return &Chat{
		provider:      p,
		conversations: conversations,
		messages:      messages,
		saver:         saver,
		log:           log.With().Str("component", "chat").Logger(),
	}
}

// ResolveModel turns the request's model parameter, either a plain model
// name or a full configuration object, into one validated ModelConfig.
func ResolveModel(raw json.RawMessage) (models.ModelConfig, error) {
	cfg := models.ModelConfig{
		Model:       defaultModel,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	if len(raw) == 0 {
		return cfg, nil
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if name != "" {
			cfg.Model = provider.NormalizeModel(name)
		}
		return cfg, nil
	}

	var obj struct {
		Model          string   `json:"model"`
		Temperature    *float64 `json:"temperature"`
		MaxTokens      *int     `json:"maxTokens"`
		StreamResponse *bool    `json:"streamResponse"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return cfg, &ValidationError{Message: "Invalid model parameter"}
	}
	if obj.Model != "" {
		cfg.Model = provider.NormalizeModel(obj.Model)
	}
	if obj.Temperature != nil {
		cfg.Temperature = clampFloat(*obj.Temperature, minTemperature, maxTemperature)
	}
	if obj.MaxTokens != nil {
		cfg.MaxTokens = clampInt(*obj.MaxTokens, minMaxTokens, maxMaxTokens)
	}
	if obj.StreamResponse != nil {
		cfg.StreamResponse = *obj.StreamResponse
	}
	return cfg, nil
}

// PrepareTurn validates the request, checks conversation ownership, loads
// the history window, and resolves the conversation id. A fresh id is minted
// here so both the done signal and the saved records agree on it.
func (s *Chat) PrepareTurn(ctx context.Context, userID string, req *models.ChatRequest) (*Turn, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, &ValidationError{Message: "Message is required"}
	}

	cfg, err := ResolveModel(req.Model)
	if err != nil {
		return nil, err
	}

	conversationID := req.ConversationID
	var history []*models.Message
	if conversationID != "" {
		conv, err := s.conversations.Get(ctx, conversationID)
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, &NotFoundError{Resource: "Conversation"}
		}
		if err != nil {
			return nil, err
		}
		if conv.UserID != userID {
			return nil, &ForbiddenError{Message: "Access denied"}
		}
		history, err = s.messages.History(ctx, conversationID, historyLookback)
		if err != nil {
			return nil, err
		}
	} else {
		conversationID = "conv_" + uuid.NewString()
	}

	upstreamMsgs := make([]provider.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		upstreamMsgs = append(upstreamMsgs, provider.ChatMessage{Role: m.Role, Content: m.Content})
	}
	upstreamMsgs = append(upstreamMsgs, provider.ChatMessage{Role: models.RoleUser, Content: req.Message})

	return &Turn{
		UserID:         userID,
		ConversationID: conversationID,
		UserMessage:    req.Message,
		Config:         cfg,
		upstream: &provider.ChatRequest{
			Model:       cfg.Model,
			Messages:    upstreamMsgs,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
	}, nil
}

// StreamTurn runs the relay for one turn. The upstream stream is opened
// before any byte reaches the client, so pre-stream failures surface as
// ordinary JSON errors. Once the event stream has started, failures are
// signalled on the stream itself and the turn is not persisted; only the
// successful path enqueues a save.
func (s *Chat) StreamTurn(ctx context.Context, w http.ResponseWriter, turn *Turn) error {
	body := *turn.upstream
	body.Stream = true

	stream, err := s.provider.OpenStream(ctx, &body)
	if err != nil {
		return err
	}
	defer stream.Close()

	mux, err := relay.NewMultiplexer(w)
	if err != nil {
		return err
	}
	if err := mux.Start(); err != nil {
		s.log.Warn().Err(err).
			Str("conversationId", turn.ConversationID).
			Msg("client gone before start signal")
		return nil
	}

	result, err := relay.Run(ctx, stream, mux, turn.ConversationID, s.log)
	if err != nil {
		s.log.Warn().Err(err).
			Str("conversationId", turn.ConversationID).
			Msg("stream failed, skipping persistence")
		return nil
	}

	if result.Malformed > 0 {
		s.log.Warn().Int("count", result.Malformed).
			Str("conversationId", turn.ConversationID).
			Msg("stream contained malformed events")
	}

	s.saver.Enqueue(worker.SaveRequest{
		UserID:           turn.UserID,
		ConversationID:   turn.ConversationID,
		UserMessage:      turn.UserMessage,
		AssistantMessage: result.Content,
		Model:            turn.Config.Model,
		Usage:            result.Usage,
	})
	return nil
}

// CompleteTurn is the blocking fallback: one upstream call, synchronous
// persistence, full reply in the response body.
func (s *Chat) CompleteTurn(ctx context.Context, turn *Turn) (*models.ChatResponse, error) {
	resp, err := s.provider.Complete(ctx, turn.upstream)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &InvalidUpstreamResponseError{Message: "Upstream returned no choices"}
	}

	userMsg, assistantMsg, err := s.saver.Save(ctx, worker.SaveRequest{
		UserID:           turn.UserID,
		ConversationID:   turn.ConversationID,
		UserMessage:      turn.UserMessage,
		AssistantMessage: resp.Choices[0].Message.Content,
		Model:            turn.Config.Model,
		Usage:            resp.Usage,
	})
	if err != nil {
		return nil, err
	}

	return &models.ChatResponse{
		Success:        true,
		Messages:       []models.Message{*userMsg, *assistantMsg},
		ConversationID: turn.ConversationID,
		Usage:          resp.Usage,
	}, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
