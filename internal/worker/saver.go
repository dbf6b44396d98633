package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/repository"
)

const (
	titleMaxLen   = 50
	previewMaxLen = 100
	saveTimeout   = 10 * time.Second
)

// SaveRequest is an immutable snapshot of one completed turn, handed to the
// saver after the client stream has finished. Nothing here references the
// live request.
type SaveRequest struct {
	UserID           string
	ConversationID   string
	UserMessage      string
	AssistantMessage string
	Model            string
	Usage            *models.Usage
}

// Saver persists completed turns in the background. The handler enqueues and
// returns; a dropped or failed save loses that turn's history but never the
// response the client already received.
type Saver struct {
	conversations *repository.Conversations
	messages      *repository.Messages
	tasks         chan SaveRequest
	stop          chan struct{}
	done          chan struct{}
	workers       int
	log           zerolog.Logger
}

func NewSaver(conversations *repository.Conversations, messages *repository.Messages, queueSize, workers int, log zerolog.Logger) *Saver {
	if workers < 1 {
		workers = 1
	}
	return &Saver{
		conversations: conversations,
		messages:      messages,
		tasks:         make(chan SaveRequest, queueSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		workers:       workers,
		log:           log.With().Str("component", "saver").Logger(),
	}
}

// Start launches the worker goroutines.
func (s *Saver) Start() {
	remaining := make(chan struct{}, s.workers)
	for i := 0; i < s.workers; i++ {
		go func() {
			s.run()
			remaining <- struct{}{}
		}()
	}
	go func() {
		for i := 0; i < s.workers; i++ {
			<-remaining
		}
		close(s.done)
	}()
}

// Stop drains nothing: queued saves still in the channel are processed, then
// the workers exit. Blocks until they have.
func (s *Saver) Stop() {
	close(s.stop)
	<-s.done
}

// Enqueue hands a completed turn to the background workers. Never blocks the
// request path: when the queue is full the save is dropped and logged.
func (s *Saver) Enqueue(req SaveRequest) {
	select {
	case s.tasks <- req:
	default:
		s.log.Error().
			Str("conversationId", req.ConversationID).
			Str("userId", req.UserID).
			Msg("save queue full, dropping conversation save")
	}
}

func (s *Saver) run() {
	for {
		select {
		case req := <-s.tasks:
			s.process(req)
		case <-s.stop:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case req := <-s.tasks:
					s.process(req)
				default:
					return
				}
			}
		}
	}
}

func (s *Saver) process(req SaveRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if _, _, err := s.Save(ctx, req); err != nil {
		s.log.Error().Err(err).
			Str("conversationId", req.ConversationID).
			Str("userId", req.UserID).
			Msg("background conversation save failed")
	}
}

// Save performs one turn's persistence: lazily creates the conversation,
// appends the user and assistant messages, and refreshes the conversation
// summary fields. Also used synchronously by the non-stream path.
func (s *Saver) Save(ctx context.Context, req SaveRequest) (*models.Message, *models.Message, error) {
	now := time.Now().UTC()

	conv, err := s.conversations.Get(ctx, req.ConversationID)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		conv = &models.Conversation{
			ID:        req.ConversationID,
			UserID:    req.UserID,
			Title:     truncate(req.UserMessage, titleMaxLen),
			CreatedAt: now,
		}
		if err := s.conversations.Create(ctx, conv); err != nil {
			return nil, nil, fmt.Errorf("create conversation: %w", err)
		}
	case err != nil:
		return nil, nil, fmt.Errorf("load conversation: %w", err)
	}

	userMsg := &models.Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      models.RoleUser,
		Content:   req.UserMessage,
		Timestamp: now,
		UserID:    req.UserID,
	}
	if err := s.messages.Append(ctx, conv.ID, userMsg); err != nil {
		return nil, nil, fmt.Errorf("append user message: %w", err)
	}

	assistantMsg := &models.Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   req.AssistantMessage,
		Timestamp: now,
		Model:     req.Model,
		Usage:     req.Usage,
	}
	if err := s.messages.Append(ctx, conv.ID, assistantMsg); err != nil {
		return nil, nil, fmt.Errorf("append assistant message: %w", err)
	}

	conv.MessageCount += 2
	conv.UpdatedAt = now
	conv.LastMessage = &models.LastMessage{
		Content:   truncate(req.AssistantMessage, previewMaxLen),
		Timestamp: now,
	}
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("update conversation: %w", err)
	}

	return userMsg, assistantMsg, nil
}

// truncate cuts on runes, not bytes, so multibyte text never splits
// mid-character.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
