package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/repository"
)

const (
	conversationTitleMaxLen = 100

	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ConversationPage is one page of a user's conversation list.
type ConversationPage struct {
	Conversations []*models.Conversation `json:"conversations"`
	Pagination    models.Pagination      `json:"pagination"`
}

// Conversation serves the conversation CRUD surface. Every operation
// checks ownership before touching anything.
type Conversation struct {
	conversations *repository.Conversations
	messages      *repository.Messages
	log           zerolog.Logger
}

func NewConversation(conversations *repository.Conversations, messages *repository.Messages, log zerolog.Logger) *Conversation {
	return &Conversation{
		conversations: conversations,
		messages:      messages,
		log:           log.With().Str("component", "conversation").Logger(),
	}
}

// List returns one page of the user's conversations, most recently updated
// first.
func (s *Conversation) List(ctx context.Context, userID string, page, limit int) (*ConversationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	all, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	total := len(all)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &ConversationPage{
		Conversations: all[start:end],
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *Conversation) Create(ctx context.Context, userID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Message: "Title is required"}
	}
	if utf8.RuneCountInString(title) > conversationTitleMaxLen {
		return nil, &ValidationError{Message: "Title is too long"}
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        "conv_" + uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Conversation) Rename(ctx context.Context, userID, conversationID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Message: "Title is required"}
	}
	if utf8.RuneCountInString(title) > conversationTitleMaxLen {
		return nil, &ValidationError{Message: "Title is too long"}
	}

	conv, err := s.owned(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Delete removes the conversation, its message list, and every message.
func (s *Conversation) Delete(ctx context.Context, userID, conversationID string) error {
	conv, err := s.owned(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if err := s.messages.DeleteAll(ctx, conversationID); err != nil {
		return err
	}
	return s.conversations.Delete(ctx, conv)
}

// Messages returns the full history of an owned conversation, oldest first.
func (s *Conversation) Messages(ctx context.Context, userID, conversationID string) ([]*models.Message, error) {
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, conversationID)
}

func (s *Conversation) owned(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
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
	return conv, nil
}
