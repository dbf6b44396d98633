package repository

import (
	"context"
	"errors"
	"fmt"

	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/models"
)

// Conversations stores conversation records and the per-user conversation
// list. New conversations are pushed to the front of the list; the handler
// re-sorts by updatedAt when serving, so the list order only needs to be
// stable, not current.
type Conversations struct {
	kv kvstore.KV
}

func NewConversations(kv kvstore.KV) *Conversations {
	return &Conversations{kv: kv}
}

func (r *Conversations) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.kv.GetJSON(ctx, conversationKey(id), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *Conversations) Create(ctx context.Context, conv *models.Conversation) error {
	if err := r.kv.SetJSON(ctx, conversationKey(conv.ID), conv, 0); err != nil {
		return fmt.Errorf("create conversation %s: %w", conv.ID, err)
	}
	if err := r.kv.LPush(ctx, userConversations(conv.UserID), conv.ID); err != nil {
		return fmt.Errorf("list conversation %s for user %s: %w", conv.ID, conv.UserID, err)
	}
	return nil
}

func (r *Conversations) Update(ctx context.Context, conv *models.Conversation) error {
	return r.kv.SetJSON(ctx, conversationKey(conv.ID), conv, 0)
}

// Delete removes the conversation record and its entry in the owner's list.
// Message cleanup belongs to the message repository.
func (r *Conversations) Delete(ctx context.Context, conv *models.Conversation) error {
	if err := r.kv.Del(ctx, conversationKey(conv.ID)); err != nil {
		return fmt.Errorf("delete conversation %s: %w", conv.ID, err)
	}
	if err := r.kv.LRem(ctx, userConversations(conv.UserID), conv.ID); err != nil {
		return fmt.Errorf("unlist conversation %s: %w", conv.ID, err)
	}
	return nil
}

// ListByUser loads every conversation of one user. Dangling list entries are
// skipped: a delete that half-finished must not break the listing forever.
func (r *Conversations) ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	ids, err := r.kv.LRange(ctx, userConversations(userID), 0, -1)
	if err != nil {
		return nil, err
	}
	convs := make([]*models.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := r.Get(ctx, id)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}
