package repository

import (
	"context"
	"errors"
	"fmt"

	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/models"
)

// Messages stores message records and the per-conversation id list. Ids are
// appended to the tail so the list reads in chronological order.
type Messages struct {
	kv kvstore.KV
}

func NewMessages(kv kvstore.KV) *Messages {
	return &Messages{kv: kv}
}

func (r *Messages) Get(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := r.kv.GetJSON(ctx, messageKey(id), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *Messages) Append(ctx context.Context, conversationID string, msg *models.Message) error {
	if err := r.kv.SetJSON(ctx, messageKey(msg.ID), msg, 0); err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	if err := r.kv.RPush(ctx, conversationMsgs(conversationID), msg.ID); err != nil {
		return fmt.Errorf("append message %s to %s: %w", msg.ID, conversationID, err)
	}
	return nil
}

// History returns up to limit of the most recent messages, oldest first,
// ready to prepend to an upstream request.
func (r *Messages) History(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	ids, err := r.kv.LRange(ctx, conversationMsgs(conversationID), int64(-limit), -1)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, ids)
}

// ListByConversation returns the full message history, oldest first.
func (r *Messages) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	ids, err := r.kv.LRange(ctx, conversationMsgs(conversationID), 0, -1)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, ids)
}

// CountByConversation reports how many message ids a conversation holds.
func (r *Messages) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	ids, err := r.kv.LRange(ctx, conversationMsgs(conversationID), 0, -1)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DeleteAll removes every message of a conversation and the id list itself.
func (r *Messages) DeleteAll(ctx context.Context, conversationID string) error {
	ids, err := r.kv.LRange(ctx, conversationMsgs(conversationID), 0, -1)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, messageKey(id))
	}
	keys = append(keys, conversationMsgs(conversationID))
	return r.kv.Del(ctx, keys...)
}

func (r *Messages) load(ctx context.Context, ids []string) ([]*models.Message, error) {
	msgs := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := r.Get(ctx, id)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
