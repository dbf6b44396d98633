package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/models"
)

// Users stores user records plus the GitHub-id lookup mapping and the global
// user index used by platform stats.
type Users struct {
	kv kvstore.KV
}

func NewUsers(kv kvstore.KV) *Users {
	return &Users{kv: kv}
}

func (r *Users) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.kv.GetJSON(ctx, userKey(id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByGitHubID follows the github:<id> mapping to the user record.
func (r *Users) GetByGitHubID(ctx context.Context, githubID int64) (*models.User, error) {
	var userID string
	if err := r.kv.GetJSON(ctx, githubKey(githubID), &userID); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// Save writes the user record, the GitHub lookup mapping, and the index
// membership. Safe to call for both new and existing users.
func (r *Users) Save(ctx context.Context, user *models.User) error {
	if err := r.kv.SetJSON(ctx, userKey(user.ID), user, 0); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	if err := r.kv.SetJSON(ctx, githubKey(user.GitHubID), user.ID, 0); err != nil {
		return fmt.Errorf("save github mapping for %s: %w", user.ID, err)
	}
	if err := r.kv.SAdd(ctx, userIndexKey, user.ID); err != nil {
		return fmt.Errorf("index user %s: %w", user.ID, err)
	}
	return nil
}

// ListAll loads every indexed user. Index entries whose record has vanished
// are skipped rather than failing the whole listing.
func (r *Users) ListAll(ctx context.Context) ([]*models.User, error) {
	ids, err := r.kv.SMembers(ctx, userIndexKey)
	if err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		user, err := r.Get(ctx, id)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// Sessions stores login sessions with a TTL matching the token lifetime.
type Sessions struct {
	kv kvstore.KV
}

func NewSessions(kv kvstore.KV) *Sessions {
	return &Sessions{kv: kv}
}

func (r *Sessions) Create(ctx context.Context, id string, session *models.Session, ttl time.Duration) error {
	return r.kv.SetJSON(ctx, sessionKey(id), session, ttl)
}

func (r *Sessions) Get(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := r.kv.GetJSON(ctx, sessionKey(id), &session); err != nil {
		return nil, err
	}
	return &session, nil
}
