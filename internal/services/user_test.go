package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/repository"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool      { return &b }

func newUserFixture(t *testing.T) (*User, *repository.Users, *repository.Conversations) {
	t.Helper()
	kv := kvstore.NewMemory()
	users := repository.NewUsers(kv)
	convs := repository.NewConversations(kv)
	return NewUser(users, convs, zerolog.Nop()), users, convs
}

func seedUser(t *testing.T, users *repository.Users) *models.User {
	t.Helper()
	user := &models.User{
		ID:        "user_1",
		GitHubID:  1,
		Username:  "octocat",
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, users.Save(context.Background(), user))
	return user
}

func TestProfile_IncludesActivityStats(t *testing.T) {
	svc, users, convs := newUserFixture(t)
	user := seedUser(t, users)
	ctx := context.Background()

	require.NoError(t, convs.Create(ctx, &models.Conversation{ID: "conv_1", UserID: user.ID, MessageCount: 4}))
	require.NoError(t, convs.Create(ctx, &models.Conversation{ID: "conv_2", UserID: user.ID, MessageCount: 2}))

	profile, err := svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "octocat", profile.User.Username)
	assert.Equal(t, 2, profile.Stats.TotalConversations)
	assert.Equal(t, 6, profile.Stats.TotalMessages)
	assert.Equal(t, user.CreatedAt, profile.Stats.JoinedAt)
}

func TestProfile_UnknownUser(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.Profile(context.Background(), "user_missing")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestUpdateProfile_AppliesFields(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	seedUser(t, users)
	ctx := context.Background()

	updated, err := svc.UpdateProfile(ctx, "user_1", &models.ProfileUpdate{
		DisplayName: strPtr("  New Name  "),
		Bio:         strPtr("likes streams"),
		Website:     strPtr("https://example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.DisplayName)
	assert.Equal(t, "likes streams", updated.Bio)
	assert.Equal(t, "https://example.com", updated.Website)
}

func TestUpdateProfile_BoundsCountCharactersNotBytes(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	seedUser(t, users)
	ctx := context.Background()

	// 50 CJK characters are 150 bytes but still within the 50-character
	// display name budget.
	updated, err := svc.UpdateProfile(ctx, "user_1", &models.ProfileUpdate{
		DisplayName: strPtr(strings.Repeat("名", 50)),
		Bio:         strPtr(strings.Repeat("好", 500)),
	})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("名", 50), updated.DisplayName)

	_, err = svc.UpdateProfile(ctx, "user_1", &models.ProfileUpdate{
		DisplayName: strPtr(strings.Repeat("名", 51)),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "displayName")
}

func TestUpdateProfile_Validation(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	seedUser(t, users)
	ctx := context.Background()

	tests := []struct {
		name   string
		update models.ProfileUpdate
		field  string
	}{
		{"empty display name", models.ProfileUpdate{DisplayName: strPtr("   ")}, "displayName"},
		{"display name too long", models.ProfileUpdate{DisplayName: strPtr(strings.Repeat("x", 51))}, "displayName"},
		{"bio too long", models.ProfileUpdate{Bio: strPtr(strings.Repeat("x", 501))}, "bio"},
		{"website not a url", models.ProfileUpdate{Website: strPtr("ftp://example.com")}, "website"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(ctx, "user_1", &tt.update)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestSettings_DefaultsWhenUnset(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	seedUser(t, users)

	settings, err := svc.Settings(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "light", settings.Theme)
	assert.Equal(t, "glm-4.6", settings.ChatSettings.Model)
}

func TestUpdateSettings_MergesIntoDefaults(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	seedUser(t, users)
	ctx := context.Background()

	settings, err := svc.UpdateSettings(ctx, "user_1", &models.SettingsUpdate{
		Theme: strPtr("dark"),
		ChatSettings: &models.ChatSettingsUpdate{
			Temperature: f64Ptr(1.5),
		},
		Notifications: &models.NotificationSettingsUpdate{
			Email: boolPtr(true),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "dark", settings.Theme)
	assert.Equal(t, 1.5, settings.ChatSettings.Temperature)
	assert.True(t, settings.Notifications.Email)
	// Untouched fields keep their defaults.
	assert.Equal(t, "glm-4.6", settings.ChatSettings.Model)
	assert.False(t, settings.UpdatedAt.IsZero())

	// The merge is durable.
	again, err := svc.Settings(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "dark", again.Theme)
}

func TestUpdateSettings_Validation(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	seedUser(t, users)
	ctx := context.Background()

	tests := []struct {
		name   string
		update models.SettingsUpdate
		field  string
	}{
		{"bad theme", models.SettingsUpdate{Theme: strPtr("neon")}, "theme"},
		{"bad language", models.SettingsUpdate{Language: strPtr("xx-XX")}, "language"},
		{"bad font size", models.SettingsUpdate{FontSize: strPtr("huge")}, "fontSize"},
		{"bad model", models.SettingsUpdate{ChatSettings: &models.ChatSettingsUpdate{Model: strPtr("gpt-11")}}, "chatSettings.model"},
		{"temperature out of range", models.SettingsUpdate{ChatSettings: &models.ChatSettingsUpdate{Temperature: f64Ptr(3)}}, "chatSettings.temperature"},
		{"max tokens out of range", models.SettingsUpdate{ChatSettings: &models.ChatSettingsUpdate{MaxTokens: intPtr(0)}}, "chatSettings.maxTokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateSettings(ctx, "user_1", &tt.update)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func intPtr(i int) *int { return &i }
