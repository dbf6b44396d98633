package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/repository"
)

const (
	displayNameMaxLen = 50
	bioMaxLen         = 500
	locationMaxLen    = 100
	websiteMaxLen     = 200
)

var (
	validThemes    = map[string]bool{"light": true, "dark": true, "auto": true}
	validLanguages = map[string]bool{"zh-CN": true, "en-US": true}
	validFontSizes = map[string]bool{"small": true, "medium": true, "large": true}
	validModels    = map[string]bool{"glm-4.6": true, "glm-4.5": true, "glm-4-flash": true}
)

// Profile is the full profile response: the user record plus activity
// stats.
type Profile struct {
	User  *models.User     `json:"user"`
	Stats models.UserStats `json:"stats"`
}

// User serves profile and settings reads and updates.
type User struct {
	users         *repository.Users
	conversations *repository.Conversations
	log           zerolog.Logger
}

func NewUser(users *repository.Users, conversations *repository.Conversations, log zerolog.Logger) *User {
	return &User{
		users:         users,
		conversations: conversations,
		log:           log.With().Str("component", "user").Logger(),
	}
}

func (s *User) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	convs, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	totalMessages := 0
	for _, c := range convs {
		totalMessages += c.MessageCount
	}

	return &Profile{
		User: user,
		Stats: models.UserStats{
			TotalConversations: len(convs),
			TotalMessages:      totalMessages,
			JoinedAt:           user.CreatedAt,
		},
	}, nil
}

func (s *User) UpdateProfile(ctx context.Context, userID string, update *models.ProfileUpdate) (*models.User, error) {
	if err := validateProfile(update); err != nil {
		return nil, err
	}

	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*update.DisplayName)
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	if update.Website != nil {
		user.Website = *update.Website
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Settings returns the user's stored settings merged over the defaults, so
// fields added after the user last saved still come back populated.
func (s *User) Settings(ctx context.Context, userID string) (*models.Settings, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Settings == nil {
		return models.DefaultSettings(), nil
	}
	return user.Settings, nil
}

func (s *User) UpdateSettings(ctx context.Context, userID string, update *models.SettingsUpdate) (*models.Settings, error) {
	if err := validateSettings(update); err != nil {
		return nil, err
	}

	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings := user.Settings
	if settings == nil {
		settings = models.DefaultSettings()
	}
	applySettings(settings, update)
	settings.UpdatedAt = time.Now().UTC()
	user.Settings = settings
	user.UpdatedAt = settings.UpdatedAt

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *User) get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, &NotFoundError{Resource: "User"}
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func validateProfile(update *models.ProfileUpdate) error {
	fields := map[string]string{}
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" {
			fields["displayName"] = "Display name cannot be empty"
		} else if utf8.RuneCountInString(name) > displayNameMaxLen {
			fields["displayName"] = "Display name is too long"
		}
	}
	if update.Bio != nil && utf8.RuneCountInString(*update.Bio) > bioMaxLen {
		fields["bio"] = "Bio is too long"
	}
	if update.Location != nil && utf8.RuneCountInString(*update.Location) > locationMaxLen {
		fields["location"] = "Location is too long"
	}
	if update.Website != nil && *update.Website != "" {
		site := *update.Website
		if utf8.RuneCountInString(site) > websiteMaxLen {
			fields["website"] = "Website is too long"
		} else if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
			fields["website"] = "Website must be an http(s) URL"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "Invalid profile fields", Fields: fields}
	}
	return nil
}

func validateSettings(update *models.SettingsUpdate) error {
	fields := map[string]string{}
	if update.Theme != nil && !validThemes[*update.Theme] {
		fields["theme"] = "Theme must be light, dark, or auto"
	}
	if update.Language != nil && !validLanguages[*update.Language] {
		fields["language"] = "Unsupported language"
	}
	if update.FontSize != nil && !validFontSizes[*update.FontSize] {
		fields["fontSize"] = "Font size must be small, medium, or large"
	}
	if cs := update.ChatSettings; cs != nil {
		if cs.Model != nil && !validModels[*cs.Model] {
			fields["chatSettings.model"] = "Unsupported model"
		}
		if cs.Temperature != nil && (*cs.Temperature < minTemperature || *cs.Temperature > maxTemperature) {
			fields["chatSettings.temperature"] = "Temperature must be between 0 and 2"
		}
		if cs.MaxTokens != nil && (*cs.MaxTokens < minMaxTokens || *cs.MaxTokens > maxMaxTokens) {
			fields["chatSettings.maxTokens"] = "Max tokens must be between 1 and 8000"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "Invalid settings", Fields: fields}
	}
	return nil
}

func applySettings(settings *models.Settings, update *models.SettingsUpdate) {
	if update.Theme != nil {
		settings.Theme = *update.Theme
	}
	if update.Language != nil {
		settings.Language = *update.Language
	}
	if update.FontSize != nil {
		settings.FontSize = *update.FontSize
	}
	if cs := update.ChatSettings; cs != nil {
		if cs.Model != nil {
			settings.ChatSettings.Model = *cs.Model
		}
		if cs.Temperature != nil {
			settings.ChatSettings.Temperature = *cs.Temperature
		}
		if cs.MaxTokens != nil {
			settings.ChatSettings.MaxTokens = *cs.MaxTokens
		}
		if cs.StreamResponse != nil {
			settings.ChatSettings.StreamResponse = *cs.StreamResponse
		}
		if cs.ShowTimestamp != nil {
			settings.ChatSettings.ShowTimestamp = *cs.ShowTimestamp
		}
		if cs.ShowTokenUsage != nil {
			settings.ChatSettings.ShowTokenUsage = *cs.ShowTokenUsage
		}
	}
	if n := update.Notifications; n != nil {
		if n.Email != nil {
			settings.Notifications.Email = *n.Email
		}
		if n.Push != nil {
			settings.Notifications.Push = *n.Push
		}
		if n.Sound != nil {
			settings.Notifications.Sound = *n.Sound
		}
	}
	if p := update.Privacy; p != nil {
		if p.ShowEmail != nil {
			settings.Privacy.ShowEmail = *p.ShowEmail
		}
		if p.ShowProfile != nil {
			settings.Privacy.ShowProfile = *p.ShowProfile
		}
		if p.AllowDataCollection != nil {
			settings.Privacy.AllowDataCollection = *p.AllowDataCollection
		}
	}
	if a := update.Accessibility; a != nil {
		if a.HighContrast != nil {
			settings.Accessibility.HighContrast = *a.HighContrast
		}
		if a.ReducedMotion != nil {
			settings.Accessibility.ReducedMotion = *a.ReducedMotion
		}
		if a.ScreenReader != nil {
			settings.Accessibility.ScreenReader = *a.ScreenReader
		}
	}
}
