package models

import "time"

// Settings is the per-user preferences blob nested inside the user record.
type Settings struct {
	Theme         string                `json:"theme"`
	Language      string                `json:"language"`
	FontSize      string                `json:"fontSize"`
	ChatSettings  ChatSettings          `json:"chatSettings"`
	Notifications NotificationSettings  `json:"notifications"`
	Privacy       PrivacySettings       `json:"privacy"`
	Accessibility AccessibilitySettings `json:"accessibility"`
	UpdatedAt     time.Time             `json:"updatedAt,omitempty"`
}

type ChatSettings struct {
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"maxTokens"`
	StreamResponse bool    `json:"streamResponse"`
	ShowTimestamp  bool    `json:"showTimestamp"`
	ShowTokenUsage bool    `json:"showTokenUsage"`
}

type NotificationSettings struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	Sound bool `json:"sound"`
}

type PrivacySettings struct {
	ShowEmail           bool `json:"showEmail"`
	ShowProfile         bool `json:"showProfile"`
	AllowDataCollection bool `json:"allowDataCollection"`
}

type AccessibilitySettings struct {
	HighContrast  bool `json:"highContrast"`
	ReducedMotion bool `json:"reducedMotion"`
	ScreenReader  bool `json:"screenReader"`
}

// DefaultSettings returns the settings applied when a user has never saved any.
func DefaultSettings() *Settings {
	return &Settings{
		Theme:    "light",
		Language: "zh-CN",
		FontSize: "medium",
		ChatSettings: ChatSettings{
			Model:          "glm-4.6",
			Temperature:    0.7,
			MaxTokens:      2000,
			StreamResponse: false,
			ShowTimestamp:  true,
			ShowTokenUsage: false,
		},
		Notifications: NotificationSettings{Sound: true},
		Privacy:       PrivacySettings{ShowProfile: true},
	}
}

// SettingsUpdate carries a partial settings change; nil fields are untouched.
type SettingsUpdate struct {
	Theme         *string                      `json:"theme"`
	Language      *string                      `json:"language"`
	FontSize      *string                      `json:"fontSize"`
	ChatSettings  *ChatSettingsUpdate          `json:"chatSettings"`
	Notifications *NotificationSettingsUpdate  `json:"notifications"`
	Privacy       *PrivacySettingsUpdate       `json:"privacy"`
	Accessibility *AccessibilitySettingsUpdate `json:"accessibility"`
}

type ChatSettingsUpdate struct {
	Model          *string  `json:"model"`
	Temperature    *float64 `json:"temperature"`
	MaxTokens      *int     `json:"maxTokens"`
	StreamResponse *bool    `json:"streamResponse"`
	ShowTimestamp  *bool    `json:"showTimestamp"`
	ShowTokenUsage *bool    `json:"showTokenUsage"`
}

type NotificationSettingsUpdate struct {
	Email *bool `json:"email"`
	Push  *bool `json:"push"`
	Sound *bool `json:"sound"`
}

type PrivacySettingsUpdate struct {
	ShowEmail           *bool `json:"showEmail"`
	ShowProfile         *bool `json:"showProfile"`
	AllowDataCollection *bool `json:"allowDataCollection"`
}

type AccessibilitySettingsUpdate struct {
	HighContrast  *bool `json:"highContrast"`
	ReducedMotion *bool `json:"reducedMotion"`
	ScreenReader  *bool `json:"screenReader"`
}
