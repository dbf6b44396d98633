package models

import "time"

// ErrorResponse is the uniform error envelope for all endpoints.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Pagination describes a paginated list response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PlatformStats is the aggregate user-count report served by the stats endpoint.
type PlatformStats struct {
	Total      int              `json:"total"`
	NewUsers   NewUserCounts    `json:"newUsers"`
	Active     ActiveUserCounts `json:"activeUsers"`
	Growth     GrowthRates      `json:"growth"`
	Engagement EngagementRates  `json:"engagement"`
}

type NewUserCounts struct {
	Today     int `json:"today"`
	ThisWeek  int `json:"thisWeek"`
	ThisMonth int `json:"thisMonth"`
}

type ActiveUserCounts struct {
	Last7Days int `json:"last7Days"`
}

type GrowthRates struct {
	Daily   string `json:"dailyGrowthRate"`
	Weekly  string `json:"weeklyGrowthRate"`
	Monthly string `json:"monthlyGrowthRate"`
}

type EngagementRates struct {
	ActiveRate string `json:"activeRate"`
}

// TokenInfo reports decoded token metadata on verification.
type TokenInfo struct {
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Issuer    string    `json:"issuer"`
	Audience  string    `json:"audience"`
}
