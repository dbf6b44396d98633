package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"deeptalk-backend/internal/middleware"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/services"
)

// User serves profile, settings, and platform stats.
type User struct {
	svc   *services.User
	stats *services.Stats
	log   zerolog.Logger
}

func NewUser(svc *services.User, stats *services.Stats, log zerolog.Logger) *User {
	return &User{svc: svc, stats: stats, log: log.With().Str("handler", "user").Logger()}
}

func (h *User) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.Profile(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *User) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		errorResp(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), &update)
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *User) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *User) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update models.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		errorResp(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	settings, err := h.svc.UpdateSettings(r.Context(), middleware.GetUserID(r.Context()), &update)
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *User) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Platform(r.Context())
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
