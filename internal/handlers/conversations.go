package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"deeptalk-backend/internal/middleware"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/services"
)

// Conversations serves the conversation CRUD surface.
type Conversations struct {
	svc *services.Conversation
	log zerolog.Logger
}

func NewConversations(svc *services.Conversation, log zerolog.Logger) *Conversations {
	return &Conversations{svc: svc, log: log.With().Str("handler", "conversations").Logger()}
}

func (h *Conversations) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.svc.List(r.Context(), middleware.GetUserID(r.Context()), page, limit)
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (h *Conversations) Create(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResp(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	conv, err := h.svc.Create(r.Context(), middleware.GetUserID(r.Context()), req.Title)
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *Conversations) Rename(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResp(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	conv, err := h.svc.Rename(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Title)
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Conversations) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Conversations) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.Messages(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*models.Message{"messages": msgs})
}
