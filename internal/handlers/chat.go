package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"deeptalk-backend/internal/middleware"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/services"
)

// Chat serves the message endpoint, streaming or blocking depending on the
// request's model configuration.
type Chat struct {
	svc *services.Chat
	log zerolog.Logger
}

func NewChat(svc *services.Chat, log zerolog.Logger) *Chat {
	return &Chat{svc: svc, log: log.With().Str("handler", "chat").Logger()}
}

func (h *Chat) Message(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResp(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r.Context())
	turn, err := h.svc.PrepareTurn(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}

	if turn.Config.StreamResponse {
		// Errors after the event stream opens are signalled on the stream
		// itself; only pre-stream failures come back here.
		if err := h.svc.StreamTurn(r.Context(), w, turn); err != nil {
			handleServiceError(w, r, err, h.log)
		}
		return
	}

	resp, err := h.svc.CompleteTurn(r.Context(), turn)
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
