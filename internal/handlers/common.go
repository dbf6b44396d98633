package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/provider"
	"deeptalk-backend/internal/relay"
	"deeptalk-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResp(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	errorRespWithFields(w, r, status, code, message, nil)
}

func errorRespWithFields(w http.ResponseWriter, r *http.Request, status int, code, message string, fields map[string]string) {
	writeJSON(w, status, models.ErrorResponse{Error: models.APIError{
		Code:      code,
		Message:   message,
		Fields:    fields,
		RequestID: r.Header.Get("X-Request-ID"),
	}})
}

// handleServiceError maps typed service failures onto HTTP responses. Every
// handler funnels errors through here so statuses and codes stay uniform.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, log zerolog.Logger) {
	var (
		validation   *services.ValidationError
		notFound     *services.NotFoundError
		forbidden    *services.ForbiddenError
		unauthorized *services.UnauthorizedError
		badUpstream  *services.InvalidUpstreamResponseError
		upstream     *provider.UpstreamError
		readErr      *relay.ReadError
	)
	switch {
	case errors.As(err, &validation):
		errorRespWithFields(w, r, http.StatusBadRequest, "VALIDATION_ERROR", validation.Message, validation.Fields)
	case errors.As(err, &notFound):
		errorResp(w, r, http.StatusNotFound, "NOT_FOUND", notFound.Error())
	case errors.As(err, &forbidden):
		errorResp(w, r, http.StatusForbidden, "FORBIDDEN", forbidden.Message)
	case errors.As(err, &unauthorized):
		errorResp(w, r, http.StatusUnauthorized, "UNAUTHORIZED", unauthorized.Message)
	case errors.As(err, &badUpstream):
		errorResp(w, r, http.StatusBadGateway, "INVALID_UPSTREAM_RESPONSE", badUpstream.Message)
	case errors.As(err, &upstream):
		log.Warn().Int("status", upstream.StatusCode).Str("message", upstream.Message).Msg("upstream rejected the request")
		errorResp(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "AI service is unavailable")
	case errors.As(err, &readErr):
		log.Error().Err(err).Msg("upstream stream failed")
		errorResp(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "AI service stream failed")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		errorResp(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
