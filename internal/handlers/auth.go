package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"deeptalk-backend/internal/services"
)

// Auth serves the GitHub OAuth dance and token verification.
type Auth struct {
	svc         *services.Auth
	frontendURL string
	log         zerolog.Logger
}

func NewAuth(svc *services.Auth, frontendURL string, log zerolog.Logger) *Auth {
	return &Auth{
		svc:         svc,
		frontendURL: frontendURL,
		log:         log.With().Str("handler", "auth").Logger(),
	}
}

// GitHub redirects the browser to GitHub's authorize page.
func (h *Auth) GitHub(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.svc.AuthorizeURL(), http.StatusFound)
}

// Callback finishes the OAuth dance and sends the browser back to the
// frontend. Both outcomes are redirects; this endpoint is only ever hit by a
// browser mid-dance.
func (h *Auth) Callback(w http.ResponseWriter, r *http.Request) {
	if ghErr := r.URL.Query().Get("error"); ghErr != "" {
		h.log.Warn().Str("error", ghErr).Msg("github returned an oauth error")
		h.redirectWithError(w, r, "github_"+ghErr)
		return
	}

	_, token, err := h.svc.Callback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.log.Warn().Err(err).Msg("oauth callback failed")
		h.redirectWithError(w, r, "auth_failed")
		return
	}

	q := url.Values{}
	q.Set("token", token)
	http.Redirect(w, r, h.frontendURL+"/auth/callback?"+q.Encode(), http.StatusFound)
}

func (h *Auth) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	q := url.Values{}
	q.Set("error", code)
	http.Redirect(w, r, h.frontendURL+"/auth/callback?"+q.Encode(), http.StatusFound)
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
	User  any  `json:"user,omitempty"`
	Token any  `json:"token,omitempty"`
}

// Verify checks a token from the body or the Authorization header and
// returns the user it belongs to.
func (h *Auth) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if r.Body != nil {
		// A missing or empty body just means the header carries the token.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	token := req.Token
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		errorResp(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Token is required")
		return
	}

	user, info, err := h.svc.Verify(r.Context(), token)
	if err != nil {
		handleServiceError(w, r, err, h.log)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Valid: true,
		User:  user.Public(),
		Token: info,
	})
}
