package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deeptalk-backend/internal/config"
	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/middleware"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/repository"
)

const (
	githubAuthorizeURL = "https://github.com/login/oauth/authorize"
	githubTokenURL     = "https://github.com/login/oauth/access_token"
	githubUserURL      = "https://api.github.com/user"
)

// Auth drives the GitHub OAuth dance, user upserts, sessions, and JWT
// issuance.
type Auth struct {
	clientID     string
	clientSecret string
	callbackURL  string

	users    *repository.Users
	sessions *repository.Sessions
	jwt      *middleware.JWTAuth
	http     *http.Client
	log      zerolog.Logger

	// Overridable for tests.
	authorizeURL string
	tokenURL     string
	userURL      string
}

func NewAuth(cfg *config.Config, users *repository.Users, sessions *repository.Sessions, jwt *middleware.JWTAuth, log zerolog.Logger) *Auth {
	return &Auth{
		clientID:     cfg.GitHubClientID,
		clientSecret: cfg.GitHubClientSecret,
		callbackURL:  cfg.GitHubCallbackURL,
		users:        users,
		sessions:     sessions,
		jwt:          jwt,
		http:         &http.Client{Timeout: 15 * time.Second},
		log:          log.With().Str("component", "auth").Logger(),
		authorizeURL: githubAuthorizeURL,
		tokenURL:     githubTokenURL,
		userURL:      githubUserURL,
	}
}

// AuthorizeURL builds the GitHub authorize redirect with a fresh state
// nonce.
func (s *Auth) AuthorizeURL() string {
	q := url.Values{}
	q.Set("client_id", s.clientID)
	q.Set("redirect_uri", s.callbackURL)
	q.Set("scope", "read:user user:email")
	q.Set("state", uuid.NewString())
	return s.authorizeURL + "?" + q.Encode()
}

type githubTokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
	Bio       string `json:"bio"`
	Location  string `json:"location"`
	Blog      string `json:"blog"`
}

// Callback finishes the OAuth dance: exchanges the code, fetches the GitHub
// profile, upserts the user, opens a session, and issues the JWT.
func (s *Auth) Callback(ctx context.Context, code string) (*models.User, string, error) {
	if code == "" {
		return nil, "", &ValidationError{Message: "Missing authorization code"}
	}

	accessToken, err := s.exchangeCode(ctx, code)
	if err != nil {
		return nil, "", err
	}

	gh, err := s.fetchGitHubUser(ctx, accessToken)
	if err != nil {
		return nil, "", err
	}

	user, err := s.upsertUser(ctx, gh)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	sessionID := uuid.NewString()
	if err := s.sessions.Create(ctx, sessionID, &models.Session{
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(middleware.TokenLifetime),
	}, middleware.TokenLifetime); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	token, err := s.jwt.GenerateToken(user.ID, user.GitHubID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	s.log.Info().Str("userId", user.ID).Str("username", user.Username).Msg("user logged in")
	return user, token, nil
}

// Verify parses a token and loads its user.
func (s *Auth) Verify(ctx context.Context, tokenStr string) (*models.User, *models.TokenInfo, error) {
	claims, err := s.jwt.ParseToken(tokenStr)
	if err != nil {
		return nil, nil, &UnauthorizedError{Message: "Invalid or expired token"}
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil, &UnauthorizedError{Message: "Unknown user"}
	}
	if err != nil {
		return nil, nil, err
	}

	return user, &models.TokenInfo{
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.Expires,
		Issuer:    middleware.TokenIssuer,
		Audience:  middleware.TokenAudience,
	}, nil
}

func (s *Auth) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", &UnauthorizedError{Message: "GitHub token exchange failed"}
	}
	defer resp.Body.Close()

	var tokenResp githubTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", &UnauthorizedError{Message: "GitHub token exchange failed"}
	}
	if tokenResp.Error != "" || tokenResp.AccessToken == "" {
		s.log.Warn().Str("error", tokenResp.Error).Msg("github rejected the authorization code")
		return "", &UnauthorizedError{Message: "Authorization code rejected"}
	}
	return tokenResp.AccessToken, nil
}

func (s *Auth) fetchGitHubUser(ctx context.Context, accessToken string) (*githubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &UnauthorizedError{Message: "GitHub profile fetch failed"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UnauthorizedError{Message: "GitHub profile fetch failed"}
	}

	var gh githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return nil, &UnauthorizedError{Message: "GitHub profile fetch failed"}
	}
	if gh.ID == 0 || gh.Login == "" {
		return nil, &UnauthorizedError{Message: "GitHub profile fetch failed"}
	}
	return &gh, nil
}

func (s *Auth) upsertUser(ctx context.Context, gh *githubUser) (*models.User, error) {
	now := time.Now().UTC()

	user, err := s.users.GetByGitHubID(ctx, gh.ID)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		displayName := gh.Name
		if displayName == "" {
			displayName = gh.Login
		}
		user = &models.User{
			ID:          "user_" + uuid.NewString(),
			GitHubID:    gh.ID,
			Username:    gh.Login,
			DisplayName: displayName,
			AvatarURL:   gh.AvatarURL,
			Email:       gh.Email,
			Bio:         gh.Bio,
			Location:    gh.Location,
			Website:     gh.Blog,
			CreatedAt:   now,
		}
	case err != nil:
		return nil, err
	default:
		// Refresh the fields GitHub owns; leave user edits alone.
		user.Username = gh.Login
		user.AvatarURL = gh.AvatarURL
		if user.Email == "" {
			user.Email = gh.Email
		}
	}

	user.UpdatedAt = now
	user.LastLoginAt = now
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
