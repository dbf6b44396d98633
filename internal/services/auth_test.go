package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deeptalk-backend/internal/config"
	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/middleware"
	"deeptalk-backend/internal/repository"
)

type authFixture struct {
	auth  *Auth
	users *repository.Users
}

// newAuthFixture stands up fake GitHub token and user endpoints.
func newAuthFixture(t *testing.T, tokenHandler, userHandler http.HandlerFunc) *authFixture {
	t.Helper()
	kv := kvstore.NewMemory()
	users := repository.NewUsers(kv)
	sessions := repository.NewSessions(kv)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/user", userHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		GitHubClientID:     "client-id",
		GitHubClientSecret: "client-secret",
		GitHubCallbackURL:  "http://localhost:8080/api/v1/auth/callback",
	}
	auth := NewAuth(cfg, users, sessions, middleware.NewJWTAuth("test-secret"), zerolog.Nop())
	auth.tokenURL = srv.URL + "/token"
	auth.userURL = srv.URL + "/user"
	return &authFixture{auth: auth, users: users}
}

func ghTokenOK(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"access_token": "gh-token"})
}

func ghUserOK(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"id":         int64(4242),
		"login":      "octocat",
		"name":       "The Octocat",
		"avatar_url": "https://example.com/avatar.png",
		"email":      "octo@example.com",
	})
}

func TestAuthorizeURL(t *testing.T) {
	f := newAuthFixture(t, ghTokenOK, ghUserOK)

	url := f.auth.AuthorizeURL()
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "state=")
	assert.Contains(t, url, "scope=")
}

func TestCallback_CreatesUserAndIssuesToken(t *testing.T) {
	f := newAuthFixture(t, ghTokenOK, ghUserOK)
	ctx := context.Background()

	user, token, err := f.auth.Callback(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "octocat", user.Username)
	assert.Equal(t, "The Octocat", user.DisplayName)
	assert.Equal(t, int64(4242), user.GitHubID)
	assert.NotEmpty(t, token)

	// The same GitHub identity logs into the same account.
	again, _, err := f.auth.Callback(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestCallback_PreservesUserEditsOnRelogin(t *testing.T) {
	f := newAuthFixture(t, ghTokenOK, ghUserOK)
	ctx := context.Background()

	user, _, err := f.auth.Callback(ctx, "good-code")
	require.NoError(t, err)

	user.Bio = "hand-written bio"
	user.DisplayName = "Custom Name"
	require.NoError(t, f.users.Save(ctx, user))

	again, _, err := f.auth.Callback(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "hand-written bio", again.Bio)
	assert.Equal(t, "Custom Name", again.DisplayName)
}

func TestCallback_MissingCode(t *testing.T) {
	f := newAuthFixture(t, ghTokenOK, ghUserOK)

	_, _, err := f.auth.Callback(context.Background(), "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCallback_RejectedCode(t *testing.T) {
	f := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code"})
	}, ghUserOK)

	_, _, err := f.auth.Callback(context.Background(), "bad-code")
	var unauthorized *UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)
}

func TestCallback_ProfileFetchFailure(t *testing.T) {
	f := newAuthFixture(t, ghTokenOK, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, _, err := f.auth.Callback(context.Background(), "good-code")
	var unauthorized *UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)
}

func TestVerify_RoundTrip(t *testing.T) {
	f := newAuthFixture(t, ghTokenOK, ghUserOK)
	ctx := context.Background()

	user, token, err := f.auth.Callback(ctx, "good-code")
	require.NoError(t, err)

	verified, info, err := f.auth.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
	assert.Equal(t, middleware.TokenIssuer, info.Issuer)
	assert.True(t, info.ExpiresAt.After(info.IssuedAt))
}

func TestVerify_BadToken(t *testing.T) {
	f := newAuthFixture(t, ghTokenOK, ghUserOK)

	_, _, err := f.auth.Verify(context.Background(), "not-a-token")
	var unauthorized *UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)
}
