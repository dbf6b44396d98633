package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"deeptalk-backend/internal/handlers"
	"deeptalk-backend/internal/middleware"
)

// Deps collects everything the route table needs.
type Deps struct {
	Auth          *handlers.Auth
	Chat          *handlers.Chat
	Conversations *handlers.Conversations
	User          *handlers.User
	JWT           *middleware.JWTAuth
	FrontendURL   string
}

// New builds the full route table under /api/v1.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.FrontendURL))

	r.Get("/health", handlers.Health)

	authLimiter := middleware.NewRateLimiter(20, time.Minute)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Get("/github", d.Auth.GitHub)
			r.Get("/callback", d.Auth.Callback)
			r.Post("/verify", d.Auth.Verify)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Use(d.JWT.Middleware)
			r.Post("/message", d.Chat.Message)
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", d.Conversations.List)
				r.Post("/", d.Conversations.Create)
				r.Put("/{id}", d.Conversations.Rename)
				r.Delete("/{id}", d.Conversations.Delete)
				r.Get("/{id}/messages", d.Conversations.Messages)
			})
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(d.JWT.Middleware)
			r.Get("/profile", d.User.Profile)
			r.Put("/profile", d.User.UpdateProfile)
			r.Get("/settings", d.User.Settings)
			r.Put("/settings", d.User.UpdateSettings)
			r.Get("/stats", d.User.Stats)
		})
	})

	return r
}
