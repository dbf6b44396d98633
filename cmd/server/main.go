package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"deeptalk-backend/internal/config"
	"deeptalk-backend/internal/handlers"
	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/logger"
	"deeptalk-backend/internal/middleware"
	"deeptalk-backend/internal/provider"
	"deeptalk-backend/internal/repository"
	"deeptalk-backend/internal/router"
	"deeptalk-backend/internal/services"
	"deeptalk-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	kv, err := kvstore.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	users := repository.NewUsers(kv)
	sessions := repository.NewSessions(kv)
	conversations := repository.NewConversations(kv)
	messages := repository.NewMessages(kv)

	jwt := middleware.NewJWTAuth(cfg.JWTSecret)
	glm := provider.NewClient(cfg.GLMAPIURL, cfg.GLMAPIKey, cfg.UpstreamTimeout, log)

	saver := worker.NewSaver(conversations, messages, cfg.SaveQueueSize, cfg.SaveWorkers, log)
	saver.Start()

	authSvc := services.NewAuth(cfg, users, sessions, jwt, log)
	chatSvc := services.NewChat(glm, conversations, messages, saver, log)
	convSvc := services.NewConversation(conversations, messages, log)
	userSvc := services.NewUser(users, conversations, log)
	statsSvc := services.NewStats(users, log)

	handler := router.New(router.Deps{
		Auth:          handlers.NewAuth(authSvc, cfg.FrontendURL, log),
		Chat:          handlers.NewChat(chatSvc, log),
		Conversations: handlers.NewConversations(convSvc, log),
		User:          handlers.NewUser(userSvc, statsSvc, log),
		JWT:           jwt,
		FrontendURL:   cfg.FrontendURL,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: event streams stay open as long as the model talks.
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		saver.Stop()
		return kv.Close()
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}
