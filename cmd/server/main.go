package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/archipelago/internal/auth"
	"github.com/freeeve/archipelago/internal/config"
	"github.com/freeeve/archipelago/internal/handler"
	"github.com/freeeve/archipelago/internal/logger"
	"github.com/freeeve/archipelago/internal/repository/postgres"
	redisrepo "github.com/freeeve/archipelago/internal/repository/redis"
	"github.com/freeeve/archipelago/internal/service"
	"github.com/freeeve/archipelago/migrations"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("port", cfg.Port).Dur("turnTimeout", cfg.TurnTimeout).Msg("Config loaded")

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.RulesFile).Msg("Rules file rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := migrations.Apply(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
	}

	// Redis
	redisClient, err := redisrepo.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	userRepo := postgres.NewUserRepo(db)
	matchRepo := postgres.NewMatchRepo(db)
	intentRepo := postgres.NewIntentRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	googleOAuth := auth.NewGoogleOAuth(
		os.Getenv("GOOGLE_CLIENT_ID"),
		os.Getenv("GOOGLE_CLIENT_SECRET"),
		os.Getenv("GOOGLE_REDIRECT_URL"),
	)

	wsHub := handler.NewHub()

	// Services
	playSvc := service.NewPlayService(matchRepo, intentRepo, redisClient, wsHub, rules, cfg.TurnTimeout)
	matchSvc := service.NewMatchService(matchRepo, playSvc, wsHub)
	timerListener := service.NewTimerListener(redisClient.Underlying(), playSvc)

	root := handler.NewRouter(handler.RouterConfig{
		JWT:       jwtMgr,
		Google:    googleOAuth,
		Users:     userRepo,
		MatchRepo: matchRepo,
		Matches:   matchSvc,
		Play:      playSvc,
		Hub:       wsHub,
		Origins:   cfg.CORSOrigins,
		Ready: map[string]func(context.Context) error{
			"postgres": db.PingContext,
			"redis":    redisClient.Ping,
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Rebuild live games from the journal after a restart.
	if err := playSvc.RecoverActiveMatches(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to recover active matches (non-fatal)")
	}

	go timerListener.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
