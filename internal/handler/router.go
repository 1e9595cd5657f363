package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/freeeve/archipelago/internal/auth"
	"github.com/freeeve/archipelago/internal/middleware"
	"github.com/freeeve/archipelago/internal/repository"
	"github.com/freeeve/archipelago/internal/service"
)

// RouterConfig holds what the HTTP routes depend on.
type RouterConfig struct {
	JWT       *auth.JWTManager
	Google    *auth.OAuthProvider
	Users     repository.UserRepository
	MatchRepo repository.MatchRepository
	Matches   *service.MatchService
	Play      *service.PlayService
	Hub       *Hub
	DevLogin  bool // serve /auth/dev regardless of DEV_MODE
	Origins   string
	Ready     map[string]func(context.Context) error // dependency checks for /readyz
}

// readyTimeout bounds each dependency check.
const readyTimeout = 2 * time.Second

// NewRouter builds the public routes, the authenticated /api/v1 routes and
// the WebSocket endpoint, wrapped in the global middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Google, cfg.JWT, cfg.Users)
	if cfg.DevLogin {
		authHandler.EnableDevLogin()
	}
	userHandler := NewUserHandler(cfg.Users, cfg.MatchRepo)
	matchHandler := NewMatchHandler(cfg.Matches)
	intentHandler := NewIntentHandler(cfg.Play)
	wsHandler := NewWSHandler(cfg.Hub, cfg.JWT, cfg.Play)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /readyz", readyHandler(cfg.Ready))

	// Auth (public)
	if cfg.Google.Enabled() {
		mux.HandleFunc("GET /auth/google/login", authHandler.GoogleLogin)
		mux.HandleFunc("GET /auth/google/callback", authHandler.GoogleCallback)
	}
	mux.HandleFunc("POST /auth/refresh", authHandler.RefreshToken)
	mux.HandleFunc("GET /auth/dev", authHandler.DevLogin)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", userHandler.GetMe)
	api.HandleFunc("PATCH /users/me", userHandler.UpdateMe)
	api.HandleFunc("GET /users/{id}", userHandler.GetUser)
	api.HandleFunc("GET /users/{id}/record", userHandler.GetRecord)
	api.HandleFunc("POST /matches", matchHandler.CreateMatch)
	api.HandleFunc("GET /matches", matchHandler.ListMatches)
	api.HandleFunc("GET /matches/{id}", matchHandler.GetMatch)
	api.HandleFunc("POST /matches/{id}/join", matchHandler.JoinMatch)
	api.HandleFunc("POST /matches/{id}/start", matchHandler.StartMatch)
	api.HandleFunc("DELETE /matches/{id}", matchHandler.DeleteMatch)
	api.HandleFunc("POST /matches/{id}/intents", intentHandler.SubmitIntent)
	api.HandleFunc("GET /matches/{id}/intents", intentHandler.ListIntents)
	api.HandleFunc("GET /matches/{id}/state", intentHandler.GetState)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", auth.Middleware(cfg.JWT)(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	origins := cfg.Origins
	if origins == "" {
		origins = "*"
	}
	return middleware.Chain(mux, middleware.Recover, middleware.Logger, middleware.CORS(origins), middleware.JSON)
}

// readyHandler reports each dependency check and answers 503 if any fails.
func readyHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := make(map[string]string, len(checks)), http.StatusOK
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				status[name], code = err.Error(), http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		writeJSON(w, code, status)
	}
}
