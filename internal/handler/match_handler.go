package handler

import (
	"net/http"

	"github.com/freeeve/archipelago/internal/auth"
	"github.com/freeeve/archipelago/internal/logger"
	"github.com/freeeve/archipelago/internal/model"
	"github.com/freeeve/archipelago/internal/service"
)

// MatchHandler handles the lobby endpoints.
type MatchHandler struct {
	matchSvc *service.MatchService
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(matchSvc *service.MatchService) *MatchHandler {
	return &MatchHandler{matchSvc: matchSvc}
}

// CreateMatch handles POST /api/v1/matches
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		NumPlayers int    `json:"num_players"`
		Expert     bool   `json:"expert"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NumPlayers == 0 {
		req.NumPlayers = 2
	}

	m, err := h.matchSvc.CreateMatch(r.Context(), req.Name, auth.UserIDFromContext(r.Context()), req.NumPlayers, req.Expert)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListMatches handles GET /api/v1/matches?filter=mine
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matchSvc.ListMatches(r.Context(), auth.UserIDFromContext(r.Context()), r.URL.Query().Get("filter"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if matches == nil {
		matches = []model.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// GetMatch handles GET /api/v1/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.matchSvc.GetMatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// JoinMatch handles POST /api/v1/matches/{id}/join
func (h *MatchHandler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.matchSvc.JoinMatch(r.Context(), id, auth.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := h.matchSvc.GetMatch(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// StartMatch handles POST /api/v1/matches/{id}/start
func (h *MatchHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithMatchID(r.Context(), r.PathValue("id"))
	m, err := h.matchSvc.StartMatch(ctx, r.PathValue("id"), auth.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMatch handles DELETE /api/v1/matches/{id}
func (h *MatchHandler) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := h.matchSvc.DeleteMatch(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
