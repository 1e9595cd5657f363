package handler

import (
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/freeeve/archipelago/internal/auth"
	"github.com/freeeve/archipelago/internal/model"
	"github.com/freeeve/archipelago/internal/repository"
)

const maxDisplayName = 40

// UserHandler handles user profiles and match records.
type UserHandler struct {
	userRepo  repository.UserRepository
	matchRepo repository.MatchRepository
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(userRepo repository.UserRepository, matchRepo repository.MatchRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo, matchRepo: matchRepo}
}

// Record summarizes a user's matches. Finished matches without a winner are draws.
type Record struct {
	Played int `json:"played"`
	Won    int `json:"won"`
	Drawn  int `json:"drawn"`
	Active int `json:"active"`
}

func recordOf(userID string, matches []model.Match) Record {
	var rec Record
	for _, m := range matches {
		switch m.Status {
		case model.MatchActive:
			rec.Active++
		case model.MatchFinished:
			rec.Played++
			switch {
			case len(m.Winners) == 0:
				rec.Drawn++
			case slices.Contains(m.Winners, userID):
				rec.Won++
			}
		}
	}
	return rec
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, auth.UserIDFromContext(r.Context()))
}

// UpdateMe handles PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		writeError(w, http.StatusBadRequest, "display_name is too long")
		return
	}

	if err := h.userRepo.UpdateDisplayName(r.Context(), userID, name); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeUser(w, r, userID)
}

// GetUser handles GET /api/v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, r.PathValue("id"))
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.userRepo.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetRecord handles GET /api/v1/users/{id}/record
func (h *UserHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "me" {
		id = auth.UserIDFromContext(r.Context())
	}
	matches, err := h.matchRepo.ListByUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordOf(id, matches))
}
