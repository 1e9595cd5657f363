package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/freeeve/archipelago/internal/auth"
	"github.com/freeeve/archipelago/internal/logger"
	"github.com/freeeve/archipelago/internal/model"
	"github.com/freeeve/archipelago/internal/service"
)

// IntentHandler submits intents and reads match state.
type IntentHandler struct {
	playSvc *service.PlayService
}

// NewIntentHandler creates an IntentHandler.
func NewIntentHandler(playSvc *service.PlayService) *IntentHandler {
	return &IntentHandler{playSvc: playSvc}
}

// SubmitIntent handles POST /api/v1/matches/{id}/intents
func (h *IntentHandler) SubmitIntent(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	matchID := r.PathValue("id")
	ctx := logger.WithMatchID(r.Context(), matchID)
	res, err := h.playSvc.Submit(ctx, matchID, auth.UserIDFromContext(ctx), json.RawMessage(body))
	if err != nil {
		log := logger.ForRequest(ctx)
		log.Debug().Err(err).Msg("Intent rejected")
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetState handles GET /api/v1/matches/{id}/state
func (h *IntentHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.playSvc.State(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(state)
}

// ListIntents handles GET /api/v1/matches/{id}/intents
func (h *IntentHandler) ListIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := h.playSvc.Journal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if intents == nil {
		intents = []model.Intent{}
	}
	writeJSON(w, http.StatusOK, intents)
}
