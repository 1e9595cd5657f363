package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/archipelago/internal/service"
	"github.com/freeeve/archipelago/pkg/archipelago"
)

// maxBodyBytes caps request bodies read by the handlers.
const maxBodyBytes = 64 << 10

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

// errorStatus maps service and rule errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidIntent),
		errors.Is(err, service.ErrPlayerCount),
		errors.Is(err, service.ErrNameRequired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotCreator),
		errors.Is(err, service.ErrNotInMatch):
		return http.StatusForbidden
	case errors.Is(err, service.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrMatchFull),
		errors.Is(err, service.ErrMatchNotWaiting),
		errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrNotEnough),
		errors.Is(err, service.ErrMatchNotActive),
		errors.Is(err, archipelago.ErrGameOver):
		return http.StatusConflict
	case errors.Is(err, archipelago.ErrInvalidMove),
		errors.Is(err, archipelago.ErrCardUnavailable),
		errors.Is(err, archipelago.ErrMarkerMovementInvalid),
		errors.Is(err, archipelago.ErrEffectUnaffordable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Unmapped errors are
// logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
