package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"veilmatch/internal/app/matching"
	"veilmatch/internal/gateway"
	"veilmatch/internal/match"
	"veilmatch/internal/profile"
)

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

// writeDomainError maps the domain taxonomy onto HTTP. State-machine rule
// violations are conflicts, not server faults.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrMatchNotFound):
		WriteHTTPError(w, http.StatusNotFound, "match_not_found")
	case errors.Is(err, profile.ErrProfileNotFound):
		WriteHTTPError(w, http.StatusNotFound, "profile_not_found")
	case errors.Is(err, gateway.ErrAlreadyMatched):
		WriteHTTPError(w, http.StatusConflict, "already_in_match")
	case errors.Is(err, match.ErrInvalidState):
		WriteHTTPError(w, http.StatusConflict, "invalid_state")
	case errors.Is(err, match.ErrDuplicateDecision):
		WriteHTTPError(w, http.StatusConflict, "duplicate_decision")
	case errors.Is(err, matching.ErrNotRevealed):
		WriteHTTPError(w, http.StatusConflict, "not_revealed")
	case errors.Is(err, match.ErrNotParticipant):
		WriteHTTPError(w, http.StatusForbidden, "not_participant")
	case errors.Is(err, gateway.ErrInvalidDecision):
		WriteHTTPError(w, http.StatusBadRequest, "invalid_decision")
	case errors.Is(err, match.ErrEmptyContent):
		WriteHTTPError(w, http.StatusBadRequest, "empty_content")
	default:
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
