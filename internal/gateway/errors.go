package gateway

import "errors"

var (
	// ErrHandshake rejects a session open by someone who is not a current
	// party to the match. Fatal to that attempt, never retried here.
	ErrHandshake = errors.New("handshake_rejected")

	ErrMatchNotFound   = errors.New("match_not_found")
	ErrAlreadyMatched  = errors.New("already_in_match")
	ErrInvalidDecision = errors.New("invalid_decision")
	ErrNoCandidate     = errors.New("no_candidate")
)
