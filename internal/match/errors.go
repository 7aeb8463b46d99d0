package match

import "errors"

var (
	ErrInvalidState      = errors.New("invalid_state")
	ErrDuplicateDecision = errors.New("duplicate_decision")
	ErrNotParticipant    = errors.New("not_participant")
	ErrEmptyContent      = errors.New("empty_content")
)
