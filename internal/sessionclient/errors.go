package sessionclient

import "errors"

var (
	// ErrConnectionLost means the backoff loop ran out of attempts. The match
	// itself is untouched; a later Open resumes from the last seen event.
	ErrConnectionLost = errors.New("connection_lost")
	ErrNotConnected   = errors.New("not_connected")
	ErrSessionClosed  = errors.New("session_closed")
)
