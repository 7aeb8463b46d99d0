package matching

import "errors"

// ErrNotRevealed rejects profile access while the match is still anonymous.
var ErrNotRevealed = errors.New("not_revealed")
