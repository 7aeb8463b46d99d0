package match

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Runtime owns all mutable state of one match. Every mutation goes through
// its mutex, so operations on the same match never interleave while
// different matches proceed in parallel.
type Runtime struct {
	mu sync.Mutex
	m  Match

	threshold   float64
	rearmReveal bool

	clock clockwork.Clock
	newID func() string
}

type RuntimeOption func(*Runtime)

func WithClock(clock clockwork.Clock) RuntimeOption {
	return func(r *Runtime) { r.clock = clock }
}

func WithIDGenerator(gen func() string) RuntimeOption {
	return func(r *Runtime) { r.newID = gen }
}

func WithRearmReveal(on bool) RuntimeOption {
	return func(r *Runtime) { r.rearmReveal = on }
}

func NewRuntime(m Match, threshold float64, opts ...RuntimeOption) *Runtime {
	if m.Decisions == nil {
		m.Decisions = map[string]Decision{
			m.ParticipantA: DecisionNone,
			m.ParticipantB: DecisionNone,
		}
	}
	// Rows written before the counter existed carry zero; a match outside
	// chatting has necessarily revealed at least once.
	if m.Reveals == 0 && m.Status != StatusChatting {
		m.Reveals = 1
	}
	r := &Runtime{
		m:         m,
		threshold: threshold,
		clock:     clockwork.NewRealClock(),
		newID:     func() string { return "" },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns a copy of the match for read paths.
func (r *Runtime) Snapshot() Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Runtime) snapshotLocked() Match {
	return cloneMatch(r.m)
}

func cloneMatch(src Match) Match {
	m := src
	m.Decisions = make(map[string]Decision, len(src.Decisions))
	for k, v := range src.Decisions {
		m.Decisions[k] = v
	}
	if src.RevealedAt != nil {
		at := *src.RevealedAt
		m.RevealedAt = &at
	}
	return m
}

// Restore replaces the runtime state with a prior snapshot. Callers roll a
// mutation back with this when persisting it failed, so the runtime never
// runs ahead of the store.
func (r *Runtime) Restore(m Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = cloneMatch(m)
}

// ScoreResult reports what a score ingestion did.
type ScoreResult struct {
	Applied         bool
	Score           float64
	RevealTriggered bool
}

// IngestScore replaces the current score while the match is chatting. The
// first crossing of the threshold flips the match to revealed; anything the
// scorer emits after that is dropped without error, since the upstream keeps
// scoring past the threshold.
func (r *Runtime) IngestScore(score float64) ScoreResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.m.Status != StatusChatting {
		return ScoreResult{Applied: false, Score: r.m.CurrentScore}
	}
	r.m.CurrentScore = score
	r.touchLocked()

	if score >= r.threshold && r.canRevealLocked() {
		now := r.clock.Now().UTC()
		r.m.Status = StatusRevealed
		r.m.RevealedAt = &now
		r.m.Reveals++
		return ScoreResult{Applied: true, Score: score, RevealTriggered: true}
	}
	return ScoreResult{Applied: true, Score: score}
}

func (r *Runtime) canRevealLocked() bool {
	if r.m.Reveals == 0 {
		return true
	}
	return r.rearmReveal
}

// PostMessage validates the sender, assigns the next sequence number, and
// returns the message for persistence and delivery. A continued match folds
// back to chatting first; an ended match rejects.
func (r *Runtime) PostMessage(senderID, content string) (Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.m.IsParticipant(senderID) {
		return Message{}, false, ErrNotParticipant
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, false, ErrEmptyContent
	}

	folded := false
	switch r.m.Status {
	case StatusChatting, StatusRevealed:
	case StatusContinued:
		r.foldToChattingLocked()
		folded = true
	default:
		return Message{}, false, ErrInvalidState
	}

	r.m.NextSequence++
	msg := Message{
		ID:        r.newID(),
		MatchID:   r.m.ID,
		SenderID:  senderID,
		Content:   content,
		Sequence:  r.m.NextSequence,
		CreatedAt: r.clock.Now().UTC(),
	}
	r.touchLocked()
	return msg, folded, nil
}

// FoldIfContinued re-enters chatting when a session attaches to a continued
// match. Reports whether the fold happened.
func (r *Runtime) FoldIfContinued() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m.Status != StatusContinued {
		return false
	}
	r.foldToChattingLocked()
	r.touchLocked()
	return true
}

// foldToChattingLocked resets the reveal window for the next encounter:
// decisions clear to none and revealedAt clears so it again holds that
// revealedAt is set iff status is not chatting.
func (r *Runtime) foldToChattingLocked() {
	r.m.Status = StatusChatting
	r.m.RevealedAt = nil
	r.m.Decisions[r.m.ParticipantA] = DecisionNone
	r.m.Decisions[r.m.ParticipantB] = DecisionNone
}

// RecordDecision validates and stores one participant's post-reveal choice.
// Rejections leave the match untouched. The reconciliation outcome is
// computed by the decision coordinator, which calls Finalize.
func (r *Runtime) RecordDecision(participantID string, d Decision) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.m.IsParticipant(participantID) {
		return Outcome{}, ErrNotParticipant
	}
	if r.m.Status != StatusRevealed {
		return Outcome{}, ErrInvalidState
	}
	if r.m.Decisions[participantID] != DecisionNone {
		return Outcome{}, ErrDuplicateDecision
	}

	r.m.Decisions[participantID] = d
	r.touchLocked()
	return Reconcile(d, r.m.Decisions[r.m.Partner(participantID)]), nil
}

// Finalize applies a terminal reconciliation outcome. No-op unless the match
// is still in the reveal window.
func (r *Runtime) Finalize(status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m.Status != StatusRevealed {
		return false
	}
	if status != StatusContinued && status != StatusEnded {
		return false
	}
	r.m.Status = status
	r.touchLocked()
	return true
}

func (r *Runtime) touchLocked() {
	r.m.UpdatedAt = r.clock.Now().UTC()
}

// IdleSince reports the last mutation time, for janitor sweeps.
func (r *Runtime) IdleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.UpdatedAt
}
