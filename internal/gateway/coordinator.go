package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"veilmatch/internal/config"
	"veilmatch/internal/dispatch"
	"veilmatch/internal/match"
	"veilmatch/internal/store"
)

// MatchStore is the persistence collaborator the coordinator records
// transitions through. *store.Store implements it.
type MatchStore interface {
	CreateMatch(ctx context.Context, m match.Match) error
	GetMatch(ctx context.Context, id string) (match.Match, error)
	GetActiveMatchFor(ctx context.Context, participantID string) (match.Match, error)
	SaveMatchState(ctx context.Context, m match.Match) error
	ListMatchHistory(ctx context.Context, participantID string) ([]match.Match, error)
	CreateMessage(ctx context.Context, msg match.Message) error
	ListMessages(ctx context.Context, matchID string) ([]match.Message, error)
}

// matchState is one live entry in the registry. ops serializes the full
// mutate-persist-dispatch cycle per match, so operations on the same match
// apply in the order received while different matches run in parallel.
type matchState struct {
	ops     sync.Mutex
	runtime *match.Runtime
}

// Coordinator owns the bounded registry of live matches and is the only
// entry point for state-mutating match operations.
type Coordinator struct {
	store      MatchStore
	dispatcher *dispatch.Dispatcher
	cfg        config.MatchConfig
	clock      clockwork.Clock

	mu      sync.Mutex
	matches map[string]*matchState
}

type CoordinatorOption func(*Coordinator)

func WithClock(clock clockwork.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

func NewCoordinator(st MatchStore, disp *dispatch.Dispatcher, cfg config.MatchConfig, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:      st,
		dispatcher: disp,
		cfg:        cfg,
		clock:      clockwork.NewRealClock(),
		matches:    map[string]*matchState{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// Candidate is what the external matching engine hands over: two anonymous
// participants and their initial compatibility.
type Candidate struct {
	ParticipantA string
	ParticipantB string
	InitialScore float64
}

// CreateMatch admits a candidate pairing. Either participant already being
// in an unfinished match rejects the candidate.
func (c *Coordinator) CreateMatch(ctx context.Context, cand Candidate) (match.Match, error) {
	for _, pid := range []string{cand.ParticipantA, cand.ParticipantB} {
		if _, err := c.store.GetActiveMatchFor(ctx, pid); err == nil {
			return match.Match{}, ErrAlreadyMatched
		} else if !errors.Is(err, store.ErrNotFound) {
			return match.Match{}, err
		}
	}

	now := c.clock.Now().UTC()
	m := match.Match{
		ID:           store.NewID(),
		ParticipantA: cand.ParticipantA,
		ParticipantB: cand.ParticipantB,
		Status:       match.StatusChatting,
		InitialScore: cand.InitialScore,
		CurrentScore: cand.InitialScore,
		Decisions: map[string]match.Decision{
			cand.ParticipantA: match.DecisionNone,
			cand.ParticipantB: match.DecisionNone,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.CreateMatch(ctx, m); err != nil {
		return match.Match{}, err
	}

	c.mu.Lock()
	c.matches[m.ID] = &matchState{runtime: c.newRuntime(m)}
	c.mu.Unlock()

	log.Info().
		Str("match_id", m.ID).
		Float64("initial_score", m.InitialScore).
		Msg("match created")
	return m, nil
}

func (c *Coordinator) newRuntime(m match.Match) *match.Runtime {
	return match.NewRuntime(m, c.cfg.RevealThreshold,
		match.WithClock(c.clock),
		match.WithIDGenerator(store.NewID),
		match.WithRearmReveal(c.cfg.RearmReveal),
	)
}

// state returns the live registry entry for a match, hydrating it from the
// store on first touch after a restart or registry eviction.
func (c *Coordinator) state(ctx context.Context, matchID string) (*matchState, error) {
	c.mu.Lock()
	if ms := c.matches[matchID]; ms != nil {
		c.mu.Unlock()
		return ms, nil
	}
	c.mu.Unlock()

	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ms := c.matches[matchID]; ms != nil {
		return ms, nil
	}
	ms := &matchState{runtime: c.newRuntime(m)}
	c.matches[matchID] = ms
	return ms, nil
}

// Attach performs the session handshake for a (participant, match) pair and
// returns the participant's event queue plus a snapshot. A continued match
// folds back to chatting on attach.
func (c *Coordinator) Attach(ctx context.Context, participantID, matchID string) (*dispatch.Queue, match.Match, error) {
	ms, err := c.state(ctx, matchID)
	if err != nil {
		return nil, match.Match{}, err
	}

	ms.ops.Lock()
	defer ms.ops.Unlock()

	snap := ms.runtime.Snapshot()
	if !snap.IsParticipant(participantID) {
		return nil, match.Match{}, ErrHandshake
	}
	if ms.runtime.FoldIfContinued() {
		folded := ms.runtime.Snapshot()
		if err := c.store.SaveMatchState(ctx, folded); err != nil {
			// The fold is not lost, the next attach or post retries it.
			ms.runtime.Restore(snap)
			log.Error().Err(err).Str("match_id", matchID).Msg("persist fold on attach failed")
		} else {
			snap = folded
			c.dispatcher.BroadcastStatus(snap, snap.Status)
		}
	}

	q := c.dispatcher.Bind(matchID, participantID)
	log.Info().
		Str("match_id", matchID).
		Str("participant_id", participantID).
		Str("status", string(snap.Status)).
		Msg("session attached")
	return q, snap, nil
}

// Match returns a snapshot without touching match state.
func (c *Coordinator) Match(ctx context.Context, matchID string) (match.Match, error) {
	ms, err := c.state(ctx, matchID)
	if err != nil {
		return match.Match{}, err
	}
	return ms.runtime.Snapshot(), nil
}

// ActiveMatchFor resolves a participant's current unfinished match.
func (c *Coordinator) ActiveMatchFor(ctx context.Context, participantID string) (match.Match, error) {
	m, err := c.store.GetActiveMatchFor(ctx, participantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return match.Match{}, ErrMatchNotFound
		}
		return match.Match{}, err
	}
	// Prefer the live runtime's view when the match is resident.
	if ms, err := c.state(ctx, m.ID); err == nil {
		return ms.runtime.Snapshot(), nil
	}
	return m, nil
}

// PostMessage applies one chat turn: sequence assignment, persistence, then
// delivery to the partner.
func (c *Coordinator) PostMessage(ctx context.Context, matchID, senderID, content string) (match.Message, error) {
	ms, err := c.state(ctx, matchID)
	if err != nil {
		return match.Message{}, err
	}

	ms.ops.Lock()
	defer ms.ops.Unlock()

	before := ms.runtime.Snapshot()
	msg, folded, err := ms.runtime.PostMessage(senderID, content)
	if err != nil {
		return match.Message{}, err
	}
	snap := ms.runtime.Snapshot()
	// Roll the runtime back when persistence fails: a retry re-runs the whole
	// turn and message inserts are idempotent on (match, sequence).
	if err := c.store.CreateMessage(ctx, msg); err != nil {
		ms.runtime.Restore(before)
		return match.Message{}, err
	}
	if err := c.store.SaveMatchState(ctx, snap); err != nil {
		ms.runtime.Restore(before)
		return match.Message{}, err
	}
	if folded {
		c.dispatcher.BroadcastStatus(snap, snap.Status)
	}
	c.dispatcher.DeliverMessage(snap, msg)
	return msg, nil
}

// Typing relays a typing indicator to the partner. No state change, nothing
// persisted.
func (c *Coordinator) Typing(ctx context.Context, matchID, senderID string, typing bool) error {
	ms, err := c.state(ctx, matchID)
	if err != nil {
		return err
	}
	snap := ms.runtime.Snapshot()
	if !snap.IsParticipant(senderID) {
		return match.ErrNotParticipant
	}
	c.dispatcher.DeliverTyping(snap, senderID, typing)
	return nil
}

// IngestScore applies one pushed compatibility score. The first threshold
// crossing emits the reveal to both participants exactly once.
func (c *Coordinator) IngestScore(ctx context.Context, matchID string, score float64) error {
	ms, err := c.state(ctx, matchID)
	if err != nil {
		return err
	}

	ms.ops.Lock()
	defer ms.ops.Unlock()

	before := ms.runtime.Snapshot()
	res := ms.runtime.IngestScore(score)
	if !res.Applied {
		return nil
	}
	snap := ms.runtime.Snapshot()
	if err := c.store.SaveMatchState(ctx, snap); err != nil {
		ms.runtime.Restore(before)
		return err
	}
	c.dispatcher.BroadcastScore(snap, res.Score, res.RevealTriggered)
	if res.RevealTriggered {
		c.dispatcher.BroadcastReveal(snap, "/api/matches/"+matchID+"/reveal")
		log.Info().
			Str("match_id", matchID).
			Float64("score", res.Score).
			Msg("reveal triggered")
	}
	return nil
}

// DecisionResult is what a decision submission reports back synchronously;
// when the partner has not decided yet the completion arrives later as a
// pushed match_status event.
type DecisionResult struct {
	WaitingForPartner bool
	Status            match.Status
}

// SubmitDecision runs the reconciliation protocol for one participant's
// post-reveal choice. Terminal outcomes are pushed to both queues so an
// absent participant still learns how the reveal resolved.
func (c *Coordinator) SubmitDecision(ctx context.Context, matchID, participantID string, d match.Decision) (DecisionResult, error) {
	if d != match.DecisionContinue && d != match.DecisionPass {
		return DecisionResult{}, ErrInvalidDecision
	}
	ms, err := c.state(ctx, matchID)
	if err != nil {
		return DecisionResult{}, err
	}

	ms.ops.Lock()
	defer ms.ops.Unlock()

	before := ms.runtime.Snapshot()
	outcome, err := ms.runtime.RecordDecision(participantID, d)
	if err != nil {
		return DecisionResult{}, err
	}
	if outcome.Final {
		ms.runtime.Finalize(outcome.Status)
	}
	snap := ms.runtime.Snapshot()
	// The decision only counts once it is durable. On a failed save the
	// runtime rolls back so the participant can resubmit, and the terminal
	// broadcast still happens exactly when the transition lands.
	if err := c.store.SaveMatchState(ctx, snap); err != nil {
		ms.runtime.Restore(before)
		return DecisionResult{}, err
	}
	if outcome.Final {
		c.dispatcher.BroadcastStatus(snap, snap.Status)
		log.Info().
			Str("match_id", matchID).
			Str("status", string(snap.Status)).
			Msg("decision finalized")
	}
	return DecisionResult{WaitingForPartner: !outcome.Final, Status: snap.Status}, nil
}
