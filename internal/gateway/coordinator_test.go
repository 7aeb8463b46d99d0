package gateway

import (
	"context"
	"errors"
	"testing"

	"veilmatch/internal/config"
	"veilmatch/internal/dispatch"
	"veilmatch/internal/match"
	"veilmatch/internal/testutil"
)

func testMatchConfig() config.MatchConfig {
	return config.MatchConfig{
		RevealThreshold: 0.80,
		EventBufferSize: 100,
	}
}

func setupMatched(t *testing.T) (*Coordinator, match.Match) {
	t.Helper()
	coord := NewCoordinator(testutil.NewMemStore(), dispatch.NewDispatcher(100), testMatchConfig())
	m, err := coord.CreateMatch(context.Background(), Candidate{
		ParticipantA: "alice",
		ParticipantB: "bob",
		InitialScore: 0.58,
	})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	return coord, m
}

func drain(t *testing.T, coord *Coordinator, matchID, participantID string) []dispatch.Event {
	t.Helper()
	return coord.Dispatcher().Bind(matchID, participantID).ReplayAfter(0)
}

func TestCreateMatchRejectsSecondActiveMatch(t *testing.T) {
	coord, _ := setupMatched(t)
	_, err := coord.CreateMatch(context.Background(), Candidate{
		ParticipantA: "alice",
		ParticipantB: "carol",
		InitialScore: 0.61,
	})
	if !errors.Is(err, ErrAlreadyMatched) {
		t.Fatalf("err = %v, want ErrAlreadyMatched", err)
	}
}

func TestAttachRejectsStrangers(t *testing.T) {
	coord, m := setupMatched(t)
	if _, _, err := coord.Attach(context.Background(), "mallory", m.ID); !errors.Is(err, ErrHandshake) {
		t.Fatalf("err = %v, want ErrHandshake", err)
	}
	if _, _, err := coord.Attach(context.Background(), "alice", "no-such-match"); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("err = %v, want ErrMatchNotFound", err)
	}
}

func TestPostMessageDeliversToPartnerOnly(t *testing.T) {
	coord, m := setupMatched(t)
	ctx := context.Background()

	msg, err := coord.PostMessage(ctx, m.ID, "alice", "hello there")
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	if msg.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", msg.Sequence)
	}

	bob := drain(t, coord, m.ID, "bob")
	if len(bob) != 1 || bob[0].Type != dispatch.EventMessage {
		t.Fatalf("bob queue: %+v", bob)
	}
	if alice := drain(t, coord, m.ID, "alice"); len(alice) != 0 {
		t.Fatalf("alice should not receive her own message, got %d events", len(alice))
	}

	stored, err := coord.store.ListMessages(ctx, m.ID)
	if err != nil || len(stored) != 1 {
		t.Fatalf("message not persisted: %v %d", err, len(stored))
	}
}

func TestLifecycleScenarioPassEndsMatch(t *testing.T) {
	coord, m := setupMatched(t)
	ctx := context.Background()

	// Below threshold: status unchanged, score tracked.
	if err := coord.IngestScore(ctx, m.ID, 0.65); err != nil {
		t.Fatalf("ingest 0.65: %v", err)
	}
	snap, _ := coord.Match(ctx, m.ID)
	if snap.Status != match.StatusChatting || snap.CurrentScore != 0.65 {
		t.Fatalf("after 0.65: %+v", snap)
	}

	// Crossing: exactly one reveal event per participant.
	if err := coord.IngestScore(ctx, m.ID, 0.82); err != nil {
		t.Fatalf("ingest 0.82: %v", err)
	}
	snap, _ = coord.Match(ctx, m.ID)
	if snap.Status != match.StatusRevealed {
		t.Fatalf("status = %s, want revealed", snap.Status)
	}
	if got := countEvents(drain(t, coord, m.ID, "bob"), dispatch.EventReveal); got != 1 {
		t.Fatalf("bob reveal events = %d, want 1", got)
	}

	// Further scores are silently ignored, no second reveal.
	if err := coord.IngestScore(ctx, m.ID, 0.95); err != nil {
		t.Fatalf("ingest 0.95: %v", err)
	}
	if got := countEvents(drain(t, coord, m.ID, "bob"), dispatch.EventReveal); got != 1 {
		t.Fatalf("reveal emitted twice")
	}

	// Alice continues and waits; Bob passes and ends it for both.
	res, err := coord.SubmitDecision(ctx, m.ID, "alice", match.DecisionContinue)
	if err != nil || !res.WaitingForPartner {
		t.Fatalf("alice continue: res=%+v err=%v", res, err)
	}
	res, err = coord.SubmitDecision(ctx, m.ID, "bob", match.DecisionPass)
	if err != nil || res.WaitingForPartner || res.Status != match.StatusEnded {
		t.Fatalf("bob pass: res=%+v err=%v", res, err)
	}

	// Terminal outcome pushed to both queues.
	for _, pid := range []string{"alice", "bob"} {
		if got := countEvents(drain(t, coord, m.ID, pid), dispatch.EventMatchStatus); got != 1 {
			t.Fatalf("%s match_status events = %d, want 1", pid, got)
		}
	}

	persisted, _ := coord.store.GetMatch(ctx, m.ID)
	if persisted.Status != match.StatusEnded {
		t.Fatalf("persisted status = %s, want ended", persisted.Status)
	}
}

func TestLifecycleScenarioBothContinueThenChatResumes(t *testing.T) {
	coord, m := setupMatched(t)
	ctx := context.Background()

	coord.IngestScore(ctx, m.ID, 0.82)
	if res, err := coord.SubmitDecision(ctx, m.ID, "alice", match.DecisionContinue); err != nil || !res.WaitingForPartner {
		t.Fatalf("alice continue: %+v %v", res, err)
	}
	res, err := coord.SubmitDecision(ctx, m.ID, "bob", match.DecisionContinue)
	if err != nil || res.Status != match.StatusContinued {
		t.Fatalf("bob continue: %+v %v", res, err)
	}
	for _, pid := range []string{"alice", "bob"} {
		if got := countEvents(drain(t, coord, m.ID, pid), dispatch.EventMatchStatus); got != 1 {
			t.Fatalf("%s missed continued event", pid)
		}
	}

	// Chat resumes: the next message folds the match back to chatting with
	// decisions cleared.
	if _, err := coord.PostMessage(ctx, m.ID, "alice", "so, coffee?"); err != nil {
		t.Fatalf("post after continue: %v", err)
	}
	snap, _ := coord.Match(ctx, m.ID)
	if snap.Status != match.StatusChatting {
		t.Fatalf("status = %s, want chatting after fold", snap.Status)
	}
	if snap.Decisions["alice"] != match.DecisionNone || snap.Decisions["bob"] != match.DecisionNone {
		t.Fatalf("decisions not cleared: %v", snap.Decisions)
	}
}

func TestSubmitDecisionErrors(t *testing.T) {
	coord, m := setupMatched(t)
	ctx := context.Background()

	if _, err := coord.SubmitDecision(ctx, m.ID, "alice", match.DecisionContinue); !errors.Is(err, match.ErrInvalidState) {
		t.Fatalf("decide while chatting: err = %v", err)
	}
	if _, err := coord.SubmitDecision(ctx, m.ID, "alice", match.Decision("maybe")); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("bogus decision: err = %v", err)
	}

	coord.IngestScore(ctx, m.ID, 0.9)
	if _, err := coord.SubmitDecision(ctx, m.ID, "alice", match.DecisionContinue); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	if _, err := coord.SubmitDecision(ctx, m.ID, "alice", match.DecisionPass); !errors.Is(err, match.ErrDuplicateDecision) {
		t.Fatalf("second decision: err = %v, want ErrDuplicateDecision", err)
	}
}

func TestAttachFoldsContinuedMatch(t *testing.T) {
	coord, m := setupMatched(t)
	ctx := context.Background()

	coord.IngestScore(ctx, m.ID, 0.85)
	coord.SubmitDecision(ctx, m.ID, "alice", match.DecisionContinue)
	coord.SubmitDecision(ctx, m.ID, "bob", match.DecisionContinue)

	_, snap, err := coord.Attach(ctx, "alice", m.ID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if snap.Status != match.StatusChatting {
		t.Fatalf("attach should fold continued match, got %s", snap.Status)
	}
	if snap.RevealedAt != nil {
		t.Fatal("revealedAt should clear on fold")
	}
}

func TestRegistryHydratesFromStore(t *testing.T) {
	st := testutil.NewMemStore()
	coordA := NewCoordinator(st, dispatch.NewDispatcher(100), testMatchConfig())
	m, err := coordA.CreateMatch(context.Background(), Candidate{ParticipantA: "alice", ParticipantB: "bob", InitialScore: 0.6})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	coordA.IngestScore(context.Background(), m.ID, 0.82)

	// A fresh coordinator over the same store picks the match up mid-reveal.
	coordB := NewCoordinator(st, dispatch.NewDispatcher(100), testMatchConfig())
	res, err := coordB.SubmitDecision(context.Background(), m.ID, "bob", match.DecisionPass)
	if err != nil || res.Status != match.StatusEnded {
		t.Fatalf("decision on hydrated match: %+v %v", res, err)
	}
}

func countEvents(events []dispatch.Event, typ dispatch.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// flakyStore fails a scripted number of writes, then behaves normally.
type flakyStore struct {
	*testutil.MemStore
	failSaves   int
	failInserts int
}

func (s *flakyStore) SaveMatchState(ctx context.Context, m match.Match) error {
	if s.failSaves > 0 {
		s.failSaves--
		return errors.New("db hiccup")
	}
	return s.MemStore.SaveMatchState(ctx, m)
}

func (s *flakyStore) CreateMessage(ctx context.Context, msg match.Message) error {
	if s.failInserts > 0 {
		s.failInserts--
		return errors.New("db hiccup")
	}
	return s.MemStore.CreateMessage(ctx, msg)
}

func TestSubmitDecisionRollsBackOnSaveFailure(t *testing.T) {
	st := &flakyStore{MemStore: testutil.NewMemStore()}
	coord := NewCoordinator(st, dispatch.NewDispatcher(100), testMatchConfig())
	ctx := context.Background()
	m, err := coord.CreateMatch(ctx, Candidate{ParticipantA: "alice", ParticipantB: "bob", InitialScore: 0.58})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	coord.IngestScore(ctx, m.ID, 0.9)
	if _, err := coord.SubmitDecision(ctx, m.ID, "alice", match.DecisionContinue); err != nil {
		t.Fatalf("alice continue: %v", err)
	}

	st.failSaves = 1
	if _, err := coord.SubmitDecision(ctx, m.ID, "bob", match.DecisionPass); err == nil {
		t.Fatal("finalizing decision over a failed save should error")
	}
	snap, _ := coord.Match(ctx, m.ID)
	if snap.Status != match.StatusRevealed {
		t.Fatalf("failed save moved status to %s", snap.Status)
	}
	if snap.Decisions["bob"] != match.DecisionNone {
		t.Fatalf("failed save recorded decision %q", snap.Decisions["bob"])
	}

	// The retry lands, and only then does the terminal event go out.
	res, err := coord.SubmitDecision(ctx, m.ID, "bob", match.DecisionPass)
	if err != nil || res.Status != match.StatusEnded {
		t.Fatalf("retry: %+v %v", res, err)
	}
	for _, pid := range []string{"alice", "bob"} {
		if got := countEvents(drain(t, coord, m.ID, pid), dispatch.EventMatchStatus); got != 1 {
			t.Fatalf("%s got %d terminal events, want 1", pid, got)
		}
	}
}

func TestPostMessageRollsBackOnSaveFailure(t *testing.T) {
	st := &flakyStore{MemStore: testutil.NewMemStore()}
	coord := NewCoordinator(st, dispatch.NewDispatcher(100), testMatchConfig())
	ctx := context.Background()
	m, err := coord.CreateMatch(ctx, Candidate{ParticipantA: "alice", ParticipantB: "bob", InitialScore: 0.58})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	st.failInserts = 1
	if _, err := coord.PostMessage(ctx, m.ID, "alice", "hello"); err == nil {
		t.Fatal("post over a failed insert should error")
	}
	st.failSaves = 1
	if _, err := coord.PostMessage(ctx, m.ID, "alice", "hello"); err == nil {
		t.Fatal("post over a failed save should error")
	}

	msg, err := coord.PostMessage(ctx, m.ID, "alice", "hello")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if msg.Sequence != 1 {
		t.Fatalf("failed writes burned sequences: got %d, want 1", msg.Sequence)
	}
	if got := countEvents(drain(t, coord, m.ID, "bob"), dispatch.EventMessage); got != 1 {
		t.Fatalf("bob got %d message events, want 1", got)
	}
}

func TestRevealStaysDisarmedAcrossRehydration(t *testing.T) {
	st := testutil.NewMemStore()
	coordA := NewCoordinator(st, dispatch.NewDispatcher(100), testMatchConfig())
	ctx := context.Background()
	m, err := coordA.CreateMatch(ctx, Candidate{ParticipantA: "alice", ParticipantB: "bob", InitialScore: 0.6})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	coordA.IngestScore(ctx, m.ID, 0.85)
	coordA.SubmitDecision(ctx, m.ID, "alice", match.DecisionContinue)
	coordA.SubmitDecision(ctx, m.ID, "bob", match.DecisionContinue)
	if _, err := coordA.PostMessage(ctx, m.ID, "alice", "back to chatting"); err != nil {
		t.Fatalf("fold: %v", err)
	}

	// A fresh coordinator over the same store must not re-arm the reveal.
	coordB := NewCoordinator(st, dispatch.NewDispatcher(100), testMatchConfig())
	if err := coordB.IngestScore(ctx, m.ID, 0.95); err != nil {
		t.Fatalf("ingest after rehydration: %v", err)
	}
	snap, _ := coordB.Match(ctx, m.ID)
	if snap.Status != match.StatusChatting {
		t.Fatalf("reveal re-armed after rehydration: status = %s", snap.Status)
	}
	if snap.CurrentScore != 0.95 {
		t.Fatalf("score not applied: %v", snap.CurrentScore)
	}
}
