package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"veilmatch/internal/dispatch"
	"veilmatch/internal/match"
	"veilmatch/internal/testutil"
)

func TestSweepEvictsIdleEndedMatches(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := testMatchConfig()
	cfg.MatchTTL = time.Hour
	coord := NewCoordinator(testutil.NewMemStore(), dispatch.NewDispatcher(100), cfg, WithClock(clock))
	ctx := context.Background()

	m, err := coord.CreateMatch(ctx, Candidate{ParticipantA: "alice", ParticipantB: "bob", InitialScore: 0.6})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	coord.IngestScore(ctx, m.ID, 0.85)
	coord.SubmitDecision(ctx, m.ID, "alice", match.DecisionPass)

	// Ended but not idle long enough.
	if n := coord.sweepIdle(clock.Now()); n != 0 {
		t.Fatalf("swept %d matches before TTL", n)
	}

	clock.Advance(2 * time.Hour)
	if n := coord.sweepIdle(clock.Now()); n != 1 {
		t.Fatalf("swept %d matches, want 1", n)
	}

	coord.mu.Lock()
	_, resident := coord.matches[m.ID]
	coord.mu.Unlock()
	if resident {
		t.Fatal("ended match still resident after sweep")
	}

	// The store row survives eviction; only the live runtime goes away.
	if _, err := coord.store.GetMatch(ctx, m.ID); err != nil {
		t.Fatalf("match row gone after eviction: %v", err)
	}
}

func TestSweepEvictsAbandonedLiveMatchesLater(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := testMatchConfig()
	cfg.MatchTTL = time.Hour
	coord := NewCoordinator(testutil.NewMemStore(), dispatch.NewDispatcher(100), cfg, WithClock(clock))
	ctx := context.Background()

	m, err := coord.CreateMatch(ctx, Candidate{ParticipantA: "alice", ParticipantB: "bob", InitialScore: 0.6})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A live match outlives the terminal TTL.
	clock.Advance(90 * time.Minute)
	if n := coord.sweepIdle(clock.Now()); n != 0 {
		t.Fatalf("swept %d chatting matches inside the live window, want 0", n)
	}

	// But not the doubled one; the row stays and the runtime rehydrates.
	clock.Advance(time.Hour)
	if n := coord.sweepIdle(clock.Now()); n != 1 {
		t.Fatalf("swept %d abandoned matches, want 1", n)
	}
	got, err := coord.Match(ctx, m.ID)
	if err != nil {
		t.Fatalf("rehydrate after eviction: %v", err)
	}
	if got.Status != match.StatusChatting {
		t.Fatalf("rehydrated status = %s, want chatting", got.Status)
	}
}
