package testutil

import (
	"context"
	"sort"
	"sync"

	"veilmatch/internal/match"
	"veilmatch/internal/store"
)

// MemStore is an in-memory match store for tests that do not need Postgres.
// It mirrors the repository semantics, deep copies included.
type MemStore struct {
	mu       sync.Mutex
	matches  map[string]match.Match
	messages map[string][]match.Message
}

func NewMemStore() *MemStore {
	return &MemStore{
		matches:  map[string]match.Match{},
		messages: map[string][]match.Message{},
	}
}

func copyMatch(m match.Match) match.Match {
	out := m
	out.Decisions = make(map[string]match.Decision, len(m.Decisions))
	for k, v := range m.Decisions {
		out.Decisions[k] = v
	}
	if m.RevealedAt != nil {
		at := *m.RevealedAt
		out.RevealedAt = &at
	}
	return out
}

func (s *MemStore) CreateMatch(_ context.Context, m match.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = copyMatch(m)
	return nil
}

func (s *MemStore) GetMatch(_ context.Context, id string) (match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return match.Match{}, store.ErrNotFound
	}
	return copyMatch(m), nil
}

func (s *MemStore) GetActiveMatchFor(_ context.Context, participantID string) (match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.Status != match.StatusEnded && m.IsParticipant(participantID) {
			return copyMatch(m), nil
		}
	}
	return match.Match{}, store.ErrNotFound
}

func (s *MemStore) SaveMatchState(_ context.Context, m match.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; !ok {
		return store.ErrNotFound
	}
	s.matches[m.ID] = copyMatch(m)
	return nil
}

func (s *MemStore) ListMatchHistory(_ context.Context, participantID string) ([]match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []match.Match
	for _, m := range s.matches {
		if m.IsParticipant(participantID) {
			out = append(out, copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) CreateMessage(_ context.Context, msg match.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.messages[msg.MatchID] {
		if existing.Sequence == msg.Sequence {
			return nil
		}
	}
	s.messages[msg.MatchID] = append(s.messages[msg.MatchID], msg)
	return nil
}

func (s *MemStore) ListMessages(_ context.Context, matchID string) ([]match.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]match.Message, len(s.messages[matchID]))
	copy(out, s.messages[matchID])
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}
