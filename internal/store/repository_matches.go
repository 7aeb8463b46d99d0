package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"veilmatch/internal/match"
)

func (s *Store) CreateMatch(ctx context.Context, m match.Match) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO matches (id, participant_a, participant_b, status, initial_score, current_score,
                     revealed_at, reveals, decision_a, decision_b, next_sequence, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.ParticipantA, m.ParticipantB, string(m.Status),
		m.InitialScore, m.CurrentScore, m.RevealedAt, m.Reveals,
		string(m.Decisions[m.ParticipantA]), string(m.Decisions[m.ParticipantB]),
		m.NextSequence, m.CreatedAt, m.UpdatedAt)
	return err
}

func (s *Store) GetMatch(ctx context.Context, id string) (match.Match, error) {
	row := s.Pool.QueryRow(ctx, `
SELECT id, participant_a, participant_b, status, initial_score, current_score,
       revealed_at, reveals, decision_a, decision_b, next_sequence, created_at, updated_at
FROM matches WHERE id = $1`, id)
	return scanMatch(row)
}

// GetActiveMatchFor returns the participant's match that is still in play
// (anything but ended).
func (s *Store) GetActiveMatchFor(ctx context.Context, participantID string) (match.Match, error) {
	row := s.Pool.QueryRow(ctx, `
SELECT id, participant_a, participant_b, status, initial_score, current_score,
       revealed_at, reveals, decision_a, decision_b, next_sequence, created_at, updated_at
FROM matches
WHERE (participant_a = $1 OR participant_b = $1) AND status != 'ended'
ORDER BY created_at DESC
LIMIT 1`, participantID)
	return scanMatch(row)
}

// SaveMatchState persists the mutable half of a match after a runtime
// transition.
func (s *Store) SaveMatchState(ctx context.Context, m match.Match) error {
	tag, err := s.Pool.Exec(ctx, `
UPDATE matches
SET status = $2, current_score = $3, revealed_at = $4, reveals = $5,
    decision_a = $6, decision_b = $7, next_sequence = $8, updated_at = $9
WHERE id = $1`,
		m.ID, string(m.Status), m.CurrentScore, m.RevealedAt, m.Reveals,
		string(m.Decisions[m.ParticipantA]), string(m.Decisions[m.ParticipantB]),
		m.NextSequence, m.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMatchHistory returns every match the participant was ever part of,
// newest first.
func (s *Store) ListMatchHistory(ctx context.Context, participantID string) ([]match.Match, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, participant_a, participant_b, status, initial_score, current_score,
       revealed_at, reveals, decision_a, decision_b, next_sequence, created_at, updated_at
FROM matches
WHERE participant_a = $1 OR participant_b = $1
ORDER BY created_at DESC`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []match.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (match.Match, error) {
	var (
		m                  match.Match
		status, decA, decB string
		revealedAt         *time.Time
	)
	err := row.Scan(&m.ID, &m.ParticipantA, &m.ParticipantB, &status,
		&m.InitialScore, &m.CurrentScore, &revealedAt, &m.Reveals,
		&decA, &decB, &m.NextSequence, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return match.Match{}, ErrNotFound
	}
	if err != nil {
		return match.Match{}, err
	}
	m.Status = match.Status(status)
	m.RevealedAt = revealedAt
	m.Decisions = map[string]match.Decision{
		m.ParticipantA: match.Decision(decA),
		m.ParticipantB: match.Decision(decB),
	}
	return m, nil
}
