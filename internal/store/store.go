package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not_found")

// Store wraps DB access for matches and messages. The match core treats it
// as the external persistence collaborator: it records state transitions and
// chat history, it never drives them.
type Store struct {
	Pool *pgxpool.Pool
}

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

// Bootstrap creates the schema when it does not exist yet.
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS matches (
	id             TEXT PRIMARY KEY,
	participant_a  TEXT NOT NULL,
	participant_b  TEXT NOT NULL,
	status         TEXT NOT NULL,
	initial_score  DOUBLE PRECISION NOT NULL,
	current_score  DOUBLE PRECISION NOT NULL,
	revealed_at    TIMESTAMPTZ,
	reveals        INT NOT NULL DEFAULT 0,
	decision_a     TEXT NOT NULL DEFAULT '',
	decision_b     TEXT NOT NULL DEFAULT '',
	next_sequence  BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS matches_participant_a_idx ON matches (participant_a);
CREATE INDEX IF NOT EXISTS matches_participant_b_idx ON matches (participant_b);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	match_id   TEXT NOT NULL REFERENCES matches (id),
	sender_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	sequence   BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (match_id, sequence)
);
CREATE INDEX IF NOT EXISTS messages_match_idx ON messages (match_id, sequence);
`)
	return err
}
