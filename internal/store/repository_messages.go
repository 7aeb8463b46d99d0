package store

import (
	"context"

	"veilmatch/internal/match"
)

func (s *Store) CreateMessage(ctx context.Context, msg match.Message) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO messages (id, match_id, sender_id, content, sequence, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (match_id, sequence) DO NOTHING`,
		msg.ID, msg.MatchID, msg.SenderID, msg.Content, msg.Sequence, msg.CreatedAt)
	return err
}

// ListMessages returns the full transcript of a match in sequence order.
func (s *Store) ListMessages(ctx context.Context, matchID string) ([]match.Message, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, match_id, sender_id, content, sequence, created_at
FROM messages WHERE match_id = $1
ORDER BY sequence ASC`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []match.Message
	for rows.Next() {
		var m match.Message
		if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Content, &m.Sequence, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
