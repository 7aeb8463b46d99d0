package score

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Update is one push from the external scorer. Highlights ride alongside the
// score and are carried opaquely for the reveal payload.
type Update struct {
	MatchID    string   `json:"match_id"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

// Ingester applies a score to the match it belongs to.
type Ingester interface {
	IngestScore(ctx context.Context, matchID string, value float64) error
}

// HighlightSink stores the scorer's compatibility highlights for later reveal.
type HighlightSink interface {
	SaveHighlights(ctx context.Context, matchID string, highlights []string) error
}

// Conflator holds at most one pending update per match: scores replace, they
// never accumulate, so under backpressure the oldest unapplied update is
// superseded by the newest instead of queueing without bound.
type Conflator struct {
	ingester   Ingester
	highlights HighlightSink

	mu      sync.Mutex
	pending map[string]Update

	wake chan struct{}
}

func NewConflator(ingester Ingester, highlights HighlightSink) *Conflator {
	return &Conflator{
		ingester:   ingester,
		highlights: highlights,
		pending:    make(map[string]Update),
		wake:       make(chan struct{}, 1),
	}
}

// Offer replaces any unapplied update for the same match. Never blocks.
func (c *Conflator) Offer(u Update) {
	c.mu.Lock()
	c.pending[u.MatchID] = u
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run applies pending updates until ctx is canceled. One worker is enough:
// the coordinator serializes per match on its own.
func (c *Conflator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}
		for _, u := range c.drain() {
			c.apply(ctx, u)
		}
	}
}

func (c *Conflator) drain() []Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	batch := make([]Update, 0, len(c.pending))
	for _, u := range c.pending {
		batch = append(batch, u)
	}
	c.pending = make(map[string]Update)
	return batch
}

func (c *Conflator) apply(ctx context.Context, u Update) {
	if err := c.ingester.IngestScore(ctx, u.MatchID, u.Score); err != nil {
		log.Warn().Err(err).Str("match_id", u.MatchID).
			Float64("score", u.Score).Msg("score update not applied")
		return
	}
	if c.highlights != nil && len(u.Highlights) > 0 {
		if err := c.highlights.SaveHighlights(ctx, u.MatchID, u.Highlights); err != nil {
			log.Warn().Err(err).Str("match_id", u.MatchID).Msg("highlights not saved")
		}
	}
}
