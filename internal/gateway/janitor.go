package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"veilmatch/internal/match"
)

// StartJanitor periodically evicts matches that reached a terminal status
// and then sat idle past the TTL, releasing their runtimes and dispatcher
// queues. The match row itself stays in the store.
func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := c.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.Chan():
				c.sweepIdle(now)
			}
		}
	}()
}

func (c *Coordinator) sweepIdle(now time.Time) int {
	ttl := c.cfg.MatchTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	c.mu.Lock()
	resident := make(map[string]*matchState, len(c.matches))
	for id, ms := range c.matches {
		resident[id] = ms
	}
	c.mu.Unlock()

	evicted := 0
	for id, ms := range resident {
		snap := ms.runtime.Snapshot()
		limit := ttl
		if snap.Status != match.StatusEnded {
			// Abandoned live matches get a longer leash; they rehydrate
			// from the store on next touch, only the queues are lost.
			limit = 2 * ttl
		}
		if now.Sub(ms.runtime.IdleSince()) < limit {
			continue
		}
		c.mu.Lock()
		delete(c.matches, id)
		c.mu.Unlock()
		c.dispatcher.Drop(snap)
		evicted++
		log.Debug().Str("match_id", id).Str("status", string(snap.Status)).Msg("idle match evicted")
	}
	return evicted
}
