package score

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// The scorer publishes to one subject per match; the match id is the last
// token. Payload carries the score plus optional highlights.
const (
	subjectPrefix   = "match.scores."
	subjectWildcard = subjectPrefix + ">"

	natsMaxReconnects = -1 // keep retrying, scorer pushes are the only feed
	natsReconnectWait = 2 * time.Second
)

type scorePayload struct {
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

// Connect dials NATS with reconnect handling suited to a long-lived consumer.
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Consumer feeds scorer pushes into the conflator over core NATS. Scores are
// replaceable: a missed update is superseded by the next one, and durable
// replay would only reapply stale values.
type Consumer struct {
	nc        *nats.Conn
	conflator *Conflator
	sub       *nats.Subscription
}

func NewConsumer(nc *nats.Conn, conflator *Conflator) *Consumer {
	return &Consumer{nc: nc, conflator: conflator}
}

func (c *Consumer) Start() error {
	sub, err := c.nc.Subscribe(subjectWildcard, c.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subjectWildcard, err)
	}
	c.sub = sub
	log.Info().Str("subject", subjectWildcard).Msg("score consumer started")
	return nil
}

func (c *Consumer) handle(msg *nats.Msg) {
	matchID := strings.TrimPrefix(msg.Subject, subjectPrefix)
	if matchID == "" || matchID == msg.Subject {
		log.Warn().Str("subject", msg.Subject).Msg("score on unexpected subject")
		return
	}
	var p scorePayload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("undecodable score payload")
		return
	}
	c.conflator.Offer(Update{MatchID: matchID, Score: p.Score, Highlights: p.Highlights})
}

func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Drain()
}
