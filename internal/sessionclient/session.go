package sessionclient

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"veilmatch/internal/config"
	"veilmatch/internal/dispatch"
	"veilmatch/internal/ws"
)

// State tracks where a session is in its connect/reconnect lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateLost
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateLost:
		return "lost"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// Session owns one persistent channel for a (participant, match) pair. On an
// unexpected close it re-handshakes with bounded backoff; a manual Close
// skips backoff and cancels any pending retry timer. The server buffers
// events while the session is down, so a successful reattach replays the gap
// via last_event_id and nothing is lost within the buffer window.
type Session struct {
	channelURL    string
	participantID string
	matchID       string

	dial  DialFunc
	clock clockwork.Clock

	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	heartbeat   time.Duration

	lastEventID atomic.Int64
	lastSeq     atomic.Int64

	mu      sync.Mutex
	state   State
	current *liveConn

	events chan ws.Envelope
	states chan State

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// liveConn bundles one connection with its cancellation scope. failOnce
// guarantees a single reconnect loop per connection even when the read loop
// and the heartbeat detect the failure concurrently.
type liveConn struct {
	conn     Conn
	ctx      context.Context
	cancel   context.CancelFunc
	failOnce sync.Once
}

type Option func(*Session)

func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithDialer(d DialFunc) Option {
	return func(s *Session) { s.dial = d }
}

func New(channelURL, participantID, matchID string, cfg config.MatchConfig, opts ...Option) *Session {
	s := &Session{
		channelURL:    channelURL,
		participantID: participantID,
		matchID:       matchID,
		dial:          dialNhooyr,
		clock:         clockwork.NewRealClock(),
		baseDelay:     cfg.ReconnectBaseDelay,
		maxDelay:      cfg.ReconnectMaxDelay,
		maxAttempts:   cfg.ReconnectMaxAttempt,
		heartbeat:     cfg.HeartbeatInterval,
		state:         StateDisconnected,
		events:        make(chan ws.Envelope, 64),
		states:        make(chan State, 8),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events yields every server frame after sequence dedupe, in arrival order.
func (s *Session) Events() <-chan ws.Envelope { return s.events }

// States yields lifecycle transitions, best effort; slow readers miss
// intermediate states but never block the session.
func (s *Session) States() <-chan State { return s.states }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LastEventID() int64 { return s.lastEventID.Load() }

// Open performs the initial handshake. A rejection here is not retried: the
// backoff loop only covers connections that were established and then lost.
func (s *Session) Open(ctx context.Context) error {
	if s.isStopping() {
		return ErrSessionClosed
	}
	s.setState(StateConnecting)

	conn, err := s.dial(ctx, s.dialURL())
	if err != nil {
		s.setState(StateDisconnected)
		return err
	}
	s.install(conn)
	return nil
}

func (s *Session) dialURL() string {
	q := url.Values{}
	q.Set("participant_id", s.participantID)
	q.Set("match_id", s.matchID)
	if id := s.lastEventID.Load(); id > 0 {
		q.Set("last_event_id", strconv.FormatInt(id, 10))
	}
	return s.channelURL + "?" + q.Encode()
}

func (s *Session) install(conn Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	lc := &liveConn{conn: conn, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	s.current = lc
	s.mu.Unlock()
	s.setState(StateConnected)

	s.wg.Add(2)
	go s.readLoop(lc)
	go s.heartbeatLoop(lc)
}

// SendMessage posts chat content over the channel.
func (s *Session) SendMessage(ctx context.Context, content string) error {
	data, err := json.Marshal(ws.InboundMessage{Content: content})
	if err != nil {
		return err
	}
	return s.write(ctx, ws.Envelope{Type: string(dispatch.EventMessage), Data: data})
}

// SendTyping signals a typing indicator to the partner.
func (s *Session) SendTyping(ctx context.Context, typing bool) error {
	data, err := json.Marshal(ws.InboundTyping{Typing: typing})
	if err != nil {
		return err
	}
	return s.write(ctx, ws.Envelope{Type: string(dispatch.EventTyping), Data: data})
}

func (s *Session) write(ctx context.Context, env ws.Envelope) error {
	s.mu.Lock()
	lc := s.current
	connected := s.state == StateConnected
	s.mu.Unlock()
	if lc == nil || !connected {
		return ErrNotConnected
	}
	return lc.conn.WriteEnvelope(ctx, env)
}

func (s *Session) readLoop(lc *liveConn) {
	defer s.wg.Done()
	for {
		env, err := lc.conn.ReadEnvelope(lc.ctx)
		if err != nil {
			s.connFailed(lc)
			return
		}
		if env.EventID > s.lastEventID.Load() {
			s.lastEventID.Store(env.EventID)
		}
		if !s.accept(env) {
			continue
		}
		select {
		case s.events <- env:
		case <-s.stopCh:
			return
		}
	}
}

// accept drops redelivered messages by sequence; every other event type
// passes through untouched.
func (s *Session) accept(env ws.Envelope) bool {
	if env.Type != string(dispatch.EventMessage) {
		return true
	}
	var m dispatch.MessageData
	if err := json.Unmarshal(env.Data, &m); err != nil {
		log.Warn().Err(err).Str("match_id", s.matchID).Msg("undecodable message frame")
		return false
	}
	if m.Sequence <= s.lastSeq.Load() {
		return false
	}
	s.lastSeq.Store(m.Sequence)
	return true
}

func (s *Session) heartbeatLoop(lc *liveConn) {
	defer s.wg.Done()
	t := s.clock.NewTicker(s.heartbeat)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-lc.ctx.Done():
			return
		case <-t.Chan():
			ctx, cancel := context.WithTimeout(lc.ctx, 3*time.Second)
			err := lc.conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				s.connFailed(lc)
				return
			}
		}
	}
}

// connFailed tears down one connection exactly once and hands off to the
// backoff loop, unless the owner is closing the session.
func (s *Session) connFailed(lc *liveConn) {
	lc.failOnce.Do(func() {
		lc.cancel()
		_ = lc.conn.Close(websocket.StatusGoingAway, "reconnect")

		s.mu.Lock()
		if s.current == lc {
			s.current = nil
		}
		s.mu.Unlock()

		if s.isStopping() {
			return
		}
		s.setState(StateReconnecting)
		s.wg.Add(1)
		go s.reconnect()
	})
}

func (s *Session) reconnect() {
	defer s.wg.Done()
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		select {
		case <-s.stopCh:
			return
		case <-s.clock.After(s.backoffDelay(attempt)):
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		conn, err := s.dial(ctx, s.dialURL())
		cancel()
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).
				Str("match_id", s.matchID).Msg("reattach failed")
			continue
		}
		s.install(conn)
		return
	}
	log.Warn().Str("participant_id", s.participantID).Str("match_id", s.matchID).
		Msg("reconnect attempts exhausted")
	s.setState(StateLost)
}

func (s *Session) backoffDelay(attempt int) time.Duration {
	d := s.baseDelay * time.Duration(attempt)
	if d > s.maxDelay {
		d = s.maxDelay
	}
	return d
}

// Err reports why the session is no longer delivering events, nil while it
// is healthy or still retrying.
func (s *Session) Err() error {
	switch s.State() {
	case StateLost:
		return ErrConnectionLost
	case StateClosed:
		return ErrSessionClosed
	default:
		return nil
	}
}

// Close tears the session down immediately: no backoff, pending retry timers
// canceled. The match is unaffected server-side.
func (s *Session) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	lc := s.current
	s.current = nil
	s.mu.Unlock()
	if lc != nil {
		lc.cancel()
		_ = lc.conn.Close(websocket.StatusNormalClosure, "close")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.setState(StateClosed)
		return nil
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	select {
	case s.states <- st:
	default:
	}
}

func (s *Session) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}
