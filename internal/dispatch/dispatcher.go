package dispatch

import (
	"sync"

	"github.com/rs/zerolog/log"

	"veilmatch/internal/match"
)

type queueKey struct {
	matchID       string
	participantID string
}

// Dispatcher routes typed events to the one or two participants of a match.
// It holds one bounded queue per (participant, match) pair rather than
// callbacks, so session lifetimes and reconnects never leak into the match
// core: sessions come and go, queues stay until the match is dropped.
type Dispatcher struct {
	mu        sync.Mutex
	queues    map[queueKey]*Queue
	queueSize int
}

func NewDispatcher(queueSize int) *Dispatcher {
	return &Dispatcher{
		queues:    map[queueKey]*Queue{},
		queueSize: queueSize,
	}
}

// Bind returns the queue for a participant on a match, creating it on first
// use. An attaching session calls this, replays what it missed, subscribes.
func (d *Dispatcher) Bind(matchID, participantID string) *Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := queueKey{matchID, participantID}
	q := d.queues[key]
	if q == nil {
		q = NewQueue(d.queueSize)
		d.queues[key] = q
	}
	return q
}

// DeliverMessage routes a chat message to the non-sender only; the sender
// already has it locally.
func (d *Dispatcher) DeliverMessage(m match.Match, msg match.Message) {
	d.deliver(m.ID, m.Partner(msg.SenderID), EventMessage, NewMessageData(msg))
}

// DeliverTyping routes a typing indicator to the partner.
func (d *Dispatcher) DeliverTyping(m match.Match, senderID string, typing bool) {
	d.deliver(m.ID, m.Partner(senderID), EventTyping, TypingData{Typing: typing})
}

// BroadcastScore pushes a compatibility update to both participants.
func (d *Dispatcher) BroadcastScore(m match.Match, score float64, revealTriggered bool) {
	data := CompatibilityData{Score: score, RevealTriggered: revealTriggered}
	d.broadcast(m, EventCompatible, data)
}

// BroadcastReveal emits the one-per-encounter reveal event to both sides.
func (d *Dispatcher) BroadcastReveal(m match.Match, profileURL string) {
	d.broadcast(m, EventReveal, RevealData{ProfileURL: profileURL})
}

// BroadcastStatus pushes a terminal decision outcome to both queues, so a
// participant who is not polling still learns how the reveal resolved.
func (d *Dispatcher) BroadcastStatus(m match.Match, status match.Status) {
	d.broadcast(m, EventMatchStatus, MatchStatusData{Status: status})
}

func (d *Dispatcher) broadcast(m match.Match, typ EventType, data any) {
	d.deliver(m.ID, m.ParticipantA, typ, data)
	d.deliver(m.ID, m.ParticipantB, typ, data)
}

func (d *Dispatcher) deliver(matchID, participantID string, typ EventType, data any) {
	q := d.Bind(matchID, participantID)
	ev := q.Append(typ, matchID, data)
	log.Debug().
		Str("match_id", matchID).
		Str("participant_id", participantID).
		Str("event_type", string(typ)).
		Int64("event_id", ev.ID).
		Msg("event queued")
}

// Drop closes and forgets both queues of a match. Called by the janitor once
// a terminal match has gone idle, never at finalization time: the terminal
// event must stay replayable for absent participants.
func (d *Dispatcher) Drop(m match.Match) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, pid := range []string{m.ParticipantA, m.ParticipantB} {
		key := queueKey{m.ID, pid}
		if q := d.queues[key]; q != nil {
			q.Close()
			delete(d.queues, key)
		}
	}
}
