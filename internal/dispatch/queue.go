package dispatch

import (
	"sync"
	"time"
)

// Queue is the bounded outbound buffer for one (participant, match) pair.
// Events are retained whether or not a session is attached, so a participant
// mid-reconnect loses nothing until the bound forces the oldest out. Live
// sessions watch via Subscribe; delivery to a watcher is best effort, the
// buffer itself is the source of truth for replay.
type Queue struct {
	mu       sync.Mutex
	nextID   int64
	capacity int
	events   []Event
	watchers map[chan Event]struct{}
	closed   bool
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 500
	}
	return &Queue{
		capacity: capacity,
		watchers: map[chan Event]struct{}{},
	}
}

func (q *Queue) Append(typ EventType, matchID string, data any) Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return Event{}
	}
	q.nextID++
	ev := Event{
		ID:       q.nextID,
		Type:     typ,
		MatchID:  matchID,
		ServerTS: time.Now().UnixMilli(),
		Data:     data,
	}
	q.events = append(q.events, ev)
	if len(q.events) > q.capacity {
		// Oldest dropped first.
		q.events = q.events[len(q.events)-q.capacity:]
	}
	for ch := range q.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// ReplayAfter returns, in original order, every retained event with an ID
// greater than lastID. lastID 0 replays the whole buffer.
func (q *Queue) ReplayAfter(lastID int64) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Event, 0, len(q.events))
	for _, ev := range q.events {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (q *Queue) Subscribe() chan Event {
	ch := make(chan Event, 64)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		close(ch)
		return ch
	}
	q.watchers[ch] = struct{}{}
	return ch
}

func (q *Queue) Unsubscribe(ch chan Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.watchers[ch]; ok {
		delete(q.watchers, ch)
		close(ch)
	}
}

func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for ch := range q.watchers {
		close(ch)
		delete(q.watchers, ch)
	}
}
