package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"veilmatch/internal/dispatch"
	"veilmatch/internal/gateway"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	maxMessageSize = 4096
)

// Server upgrades HTTP requests into persistent per-(participant, match)
// channels and bridges them to the dispatcher queues.
type Server struct {
	coord        *gateway.Coordinator
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

func NewServer(coord *gateway.Coordinator, pingInterval time.Duration) *Server {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Server{
		coord:        coord,
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		pingInterval: pingInterval,
	}
}

// HandleChannel is the handshake endpoint. The participant and match are
// validated before the upgrade, so an unauthorized open fails as plain HTTP
// and never becomes a socket.
func (s *Server) HandleChannel(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participant_id")
	matchID := r.URL.Query().Get("match_id")
	lastEventID, _ := strconv.ParseInt(r.URL.Query().Get("last_event_id"), 10, 64)

	queue, _, err := s.coord.Attach(r.Context(), participantID, matchID)
	if err != nil {
		status := http.StatusForbidden
		if errors.Is(err, gateway.ErrMatchNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sess := &session{
		server:        s,
		conn:          conn,
		participantID: participantID,
		matchID:       matchID,
		send:          make(chan []byte, 64),
		done:          make(chan struct{}),
	}

	go sess.writePump()
	go sess.forwardEvents(queue, lastEventID)
	sess.readPump()
}

// session is the server half of one live channel.
type session struct {
	server        *Server
	conn          *websocket.Conn
	participantID string
	matchID       string
	send          chan []byte
	done          chan struct{}
}

// forwardEvents replays everything missed since lastEventID, then follows
// the live queue. Subscribing before replay closes the gap between the two;
// duplicates are filtered by event ID here and by message sequence on the
// client.
func (sess *session) forwardEvents(queue *dispatch.Queue, lastEventID int64) {
	live := queue.Subscribe()
	defer queue.Unsubscribe(live)

	highest := lastEventID
	for _, ev := range queue.ReplayAfter(lastEventID) {
		if !sess.enqueue(ev) {
			return
		}
		highest = ev.ID
	}

	for {
		select {
		case <-sess.done:
			return
		case ev, ok := <-live:
			if !ok {
				return
			}
			if ev.ID <= highest {
				continue
			}
			highest = ev.ID
			if !sess.enqueue(ev) {
				return
			}
		}
	}
}

func (sess *session) enqueue(ev dispatch.Event) bool {
	frame, err := EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("match_id", sess.matchID).Msg("encode event failed")
		return true
	}
	select {
	case sess.send <- frame:
		return true
	case <-sess.done:
		return false
	}
}

func (sess *session) readPump() {
	defer func() {
		close(sess.done)
		_ = sess.conn.Close()
	}()

	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := DecodeCommand(raw)
		if err != nil {
			// Malformed frames never take the session down.
			log.Warn().
				Str("match_id", sess.matchID).
				Str("participant_id", sess.participantID).
				Msg("dropping malformed envelope")
			continue
		}
		sess.apply(cmd)
	}
}

func (sess *session) apply(cmd Command) {
	ctx := context.Background()
	switch cmd.Type {
	case dispatch.EventMessage:
		if _, err := sess.server.coord.PostMessage(ctx, sess.matchID, sess.participantID, cmd.Message.Content); err != nil {
			log.Warn().Err(err).Str("match_id", sess.matchID).Msg("inbound message rejected")
		}
	case dispatch.EventTyping:
		if err := sess.server.coord.Typing(ctx, sess.matchID, sess.participantID, cmd.Typing.Typing); err != nil {
			log.Warn().Err(err).Str("match_id", sess.matchID).Msg("typing relay rejected")
		}
	}
}

func (sess *session) writePump() {
	ticker := time.NewTicker(sess.server.pingInterval)
	defer func() {
		ticker.Stop()
		_ = sess.conn.Close()
	}()

	for {
		select {
		case <-sess.done:
			return
		case frame := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sess.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
