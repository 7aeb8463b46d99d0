package dispatch

import (
	"time"

	"veilmatch/internal/match"
)

type EventType string

const (
	EventMessage     EventType = "message"
	EventTyping      EventType = "typing"
	EventCompatible  EventType = "compatibility_update"
	EventReveal      EventType = "reveal"
	EventMatchStatus EventType = "match_status"
)

// Event is one unit queued for a participant. ID is per-buffer monotonic so a
// reattaching session can replay everything it missed in original order.
type Event struct {
	ID       int64     `json:"event_id"`
	Type     EventType `json:"type"`
	MatchID  string    `json:"match_id"`
	ServerTS int64     `json:"server_ts"`
	Data     any       `json:"data"`
}

type MessageData struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

type TypingData struct {
	Typing bool `json:"typing"`
}

type CompatibilityData struct {
	Score           float64 `json:"score"`
	RevealTriggered bool    `json:"reveal_triggered"`
}

// RevealData carries a pointer to the profile payload, never the payload
// itself; profiles live outside the match core.
type RevealData struct {
	ProfileURL string `json:"profile_url,omitempty"`
}

type MatchStatusData struct {
	Status match.Status `json:"status"`
}

func NewMessageData(m match.Message) MessageData {
	return MessageData{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Sequence:  m.Sequence,
		CreatedAt: m.CreatedAt,
	}
}
