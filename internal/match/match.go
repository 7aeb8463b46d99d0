package match

import "time"

type Status string

const (
	StatusChatting  Status = "chatting"
	StatusRevealed  Status = "revealed"
	StatusContinued Status = "continued"
	StatusEnded     Status = "ended"
)

type Decision string

const (
	DecisionNone     Decision = ""
	DecisionContinue Decision = "continue"
	DecisionPass     Decision = "pass"
)

func ParseDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case DecisionContinue, DecisionPass:
		return Decision(s), true
	default:
		return DecisionNone, false
	}
}

// Match is one anonymous pairing. Participant tokens are opaque and never
// shown to the other side before reveal.
type Match struct {
	ID           string
	ParticipantA string
	ParticipantB string

	Status       Status
	InitialScore float64
	CurrentScore float64

	// RevealedAt is set exactly when Status leaves chatting and cleared only
	// on the continued->chatting fold.
	RevealedAt *time.Time

	// Reveals counts threshold crossings over the match lifetime. Persisted,
	// so a rehydrated match cannot reveal again after a fold unless re-arm
	// is on.
	Reveals int

	Decisions map[string]Decision

	NextSequence int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *Match) IsParticipant(id string) bool {
	return id == m.ParticipantA || id == m.ParticipantB
}

// Partner returns the other participant's token.
func (m *Match) Partner(id string) string {
	if id == m.ParticipantA {
		return m.ParticipantB
	}
	return m.ParticipantA
}

// Message is one chat turn. Sequence is assigned by the owning runtime and is
// strictly increasing per match.
type Message struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}
