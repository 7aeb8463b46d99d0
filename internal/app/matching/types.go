package matching

import "time"

// MatchSummary is the anonymous view of a match: the partner appears only
// under their pseudonym until the reveal.
type MatchSummary struct {
	MatchID            string     `json:"match_id"`
	PartnerPseudonym   string     `json:"partner_pseudonym"`
	Status             string     `json:"status"`
	CompatibilityScore float64    `json:"compatibility_score"`
	RevealedAt         *time.Time `json:"revealed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type FindMatchResponse struct {
	Match   *MatchSummary `json:"match,omitempty"`
	Message string        `json:"message,omitempty"`
}

type MessageItem struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatResponse struct {
	Match        MatchSummary  `json:"match"`
	Messages     []MessageItem `json:"messages"`
	AISuggestion string        `json:"ai_suggestion,omitempty"`
}

type DecisionResponse struct {
	WaitingForPartner bool   `json:"waiting_for_partner"`
	MatchStatus       string `json:"match_status,omitempty"`
}

type HistoryResponse struct {
	Items []MatchSummary `json:"items"`
}
