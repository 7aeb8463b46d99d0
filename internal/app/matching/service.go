package matching

import (
	"context"
	"errors"

	"veilmatch/internal/gateway"
	"veilmatch/internal/match"
	"veilmatch/internal/profile"
)

// CandidateSource is the external matching engine: it proposes the next
// pairing for a participant, gateway.ErrNoCandidate when it has none.
type CandidateSource interface {
	NextCandidate(ctx context.Context, participantID string) (gateway.Candidate, error)
}

// ProfileDirectory hands over pseudonyms, reveal payloads and conversation
// openers. *profile.Provider implements it.
type ProfileDirectory interface {
	Pseudonym(ctx context.Context, participantID string) string
	BuildReveal(ctx context.Context, matchID, partnerID string) (profile.Reveal, error)
	Suggestion(ctx context.Context, matchID string) (string, error)
}

// ChatLog reads back what the coordinator persisted.
type ChatLog interface {
	ListMessages(ctx context.Context, matchID string) ([]match.Message, error)
	ListMatchHistory(ctx context.Context, participantID string) ([]match.Match, error)
}

const noCandidateMessage = "No compatible matches found. Try again later."

// A conversation younger than this still gets an opener suggestion.
const suggestionMaxMessages = 3

type Service struct {
	coord    *gateway.Coordinator
	log      ChatLog
	profiles ProfileDirectory
	source   CandidateSource
}

func NewService(coord *gateway.Coordinator, log ChatLog, profiles ProfileDirectory, source CandidateSource) *Service {
	return &Service{coord: coord, log: log, profiles: profiles, source: source}
}

// FindMatch asks the matching engine for a pairing and admits it. A
// participant already in an unfinished match is rejected before the engine
// is consulted.
func (s *Service) FindMatch(ctx context.Context, participantID string) (*FindMatchResponse, error) {
	if _, err := s.coord.ActiveMatchFor(ctx, participantID); err == nil {
		return nil, gateway.ErrAlreadyMatched
	} else if !errors.Is(err, gateway.ErrMatchNotFound) {
		return nil, err
	}

	cand, err := s.source.NextCandidate(ctx, participantID)
	if err != nil {
		if errors.Is(err, gateway.ErrNoCandidate) {
			return &FindMatchResponse{Message: noCandidateMessage}, nil
		}
		return nil, err
	}

	m, err := s.coord.CreateMatch(ctx, cand)
	if err != nil {
		return nil, err
	}
	summary := s.summarize(ctx, m, participantID)
	return &FindMatchResponse{Match: &summary}, nil
}

// CurrentMatch resolves the participant's unfinished match.
func (s *Service) CurrentMatch(ctx context.Context, participantID string) (*MatchSummary, error) {
	m, err := s.coord.ActiveMatchFor(ctx, participantID)
	if err != nil {
		return nil, err
	}
	summary := s.summarize(ctx, m, participantID)
	return &summary, nil
}

// Chat returns the match summary plus the persisted transcript; young
// conversations also get the facilitator's opener if one exists.
func (s *Service) Chat(ctx context.Context, matchID, participantID string) (*ChatResponse, error) {
	m, err := s.coord.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(participantID) {
		return nil, match.ErrNotParticipant
	}

	msgs, err := s.log.ListMessages(ctx, matchID)
	if err != nil {
		return nil, err
	}
	items := make([]MessageItem, 0, len(msgs))
	for _, msg := range msgs {
		items = append(items, MessageItem{
			ID:        msg.ID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			Sequence:  msg.Sequence,
			CreatedAt: msg.CreatedAt,
		})
	}

	resp := &ChatResponse{
		Match:    s.summarize(ctx, m, participantID),
		Messages: items,
	}
	if len(items) < suggestionMaxMessages {
		suggestion, err := s.profiles.Suggestion(ctx, matchID)
		if err == nil {
			resp.AISuggestion = suggestion
		}
	}
	return resp, nil
}

// SendMessage posts one chat turn through the coordinator.
func (s *Service) SendMessage(ctx context.Context, matchID, senderID, content string) (*MessageItem, error) {
	msg, err := s.coord.PostMessage(ctx, matchID, senderID, content)
	if err != nil {
		return nil, err
	}
	return &MessageItem{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Sequence:  msg.Sequence,
		CreatedAt: msg.CreatedAt,
	}, nil
}

// RevealedProfile returns the partner's identity, legal only once the match
// has left the anonymous phase.
func (s *Service) RevealedProfile(ctx context.Context, matchID, participantID string) (*profile.Reveal, error) {
	m, err := s.coord.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(participantID) {
		return nil, match.ErrNotParticipant
	}
	if m.Status == match.StatusChatting {
		return nil, ErrNotRevealed
	}
	r, err := s.profiles.BuildReveal(ctx, matchID, m.Partner(participantID))
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SubmitDecision records a post-reveal choice and reports whether the
// reconciliation is still waiting on the partner.
func (s *Service) SubmitDecision(ctx context.Context, matchID, participantID, decision string) (*DecisionResponse, error) {
	d := match.Decision(decision)
	res, err := s.coord.SubmitDecision(ctx, matchID, participantID, d)
	if err != nil {
		return nil, err
	}
	resp := &DecisionResponse{WaitingForPartner: res.WaitingForPartner}
	if !res.WaitingForPartner {
		resp.MatchStatus = string(res.Status)
	}
	return resp, nil
}

// History lists the participant's past and present matches, newest first.
func (s *Service) History(ctx context.Context, participantID string) (*HistoryResponse, error) {
	ms, err := s.log.ListMatchHistory(ctx, participantID)
	if err != nil {
		return nil, err
	}
	items := make([]MatchSummary, 0, len(ms))
	for _, m := range ms {
		items = append(items, s.summarize(ctx, m, participantID))
	}
	return &HistoryResponse{Items: items}, nil
}

func (s *Service) summarize(ctx context.Context, m match.Match, viewerID string) MatchSummary {
	return MatchSummary{
		MatchID:            m.ID,
		PartnerPseudonym:   s.profiles.Pseudonym(ctx, m.Partner(viewerID)),
		Status:             string(m.Status),
		CompatibilityScore: m.CurrentScore,
		RevealedAt:         m.RevealedAt,
		CreatedAt:          m.CreatedAt,
	}
}
