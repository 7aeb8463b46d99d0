package matchmaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"veilmatch/internal/gateway"
)

// The matching engine answers candidate requests over NATS request-reply.
// An empty candidate in the reply means nothing suitable right now.
const (
	requestSubject = "match.candidates.request"
	requestTimeout = 3 * time.Second
)

type candidateRequest struct {
	ParticipantID string `json:"participant_id"`
}

type candidateReply struct {
	Candidate *struct {
		ParticipantA string  `json:"participant_a"`
		ParticipantB string  `json:"participant_b"`
		InitialScore float64 `json:"initial_score"`
	} `json:"candidate"`
}

// NATSSource asks the external matching engine for the next pairing.
type NATSSource struct {
	nc *nats.Conn
}

func NewNATSSource(nc *nats.Conn) *NATSSource {
	return &NATSSource{nc: nc}
}

func (s *NATSSource) NextCandidate(ctx context.Context, participantID string) (gateway.Candidate, error) {
	req, err := json.Marshal(candidateRequest{ParticipantID: participantID})
	if err != nil {
		return gateway.Candidate{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	msg, err := s.nc.RequestWithContext(ctx, requestSubject, req)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return gateway.Candidate{}, gateway.ErrNoCandidate
		}
		return gateway.Candidate{}, fmt.Errorf("candidate request: %w", err)
	}
	return parseCandidateReply(msg.Data)
}

func parseCandidateReply(data []byte) (gateway.Candidate, error) {
	var reply candidateReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return gateway.Candidate{}, fmt.Errorf("decode candidate reply: %w", err)
	}
	if reply.Candidate == nil {
		return gateway.Candidate{}, gateway.ErrNoCandidate
	}
	c := reply.Candidate
	if c.ParticipantA == "" || c.ParticipantB == "" {
		return gateway.Candidate{}, gateway.ErrNoCandidate
	}
	return gateway.Candidate{
		ParticipantA: c.ParticipantA,
		ParticipantB: c.ParticipantB,
		InitialScore: c.InitialScore,
	}, nil
}
