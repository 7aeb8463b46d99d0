package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Profiles are owned by the onboarding side of the product; this package is
// only the hand-off surface. The match core reads them at reveal time and
// never mutates them beyond what the scorer pushes (highlights, suggestions).

var ErrProfileNotFound = errors.New("profile_not_found")

const (
	// match-scoped keys expire with the match
	ttlMatchData = 24 * time.Hour

	fallbackPseudonym = "Mystery Person"
)

// Profile is the stored identity behind a participant's pseudonym.
type Profile struct {
	ID          string   `json:"id"`
	Pseudonym   string   `json:"pseudonym,omitempty"`
	DisplayName string   `json:"display_name"`
	Age         int      `json:"age"`
	Location    string   `json:"location"`
	Bio         string   `json:"bio"`
	Photos      []string `json:"photos"`
}

// Reveal is what a participant learns about their partner once the match
// crosses the compatibility threshold.
type Reveal struct {
	ID                      string   `json:"id"`
	DisplayName             string   `json:"display_name"`
	Age                     int      `json:"age"`
	Location                string   `json:"location"`
	Bio                     string   `json:"bio"`
	Photos                  []string `json:"photos"`
	CompatibilityHighlights []string `json:"compatibility_highlights"`
}

type Provider struct {
	rdb *redis.Client
}

func NewProvider(rdb *redis.Client) *Provider {
	return &Provider{rdb: rdb}
}

// Open parses a redis URL and pings the server.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func keyProfile(participantID string) string { return "profile:" + participantID }
func keyHighlights(matchID string) string    { return "match:" + matchID + ":highlights" }
func keySuggestion(matchID string) string    { return "match:" + matchID + ":suggestion" }

func (p *Provider) SaveProfile(ctx context.Context, pr Profile) error {
	raw, err := json.Marshal(pr)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, keyProfile(pr.ID), raw, 0).Err()
}

func (p *Provider) GetProfile(ctx context.Context, participantID string) (Profile, error) {
	raw, err := p.rdb.Get(ctx, keyProfile(participantID)).Bytes()
	if err == redis.Nil {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	var pr Profile
	if err := json.Unmarshal(raw, &pr); err != nil {
		return Profile{}, err
	}
	return pr, nil
}

// Pseudonym never fails: an unknown or unnamed participant stays a mystery.
func (p *Provider) Pseudonym(ctx context.Context, participantID string) string {
	pr, err := p.GetProfile(ctx, participantID)
	if err != nil || pr.Pseudonym == "" {
		return fallbackPseudonym
	}
	return pr.Pseudonym
}

// SaveHighlights stores the scorer's highlights for a match. Satisfies the
// score ingestion sink.
func (p *Provider) SaveHighlights(ctx context.Context, matchID string, highlights []string) error {
	raw, err := json.Marshal(highlights)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, keyHighlights(matchID), raw, ttlMatchData).Err()
}

func (p *Provider) Highlights(ctx context.Context, matchID string) ([]string, error) {
	raw, err := p.rdb.Get(ctx, keyHighlights(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var hs []string
	if err := json.Unmarshal(raw, &hs); err != nil {
		return nil, err
	}
	return hs, nil
}

// BuildReveal assembles the partner's reveal payload for one match.
func (p *Provider) BuildReveal(ctx context.Context, matchID, partnerID string) (Reveal, error) {
	pr, err := p.GetProfile(ctx, partnerID)
	if err != nil {
		return Reveal{}, err
	}
	hs, err := p.Highlights(ctx, matchID)
	if err != nil {
		return Reveal{}, err
	}
	photos := pr.Photos
	if photos == nil {
		photos = []string{}
	}
	if hs == nil {
		hs = []string{}
	}
	return Reveal{
		ID:                      pr.ID,
		DisplayName:             pr.DisplayName,
		Age:                     pr.Age,
		Location:                pr.Location,
		Bio:                     pr.Bio,
		Photos:                  photos,
		CompatibilityHighlights: hs,
	}, nil
}

// SaveSuggestion stores the conversation facilitator's opener for a match.
func (p *Provider) SaveSuggestion(ctx context.Context, matchID, suggestion string) error {
	return p.rdb.Set(ctx, keySuggestion(matchID), suggestion, ttlMatchData).Err()
}

// Suggestion returns the stored opener, empty when the facilitator has not
// produced one.
func (p *Provider) Suggestion(ctx context.Context, matchID string) (string, error) {
	s, err := p.rdb.Get(ctx, keySuggestion(matchID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s, nil
}
