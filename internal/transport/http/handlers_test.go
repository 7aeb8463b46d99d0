package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"veilmatch/internal/app/matching"
	"veilmatch/internal/config"
	"veilmatch/internal/dispatch"
	"veilmatch/internal/gateway"
	"veilmatch/internal/profile"
	"veilmatch/internal/testutil"
	"veilmatch/internal/ws"
)

type stubProfiles struct{}

func (stubProfiles) Pseudonym(_ context.Context, participantID string) string {
	if participantID == "bob" {
		return "Quiet Lighthouse"
	}
	return "Mystery Person"
}

func (stubProfiles) BuildReveal(_ context.Context, _, partnerID string) (profile.Reveal, error) {
	if partnerID != "bob" {
		return profile.Reveal{}, profile.ErrProfileNotFound
	}
	return profile.Reveal{ID: "bob", DisplayName: "Bob", Age: 31}, nil
}

func (stubProfiles) Suggestion(context.Context, string) (string, error) {
	return "Ask about their favorite bad movie.", nil
}

type stubSource struct {
	candidates []gateway.Candidate
}

func (s *stubSource) NextCandidate(context.Context, string) (gateway.Candidate, error) {
	if len(s.candidates) == 0 {
		return gateway.Candidate{}, gateway.ErrNoCandidate
	}
	c := s.candidates[0]
	s.candidates = s.candidates[1:]
	return c, nil
}

func setupRouter(t *testing.T, source *stubSource) (http.Handler, *gateway.Coordinator) {
	t.Helper()
	st := testutil.NewMemStore()
	coord := gateway.NewCoordinator(st, dispatch.NewDispatcher(100), config.MatchConfig{
		RevealThreshold: 0.80,
		EventBufferSize: 100,
	})
	svc := matching.NewService(coord, st, stubProfiles{}, source)
	router := NewRouter(nil, config.ServerConfig{}, svc, ws.NewServer(coord, time.Second), nil)
	return router, coord
}

func do(t *testing.T, router http.Handler, method, path, pid, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if pid != "" {
		req.Header.Set("X-Participant-ID", pid)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestMissingParticipantHeader(t *testing.T) {
	router, _ := setupRouter(t, &stubSource{})
	rec := do(t, router, http.MethodPost, "/api/matches/find", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFindMatchEndpoint(t *testing.T) {
	router, _ := setupRouter(t, &stubSource{candidates: []gateway.Candidate{
		{ParticipantA: "alice", ParticipantB: "bob", InitialScore: 0.61},
	}})

	rec := do(t, router, http.MethodPost, "/api/matches/find", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode[matching.FindMatchResponse](t, rec)
	if resp.Match == nil || resp.Match.PartnerPseudonym != "Quiet Lighthouse" {
		t.Fatalf("resp = %+v", resp)
	}

	// second search while matched
	rec = do(t, router, http.MethodPost, "/api/matches/find", "alice", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second find status = %d", rec.Code)
	}

	// no candidate for a different participant
	rec = do(t, router, http.MethodPost, "/api/matches/find", "dave", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp = decode[matching.FindMatchResponse](t, rec)
	if resp.Match != nil || resp.Message == "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestChatAndMessageEndpoints(t *testing.T) {
	router, _ := setupRouter(t, &stubSource{candidates: []gateway.Candidate{
		{ParticipantA: "alice", ParticipantB: "bob", InitialScore: 0.61},
	}})

	rec := do(t, router, http.MethodPost, "/api/matches/find", "alice", "")
	found := decode[matching.FindMatchResponse](t, rec)
	matchID := found.Match.MatchID

	rec = do(t, router, http.MethodPost, "/api/matches/"+matchID+"/messages", "alice", `{"content":"hey"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d body %s", rec.Code, rec.Body.String())
	}
	msg := decode[matching.MessageItem](t, rec)
	if msg.Sequence != 1 || msg.Content != "hey" {
		t.Fatalf("message = %+v", msg)
	}

	rec = do(t, router, http.MethodPost, "/api/matches/"+matchID+"/messages", "alice", `{"content":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty content status = %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/matches/"+matchID+"/chat", "bob", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}
	chat := decode[matching.ChatResponse](t, rec)
	if len(chat.Messages) != 1 || chat.AISuggestion == "" {
		t.Fatalf("chat = %+v", chat)
	}

	rec = do(t, router, http.MethodGet, "/api/matches/"+matchID+"/chat", "mallory", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger chat status = %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/matches/does-not-exist/chat", "alice", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing match status = %d", rec.Code)
	}
}

func TestRevealAndDecisionEndpoints(t *testing.T) {
	router, coord := setupRouter(t, &stubSource{candidates: []gateway.Candidate{
		{ParticipantA: "alice", ParticipantB: "bob", InitialScore: 0.61},
	}})

	rec := do(t, router, http.MethodPost, "/api/matches/find", "alice", "")
	found := decode[matching.FindMatchResponse](t, rec)
	matchID := found.Match.MatchID

	rec = do(t, router, http.MethodGet, "/api/matches/"+matchID+"/reveal", "alice", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("pre-reveal status = %d", rec.Code)
	}

	if err := coord.IngestScore(context.Background(), matchID, 0.87); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	rec = do(t, router, http.MethodGet, "/api/matches/"+matchID+"/reveal", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reveal status = %d body %s", rec.Code, rec.Body.String())
	}
	reveal := decode[profile.Reveal](t, rec)
	if reveal.DisplayName != "Bob" {
		t.Fatalf("reveal = %+v", reveal)
	}

	rec = do(t, router, http.MethodPost, "/api/matches/"+matchID+"/decision", "alice", `{"decision":"maybe"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad decision status = %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/matches/"+matchID+"/decision", "alice", `{"decision":"continue"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("decision status = %d body %s", rec.Code, rec.Body.String())
	}
	dec := decode[matching.DecisionResponse](t, rec)
	if !dec.WaitingForPartner {
		t.Fatalf("decision = %+v", dec)
	}

	rec = do(t, router, http.MethodPost, "/api/matches/"+matchID+"/decision", "alice", `{"decision":"continue"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate decision status = %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/matches/"+matchID+"/decision", "bob", `{"decision":"pass"}`)
	dec = decode[matching.DecisionResponse](t, rec)
	if dec.WaitingForPartner || dec.MatchStatus != "ended" {
		t.Fatalf("final decision = %+v", dec)
	}

	rec = do(t, router, http.MethodGet, "/api/matches/history", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	hist := decode[matching.HistoryResponse](t, rec)
	if len(hist.Items) != 1 || hist.Items[0].Status != "ended" {
		t.Fatalf("history = %+v", hist.Items)
	}
}
