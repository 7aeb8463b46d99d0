package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veilmatch/internal/app/matching"
	"veilmatch/internal/store"
)

type Handlers struct {
	svc   *matching.Service
	store *store.Store
}

func NewHandlers(svc *matching.Service, st *store.Store) *Handlers {
	return &Handlers{svc: svc, store: st}
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store != nil {
			if err := h.store.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func (h *Handlers) FindMatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid := participantID(r)
		if pid == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_participant")
			return
		}
		metricFindMatchTotal.Add(1)
		resp, err := h.svc.FindMatch(r.Context(), pid)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *Handlers) CurrentMatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid := participantID(r)
		if pid == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_participant")
			return
		}
		resp, err := h.svc.CurrentMatch(r.Context(), pid)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *Handlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid := participantID(r)
		if pid == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_participant")
			return
		}
		resp, err := h.svc.History(r.Context(), pid)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *Handlers) Chat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid := participantID(r)
		if pid == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_participant")
			return
		}
		resp, err := h.svc.Chat(r.Context(), chi.URLParam(r, "match_id"), pid)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handlers) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid := participantID(r)
		if pid == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_participant")
			return
		}
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		metricMessagePostTotal.Add(1)
		resp, err := h.svc.SendMessage(r.Context(), chi.URLParam(r, "match_id"), pid, req.Content)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *Handlers) Reveal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid := participantID(r)
		if pid == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_participant")
			return
		}
		resp, err := h.svc.RevealedProfile(r.Context(), chi.URLParam(r, "match_id"), pid)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (h *Handlers) Decide() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid := participantID(r)
		if pid == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_participant")
			return
		}
		var req decisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		metricDecisionTotal.Add(1)
		resp, err := h.svc.SubmitDecision(r.Context(), chi.URLParam(r, "match_id"), pid, req.Decision)
		if err != nil {
			metricDecisionErrors.Add(1)
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
