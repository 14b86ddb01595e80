// Package handlers adapts the intake core to HTTP. Handlers carry no business
// logic; they decode requests, call ProcessTurn, and encode responses.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/emmaduprey09/Health-Appointment-App/internal/intake"
	"github.com/emmaduprey09/Health-Appointment-App/pkg/logging"
)

// HistoryReader exposes the redacted session transcript.
type HistoryReader interface {
	History(ctx context.Context, sessionID string) ([]string, error)
}

// ChatHandler serves the chat API.
type ChatHandler struct {
	processor intake.TurnProcessor
	history   HistoryReader
	limiter   *TurnLimiter
	logger    *logging.Logger
}

// NewChatHandler creates the chat HTTP handler. history and limiter may be
// nil: without a history reader the history endpoint returns empty
// transcripts, and without a limiter turn throughput is unbounded.
func NewChatHandler(processor intake.TurnProcessor, history HistoryReader, limiter *TurnLimiter, logger *logging.Logger) *ChatHandler {
	if processor == nil {
		panic("handlers: turn processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{processor: processor, history: history, limiter: limiter, logger: logger}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID   string   `json:"session_id"`
	Kind        string   `json:"kind"`
	Reply       string   `json:"reply"`
	Done        bool     `json:"done"`
	Annotations []string `json:"annotations,omitempty"`
}

// HandleChat processes one turn: POST /api/chat {session_id, message}.
// A missing session_id starts a new conversation.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}
	if !h.limiter.Allow(req.SessionID) {
		h.logger.Warn("turn rate exceeded", "session_id", req.SessionID)
		http.Error(w, "too many messages, please slow down", http.StatusTooManyRequests)
		return
	}

	resp, err := h.processor.ProcessTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.logger.Error("failed to process turn", "session_id", req.SessionID, "error", err)
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chatResponse{
		SessionID:   req.SessionID,
		Kind:        string(resp.Kind),
		Reply:       resp.Text,
		Done:        resp.Done,
		Annotations: resp.Annotations,
	})
}

// HandleHistory returns the redacted transcript: GET /api/history?session=.
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	var messages []string
	if h.history != nil {
		var err error
		messages, err = h.history.History(r.Context(), sessionID)
		if err != nil {
			h.logger.Error("failed to load history", "session_id", sessionID, "error", err)
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
	}
	if messages == nil {
		messages = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": messages})
}

// HandleHealth reports liveness.
func (h *ChatHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
