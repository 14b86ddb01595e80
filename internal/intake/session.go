// Package intake implements the dialog orchestration core for the clinic's
// appointment intake assistant: a slot-filling state machine wrapped by an
// ordered safety middleware chain, with a human-in-the-loop confirmation gate
// in front of every drafted request.
package intake

import "time"

// Intent is the patient's selected goal for the conversation.
type Intent string

const (
	IntentUnset      Intent = ""
	IntentBook       Intent = "book"
	IntentReschedule Intent = "reschedule"
	IntentCancel     Intent = "cancel"
	IntentEmergency  Intent = "emergency"
)

// DialogState identifies which input the session is currently waiting for.
type DialogState string

const (
	StateAwaitingIntent       DialogState = "awaiting_intent"
	StateAwaitingFullName     DialogState = "awaiting_full_name"
	StateAwaitingPhone        DialogState = "awaiting_phone"
	StateAwaitingDay          DialogState = "awaiting_day"
	StateAwaitingTime         DialogState = "awaiting_time"
	StateAwaitingConfirmation DialogState = "awaiting_draft_confirmation"
	StateSubmitted            DialogState = "submitted"
	StateEmergency            DialogState = "emergency"
)

// Session is the per-patient conversation state. It is created on the first
// message from an unseen session id and mutated exactly once per turn, by the
// orchestrator only.
type Session struct {
	ID           string            `json:"id"`
	Intent       Intent            `json:"intent"`
	Slots        map[string]string `json:"slots"`
	State        DialogState       `json:"state"`
	PendingDraft string            `json:"pending_draft,omitempty"`
	CallCount    int               `json:"call_count"`
	Moderated    bool              `json:"moderated"`
	Escalated    bool              `json:"escalated"`
	History      []string          `json:"history,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewSession returns a fresh session waiting for an intent.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		State:     StateAwaitingIntent,
		Slots:     make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the session is in an absorbing state.
func (s *Session) Terminal() bool {
	return s.State == StateEmergency || s.State == StateSubmitted
}

// ResetFlow clears the collected slots, intent, and pending draft, returning
// the session to intent selection. The call counter is deliberately preserved.
func (s *Session) ResetFlow() {
	s.Intent = IntentUnset
	s.Slots = make(map[string]string)
	s.PendingDraft = ""
	s.State = StateAwaitingIntent
}

// AppendHistory records one line of (already redacted) transcript.
func (s *Session) AppendHistory(line string) {
	if line == "" {
		return
	}
	s.History = append(s.History, line)
}
