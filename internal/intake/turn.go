package intake

// ResponseKind classifies what a processed turn produced.
type ResponseKind string

const (
	KindPromptNextField    ResponseKind = "prompt_next_field"
	KindEmergencyAlert     ResponseKind = "emergency_alert"
	KindDraftForReview     ResponseKind = "draft_for_review"
	KindConfirmationAck    ResponseKind = "confirmation_ack"
	KindRestart            ResponseKind = "restart"
	KindFallbackNotice     ResponseKind = "fallback_notice"
	KindModerationRefusal  ResponseKind = "moderation_refusal"
	KindCallBudgetExceeded ResponseKind = "call_budget_exceeded"
)

// Turn carries one request through the pipeline. It is created, processed, and
// discarded; nothing outlives the response and the session mutation.
type Turn struct {
	SessionID string
	// Raw is the patient's input exactly as received. It is the value written
	// into slot storage when a field is being collected.
	Raw string
	// Sanitized is the PII-redacted form of Raw, safe to log, echo, or keep in
	// the session transcript.
	Sanitized string
	// Annotations are middleware findings, field-type names only (for example
	// "PII:phone" or "urgency:high"), never values.
	Annotations []string
}

// Annotate appends a middleware annotation to the turn.
func (t *Turn) Annotate(a string) {
	t.Annotations = append(t.Annotations, a)
}

// TurnResponse is the single outbound contract of the core.
type TurnResponse struct {
	Kind ResponseKind `json:"kind"`
	Text string       `json:"text"`
	// Done is true only for terminal kinds (emergency_alert, confirmation_ack).
	Done        bool     `json:"done"`
	Annotations []string `json:"annotations,omitempty"`
}

// StageResult is the outcome of one middleware stage: pass-through (possibly
// with a mutated turn/session) or a short-circuit terminal response that
// skips every later stage.
type StageResult struct {
	halted bool
	kind   ResponseKind
	text   string
	done   bool
}

func proceed() StageResult { return StageResult{} }

func halt(kind ResponseKind, text string, done bool) StageResult {
	return StageResult{halted: true, kind: kind, text: text, done: done}
}
