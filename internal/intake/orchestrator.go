package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/emmaduprey09/Health-Appointment-App/internal/observability/metrics"
	"github.com/emmaduprey09/Health-Appointment-App/pkg/logging"
)

// TurnProcessor is the single inbound contract the transports adapt to.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID, raw string) (TurnResponse, error)
}

// AuditRecorder receives compliance events. Implementations must never be
// handed PII values, only session ids, intents, and field-type names.
type AuditRecorder interface {
	LogEmergencyDetected(ctx context.Context, sessionID string) error
	LogModerationFlagged(ctx context.Context, sessionID string, categories []string) error
	LogPIIDetected(ctx context.Context, sessionID string, fieldTypes []string) error
	LogRequestSubmitted(ctx context.Context, sessionID, intent string) error
}

const (
	// DefaultCallBudget is the hard cap on model-invoking calls per session.
	DefaultCallBudget = 15

	defaultClinicName  = "Medical Clinic"
	defaultClinicEmail = "appointments@medicalclinic.com"
)

// Stage is one middleware step over a turn/session pair. A halted result
// skips every later stage and the dialog logic for the turn.
type Stage func(ctx context.Context, sess *Session, turn *Turn) StageResult

// Orchestrator composes the emergency detector, the safety middleware chain,
// the slot-filling dialog, the draft generator, and the confirmation gate into
// one pipeline executed per incoming message. It is the sole mutation point
// for sessions; concurrent turns for the same session id are serialized by a
// per-session lock, while different sessions process in parallel.
type Orchestrator struct {
	store         SessionStore
	classifier    Classifier
	drafter       Drafter
	audit         AuditRecorder
	metrics       *metrics.IntakeMetrics
	logger        *logging.Logger
	clinicName    string
	clinicEmail   string
	callBudget    int
	historyBudget int

	stages []Stage
	locks  keyedMutex
}

var _ TurnProcessor = (*Orchestrator)(nil)

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithDrafter sets the model capability. When absent, every draft uses the
// static template.
func WithDrafter(d Drafter) Option {
	return func(o *Orchestrator) { o.drafter = d }
}

// WithClassifier overrides the moderation capability.
func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithAudit attaches a compliance audit recorder.
func WithAudit(a AuditRecorder) Option {
	return func(o *Orchestrator) { o.audit = a }
}

// WithMetrics attaches turn pipeline metrics.
func WithMetrics(m *metrics.IntakeMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClinicIdentity sets the clinic name and intake email used in prompts
// and drafts.
func WithClinicIdentity(name, email string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.clinicName = name
		}
		if email != "" {
			o.clinicEmail = email
		}
	}
}

// WithCallBudget overrides the model call hard cap.
func WithCallBudget(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.callBudget = n
		}
	}
}

// WithHistoryBudget overrides the transcript byte budget.
func WithHistoryBudget(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyBudget = n
		}
	}
}

// New wires the turn pipeline around the supplied session store.
func New(store SessionStore, opts ...Option) *Orchestrator {
	if store == nil {
		panic("intake: session store cannot be nil")
	}
	o := &Orchestrator{
		store:         store,
		classifier:    NewLexiconClassifier(),
		logger:        logging.Default(),
		clinicName:    defaultClinicName,
		clinicEmail:   defaultClinicEmail,
		callBudget:    DefaultCallBudget,
		historyBudget: DefaultHistoryBudget,
	}
	for _, opt := range opts {
		opt(o)
	}

	// Fixed stage order: moderation gates first, redaction before anything is
	// echoed or logged, context editing before any model call. The call
	// limiter runs separately, only when a draft is about to be generated.
	o.stages = []Stage{
		o.moderationStage,
		o.redactionStage,
		o.contextStage,
	}
	return o
}

// ProcessTurn runs one message through the full pipeline and mutates the
// session exactly once. No stage failure escapes as a raw error to the
// patient; the only error returns are store failures and cancellation.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, raw string) (TurnResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return TurnResponse{}, errors.New("intake: session id required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	unlock := o.locks.lock(sessionID)
	defer unlock()

	sess, err := o.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("intake: failed to load session: %w", err)
	}

	turn := &Turn{SessionID: sessionID, Raw: raw, Sanitized: raw}

	resp, err := o.processTurn(ctx, sess, turn)
	if err != nil {
		return TurnResponse{}, err
	}
	if resp.Kind == KindPromptNextField && hasAnnotation(turn, annotationUrgency) {
		resp.Text += " We'll treat this as time-sensitive."
	}
	resp.Annotations = turn.Annotations

	// Short-circuit turns (emergency, moderation) never reach the redaction
	// stage, so the transcript line is redacted here unconditionally.
	safeInput, _ := RedactPII(turn.Raw)
	sess.AppendHistory("patient: " + safeInput)
	safeReply, _ := RedactPII(resp.Text)
	sess.AppendHistory("assistant: " + safeReply)
	sess.History = TrimHistory(sess.History, o.historyBudget)

	if err := o.store.Save(ctx, sess); err != nil {
		o.logger.Error("failed to save session", "session_id", sessionID, "error", err)
	}
	o.metrics.ObserveTurn(string(resp.Kind), time.Since(start).Seconds())
	return resp, nil
}

func (o *Orchestrator) processTurn(ctx context.Context, sess *Session, turn *Turn) (TurnResponse, error) {
	// The emergency detector runs before every other stage, on every turn,
	// including turns of an already-terminal emergency session.
	if sess.State == StateEmergency || DetectEmergency(turn.Raw) {
		if sess.State != StateEmergency {
			sess.Intent = IntentEmergency
			sess.State = StateEmergency
			o.logger.Warn("emergency detected", "session_id", sess.ID)
			o.recordAudit(o.auditEmergency(ctx, sess.ID))
		}
		turn.Annotate("emergency:detected")
		return TurnResponse{Kind: KindEmergencyAlert, Text: emergencyAlertText, Done: true}, nil
	}

	// Submitted is absorbing; a new request needs a new session.
	if sess.State == StateSubmitted {
		return TurnResponse{Kind: KindConfirmationAck, Text: confirmationAckText, Done: true}, nil
	}

	if strings.TrimSpace(turn.Raw) == "" {
		return TurnResponse{Kind: KindPromptNextField, Text: o.currentPrompt(sess)}, nil
	}

	for _, stage := range o.stages {
		// Cancellation is cooperative, checked between stages.
		if err := ctx.Err(); err != nil {
			return TurnResponse{}, err
		}
		if res := stage(ctx, sess, turn); res.halted {
			return TurnResponse{Kind: res.kind, Text: res.text, Done: res.done}, nil
		}
	}

	return o.dialogStep(ctx, sess, turn)
}

func (o *Orchestrator) moderationStage(ctx context.Context, sess *Session, turn *Turn) StageResult {
	verdict, err := o.classifier.Classify(ctx, turn.Raw)
	if err != nil {
		// The moderation collaborator being down must not block patients.
		o.logger.Warn("moderation classifier unavailable, passing through", "error", err)
		return proceed()
	}
	if !verdict.Flagged {
		return proceed()
	}
	sess.Escalated = true
	sess.Moderated = true
	turn.Annotate("moderation:flagged")
	o.logger.Warn("message flagged by moderation",
		"session_id", sess.ID,
		"categories", strings.Join(verdict.Categories, ","),
	)
	o.recordAudit(o.auditModeration(ctx, sess.ID, verdict.Categories))
	return halt(KindModerationRefusal, moderationRefusalText, false)
}

func (o *Orchestrator) redactionStage(ctx context.Context, sess *Session, turn *Turn) StageResult {
	clean, types := RedactPII(turn.Raw)
	turn.Sanitized = clean
	for _, t := range types {
		turn.Annotate("PII:" + t)
		o.metrics.ObservePII(t)
	}
	if len(types) > 0 {
		o.logger.Info("pii detected",
			"session_id", sess.ID,
			"field_types", strings.Join(types, ","),
		)
		o.recordAudit(o.auditPII(ctx, sess.ID, types))
	}
	return proceed()
}

const annotationUrgency = "urgency:high"

func (o *Orchestrator) contextStage(_ context.Context, sess *Session, turn *Turn) StageResult {
	sess.History = TrimHistory(sess.History, o.historyBudget)
	if DetectUrgency(turn.Raw) {
		turn.Annotate(annotationUrgency)
	}
	return proceed()
}

func (o *Orchestrator) dialogStep(ctx context.Context, sess *Session, turn *Turn) (TurnResponse, error) {
	switch sess.State {
	case StateAwaitingConfirmation:
		return o.confirmStep(ctx, sess, turn), nil
	case StateAwaitingIntent:
		intent, ok := MatchIntent(turn.Raw)
		if !ok {
			return TurnResponse{Kind: KindPromptNextField, Text: intentMenuText}, nil
		}
		sess.Intent = intent
		schema := fieldSchema(intent)
		sess.State = schema[0].State
		return TurnResponse{Kind: KindPromptNextField, Text: intentAck(intent, schema[0].Prompt)}, nil
	default:
		return o.collectField(ctx, sess, turn)
	}
}

func (o *Orchestrator) collectField(ctx context.Context, sess *Session, turn *Turn) (TurnResponse, error) {
	schema := fieldSchema(sess.Intent)
	spec, idx, ok := fieldAwaitedIn(schema, sess.State)
	if !ok {
		// Unreachable with well-formed sessions; recover by restarting.
		o.logger.Error("session in unknown dialog state", "session_id", sess.ID, "state", string(sess.State))
		sess.ResetFlow()
		return TurnResponse{Kind: KindRestart, Text: restartText}, nil
	}

	// Validation failure re-prompts the same field without advancing. The raw
	// input, not the sanitized echo, is what gets stored.
	value, valid := spec.Validate(turn.Raw)
	if !valid {
		return TurnResponse{Kind: KindPromptNextField, Text: spec.Reprompt}, nil
	}
	sess.Slots[spec.Name] = value

	if idx+1 < len(schema) {
		next := schema[idx+1]
		sess.State = next.State
		ack := next.ackFormat
		if strings.Contains(ack, "%s") {
			ack = fmt.Sprintf(ack, value)
		}
		return TurnResponse{Kind: KindPromptNextField, Text: ack + next.Prompt}, nil
	}

	return o.generateDraft(ctx, sess, turn)
}

const callBudgetText = "We've reached the automated drafting limit for this " +
	"session. Please contact our office directly to finish this request."

func (o *Orchestrator) generateDraft(ctx context.Context, sess *Session, turn *Turn) (TurnResponse, error) {
	// The call limiter guards model-invoking calls only, and only once a
	// model call is about to happen.
	if sess.CallCount >= o.callBudget {
		turn.Annotate("call_budget:exceeded")
		o.logger.Warn("call budget exceeded", "session_id", sess.ID, "call_count", sess.CallCount)
		return TurnResponse{Kind: KindCallBudgetExceeded, Text: callBudgetText}, nil
	}
	sess.CallCount++

	kind := KindDraftForReview
	var draft string
	if o.drafter != nil {
		d, err := o.drafter.DraftEmail(ctx, sess.Intent, sess.Slots)
		if err != nil {
			// The patient is never blocked by a model outage: substitute the
			// deterministic template and continue to confirmation.
			o.logger.Warn("draft model unavailable, serving static template",
				"session_id", sess.ID, "error", err)
			o.metrics.ObserveModelCall("fallback")
			kind = KindFallbackNotice
			draft = FallbackDraft(sess.Intent, sess.Slots, o.clinicName)
		} else {
			o.metrics.ObserveModelCall("ok")
			draft = d
		}
	} else {
		o.metrics.ObserveModelCall("fallback")
		kind = KindFallbackNotice
		draft = FallbackDraft(sess.Intent, sess.Slots, o.clinicName)
	}

	sess.PendingDraft = draft
	sess.State = StateAwaitingConfirmation
	text := fmt.Sprintf("Here is the email draft:\n\nTo: %s\n\n%s\n\nDoes this look correct? (yes to send / no to edit)",
		o.clinicEmail, draft)
	return TurnResponse{Kind: kind, Text: text}, nil
}

func (o *Orchestrator) confirmStep(ctx context.Context, sess *Session, turn *Turn) TurnResponse {
	switch readConfirmation(turn.Raw) {
	case confirmYes:
		sess.State = StateSubmitted
		o.logger.Info("request submitted", "session_id", sess.ID, "intent", string(sess.Intent))
		o.recordAudit(o.auditSubmitted(ctx, sess.ID, sess.Intent))
		return TurnResponse{Kind: KindConfirmationAck, Text: confirmationAckText, Done: true}
	case confirmNo:
		sess.ResetFlow()
		return TurnResponse{Kind: KindRestart, Text: restartText}
	default:
		return TurnResponse{Kind: KindDraftForReview, Text: confirmRepromptText}
	}
}

// currentPrompt restates the question for the session's current state, used
// when the patient sends an empty message.
func (o *Orchestrator) currentPrompt(sess *Session) string {
	switch sess.State {
	case StateAwaitingIntent:
		return intentMenuText
	case StateAwaitingConfirmation:
		return confirmRepromptText
	default:
		if spec, _, ok := fieldAwaitedIn(fieldSchema(sess.Intent), sess.State); ok {
			return spec.Prompt
		}
		return intentMenuText
	}
}

// History returns the redacted transcript for a session. The lookup is
// read-only; querying an unseen id does not create a session.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]string, error) {
	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	return sess.History, nil
}

func hasAnnotation(turn *Turn, a string) bool {
	for _, existing := range turn.Annotations {
		if existing == a {
			return true
		}
	}
	return false
}

func (o *Orchestrator) auditEmergency(ctx context.Context, sessionID string) error {
	if o.audit == nil {
		return nil
	}
	return o.audit.LogEmergencyDetected(ctx, sessionID)
}

func (o *Orchestrator) auditModeration(ctx context.Context, sessionID string, categories []string) error {
	if o.audit == nil {
		return nil
	}
	return o.audit.LogModerationFlagged(ctx, sessionID, categories)
}

func (o *Orchestrator) auditPII(ctx context.Context, sessionID string, types []string) error {
	if o.audit == nil {
		return nil
	}
	return o.audit.LogPIIDetected(ctx, sessionID, types)
}

func (o *Orchestrator) auditSubmitted(ctx context.Context, sessionID string, intent Intent) error {
	if o.audit == nil {
		return nil
	}
	return o.audit.LogRequestSubmitted(ctx, sessionID, string(intent))
}

func (o *Orchestrator) recordAudit(err error) {
	if err != nil {
		o.logger.Error("failed to record audit event", "error", err)
	}
}

// keyedMutex serializes turns per session id. Entries are reference counted
// and removed once the last holder unlocks, so the map tracks only sessions
// with turns in flight.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sessionLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &sessionLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
