package intake

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDrafter struct {
	calls int
	draft string
	err   error
}

func (d *countingDrafter) DraftEmail(_ context.Context, _ Intent, _ map[string]string) (string, error) {
	d.calls++
	return d.draft, d.err
}

type failingClassifier struct{}

func (failingClassifier) Classify(_ context.Context, _ string) (Classification, error) {
	return Classification{}, errors.New("moderation service down")
}

type recordingAudit struct {
	emergencies int
	moderations int
	piiEvents   [][]string
	submissions []string
}

func (a *recordingAudit) LogEmergencyDetected(_ context.Context, _ string) error {
	a.emergencies++
	return nil
}

func (a *recordingAudit) LogModerationFlagged(_ context.Context, _ string, _ []string) error {
	a.moderations++
	return nil
}

func (a *recordingAudit) LogPIIDetected(_ context.Context, _ string, types []string) error {
	a.piiEvents = append(a.piiEvents, types)
	return nil
}

func (a *recordingAudit) LogRequestSubmitted(_ context.Context, _, intent string) error {
	a.submissions = append(a.submissions, intent)
	return nil
}

func newOrchestrator(opts ...Option) (*Orchestrator, *MemoryStore) {
	store := NewMemoryStore(time.Hour)
	return New(store, opts...), store
}

func drive(t *testing.T, o *Orchestrator, sessionID, msg string) TurnResponse {
	t.Helper()
	resp, err := o.ProcessTurn(context.Background(), sessionID, msg)
	require.NoError(t, err)
	return resp
}

func TestProcessTurnRequiresSessionID(t *testing.T) {
	o, _ := newOrchestrator()
	_, err := o.ProcessTurn(context.Background(), "  ", "hello")
	assert.Error(t, err)
}

func TestBookingFlowWithConfirmation(t *testing.T) {
	audit := &recordingAudit{}
	o, store := newOrchestrator(
		WithClinicIdentity("Harbour Clinic", "front@harbour.example"),
		WithAudit(audit),
	)

	resp := drive(t, o, "s1", "I want to book an appointment")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Text, "full name")

	resp = drive(t, o, "s1", "jane doe")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Text, "Thanks, Jane Doe!")
	assert.Contains(t, resp.Text, "phone number")

	resp = drive(t, o, "s1", "902-555-0123")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Text, "preferred day")
	assert.Contains(t, resp.Annotations, "PII:phone")

	resp = drive(t, o, "s1", "next Tuesday")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Text, "preferred time")

	// No drafter configured, so the static template serves the draft.
	resp = drive(t, o, "s1", "10:00 AM")
	assert.Equal(t, KindFallbackNotice, resp.Kind)
	assert.False(t, resp.Done)
	assert.Contains(t, resp.Text, "Here is the email draft:")
	assert.Contains(t, resp.Text, "To: front@harbour.example")
	assert.Contains(t, resp.Text, "Patient: Jane Doe")

	resp = drive(t, o, "s1", "yes")
	assert.Equal(t, KindConfirmationAck, resp.Kind)
	assert.True(t, resp.Done)

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, sess.State)
	assert.Equal(t, "(902) 555-0123", sess.Slots[SlotPhone])
	assert.Equal(t, []string{"book"}, audit.submissions)
	require.NotEmpty(t, audit.piiEvents)
	assert.Equal(t, []string{"phone"}, audit.piiEvents[0])
}

func TestSubmittedIsAbsorbing(t *testing.T) {
	o, store := newOrchestrator()
	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	sess.State = StateSubmitted
	require.NoError(t, store.Save(context.Background(), sess))

	resp := drive(t, o, "s1", "actually, cancel it")
	assert.Equal(t, KindConfirmationAck, resp.Kind)
	assert.True(t, resp.Done)
}

func TestRejectedDraftRestartsFlow(t *testing.T) {
	o, store := newOrchestrator()

	drive(t, o, "s1", "book an appointment")
	drive(t, o, "s1", "Jane Doe")
	drive(t, o, "s1", "9025550123")
	drive(t, o, "s1", "Tuesday")
	resp := drive(t, o, "s1", "morning")
	require.Equal(t, KindFallbackNotice, resp.Kind)

	resp = drive(t, o, "s1", "no")
	assert.Equal(t, KindRestart, resp.Kind)
	assert.False(t, resp.Done)

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingIntent, sess.State)
	assert.Empty(t, sess.Slots)
	assert.Empty(t, sess.PendingDraft)
	// The call counter survives the restart.
	assert.Equal(t, 1, sess.CallCount)

	// The rejected details are gone; a new intent starts clean.
	resp = drive(t, o, "s1", "cancel my appointment")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Text, "full name")
}

func TestUnclearConfirmationReprompts(t *testing.T) {
	o, _ := newOrchestrator()

	drive(t, o, "s1", "book an appointment")
	drive(t, o, "s1", "Jane Doe")
	drive(t, o, "s1", "9025550123")
	drive(t, o, "s1", "Tuesday")
	drive(t, o, "s1", "morning")

	resp := drive(t, o, "s1", "hmm let me think")
	assert.Equal(t, KindDraftForReview, resp.Kind)
	assert.Contains(t, resp.Text, "yes to send")
}

func TestInvalidFieldReprompts(t *testing.T) {
	o, store := newOrchestrator()

	drive(t, o, "s1", "book an appointment")
	resp := drive(t, o, "s1", "x")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Text, "full name")

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingFullName, sess.State)
	assert.Empty(t, sess.Slots[SlotFullName])
}

func TestEmergencyHaltsEverything(t *testing.T) {
	audit := &recordingAudit{}
	o, store := newOrchestrator(WithAudit(audit))

	resp := drive(t, o, "s1", "I have severe chest pain")
	assert.Equal(t, KindEmergencyAlert, resp.Kind)
	assert.True(t, resp.Done)
	assert.Contains(t, resp.Text, "911")

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StateEmergency, sess.State)
	assert.Equal(t, IntentEmergency, sess.Intent)
	assert.True(t, sess.Terminal())

	// The state is absorbing and the audit event fires once.
	resp = drive(t, o, "s1", "ok I want to book now")
	assert.Equal(t, KindEmergencyAlert, resp.Kind)
	assert.Equal(t, 1, audit.emergencies)
}

func TestEmergencyWinsOverModeration(t *testing.T) {
	o, _ := newOrchestrator()

	// "kill" would trip moderation, but the emergency phrasing takes priority.
	resp := drive(t, o, "s1", "this chest pain is going to kill me")
	assert.Equal(t, KindEmergencyAlert, resp.Kind)
}

func TestModerationRefusal(t *testing.T) {
	audit := &recordingAudit{}
	o, store := newOrchestrator(WithAudit(audit))

	resp := drive(t, o, "s1", "I will hack your scheduler")
	assert.Equal(t, KindModerationRefusal, resp.Kind)
	assert.False(t, resp.Done)
	assert.Contains(t, resp.Annotations, "moderation:flagged")

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, sess.Moderated)
	assert.True(t, sess.Escalated)
	// The dialog did not advance.
	assert.Equal(t, StateAwaitingIntent, sess.State)
	assert.Equal(t, 1, audit.moderations)
}

func TestClassifierOutageFailsOpen(t *testing.T) {
	o, _ := newOrchestrator(WithClassifier(failingClassifier{}))

	resp := drive(t, o, "s1", "book an appointment")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Text, "full name")
}

func TestPIINeverReachesTranscript(t *testing.T) {
	o, _ := newOrchestrator()

	drive(t, o, "s1", "book an appointment")
	drive(t, o, "s1", "Jane Doe")
	drive(t, o, "s1", "my number is 902-555-0123")

	history, err := o.History(context.Background(), "s1")
	require.NoError(t, err)
	joined := strings.Join(history, "\n")
	assert.NotContains(t, joined, "902-555-0123")
	assert.Contains(t, joined, "[REDACTED]")
}

// Emergency turns halt before the middleware chain runs, so the transcript
// redaction must not depend on the redaction stage having executed.
func TestEmergencyTurnTranscriptRedacted(t *testing.T) {
	o, _ := newOrchestrator()

	resp := drive(t, o, "s1", "I have chest pain, call me at 902-555-0123")
	require.Equal(t, KindEmergencyAlert, resp.Kind)

	history, err := o.History(context.Background(), "s1")
	require.NoError(t, err)
	joined := strings.Join(history, "\n")
	assert.NotContains(t, joined, "902-555-0123")
	assert.Contains(t, joined, "[REDACTED]")
}

// Moderation halts before the redaction stage for the same reason.
func TestModeratedTurnTranscriptRedacted(t *testing.T) {
	o, _ := newOrchestrator()

	resp := drive(t, o, "s1", "I will hack you, my SSN is 123-45-6789")
	require.Equal(t, KindModerationRefusal, resp.Kind)

	history, err := o.History(context.Background(), "s1")
	require.NoError(t, err)
	joined := strings.Join(history, "\n")
	assert.NotContains(t, joined, "123-45-6789")
	assert.Contains(t, joined, "[REDACTED]")
}

func TestCallBudgetCapsDrafting(t *testing.T) {
	drafter := &countingDrafter{draft: "model draft"}
	o, store := newOrchestrator(WithDrafter(drafter), WithCallBudget(15))

	ctx := context.Background()
	sess, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	sess.Intent = IntentBook
	sess.State = StateAwaitingTime
	sess.Slots = map[string]string{
		SlotFullName: "Jane Doe",
		SlotPhone:    "(902) 555-0123",
		SlotDay:      "Tuesday",
	}
	sess.CallCount = 15
	require.NoError(t, store.Save(ctx, sess))

	resp := drive(t, o, "s1", "10:00 AM")
	assert.Equal(t, KindCallBudgetExceeded, resp.Kind)
	assert.False(t, resp.Done)
	assert.Zero(t, drafter.calls)

	sess, err = store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 15, sess.CallCount)
}

func TestDrafterSuccess(t *testing.T) {
	drafter := &countingDrafter{draft: "Dear Team, please book Jane Doe."}
	o, store := newOrchestrator(WithDrafter(drafter))

	drive(t, o, "s1", "book an appointment")
	drive(t, o, "s1", "Jane Doe")
	drive(t, o, "s1", "9025550123")
	drive(t, o, "s1", "Tuesday")
	resp := drive(t, o, "s1", "10:00 AM")

	assert.Equal(t, KindDraftForReview, resp.Kind)
	assert.Contains(t, resp.Text, "Dear Team, please book Jane Doe.")
	assert.Equal(t, 1, drafter.calls)

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingConfirmation, sess.State)
	assert.Equal(t, "Dear Team, please book Jane Doe.", sess.PendingDraft)
	assert.Equal(t, 1, sess.CallCount)
}

func TestDrafterOutageFallsBack(t *testing.T) {
	drafter := &countingDrafter{err: ErrModelUnavailable}
	o, _ := newOrchestrator(
		WithDrafter(drafter),
		WithClinicIdentity("Harbour Clinic", "front@harbour.example"),
	)

	drive(t, o, "s1", "book an appointment")
	drive(t, o, "s1", "Jane Doe")
	drive(t, o, "s1", "9025550123")
	drive(t, o, "s1", "Tuesday")
	resp := drive(t, o, "s1", "10:00 AM")

	assert.Equal(t, KindFallbackNotice, resp.Kind)
	assert.Contains(t, resp.Text, "Dear Harbour Clinic Team,")
	assert.Equal(t, 1, drafter.calls)
}

func TestEmptyInputRepromptsCurrentQuestion(t *testing.T) {
	o, _ := newOrchestrator()

	resp := drive(t, o, "s1", "   ")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Text, "book, reschedule, or cancel")

	drive(t, o, "s1", "book an appointment")
	resp = drive(t, o, "s1", "")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Text, "full name")
}

func TestUrgencyTonesPrompt(t *testing.T) {
	o, _ := newOrchestrator()

	resp := drive(t, o, "s1", "I need to book an appointment asap")
	assert.Equal(t, KindPromptNextField, resp.Kind)
	assert.Contains(t, resp.Annotations, "urgency:high")
	assert.Contains(t, resp.Text, "time-sensitive")
}

func TestHistoryTrimmedToBudget(t *testing.T) {
	o, _ := newOrchestrator(WithHistoryBudget(120))

	for i := 0; i < 10; i++ {
		drive(t, o, "s1", "hello hello hello hello hello")
	}

	history, err := o.History(context.Background(), "s1")
	require.NoError(t, err)
	total := 0
	for _, line := range history {
		total += len(line)
	}
	assert.LessOrEqual(t, total, 120)
}

// Querying a transcript must not materialize a session for the queried id.
func TestHistoryUnknownSessionDoesNotCreate(t *testing.T) {
	o, store := newOrchestrator()

	history, err := o.History(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, history)

	sess, err := store.Get(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

// Idle sessions must not leave mutexes behind.
func TestSessionLocksEvictedWhenIdle(t *testing.T) {
	o, _ := newOrchestrator()

	drive(t, o, "s1", "book an appointment")
	drive(t, o, "s2", "cancel my appointment")

	o.locks.mu.Lock()
	defer o.locks.mu.Unlock()
	assert.Empty(t, o.locks.locks)
}

func TestConcurrentTurnsSameSession(t *testing.T) {
	o, store := newOrchestrator()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = o.ProcessTurn(context.Background(), "s1", "book an appointment")
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	// Every turn resolved against a consistent session; the first match moved
	// the dialog into the name prompt and later turns re-validated there.
	assert.Equal(t, IntentBook, sess.Intent)
}
