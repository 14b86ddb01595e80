package intake

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Slot names collected during the dialog.
const (
	SlotFullName = "full_name"
	SlotPhone    = "phone"
	SlotDay      = "day"
	SlotTime     = "time"
)

// FieldSpec is one entry of an intent's declarative field schema: the dialog
// state that awaits it, the question that asks for it, a re-prompt for invalid
// input, and a validator that normalizes the accepted value.
type FieldSpec struct {
	Name     string
	State    DialogState
	Prompt   string
	Reprompt string
	// Validate returns the normalized value and whether the input passed.
	Validate func(raw string) (string, bool)
	// ackFormat, when non-empty, prefixes the next prompt with an
	// acknowledgment of the accepted value (fmt verb %s).
	ackFormat string
}

var titleCaser = cases.Title(language.English)

func validateName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if len(name) < 2 {
		return "", false
	}
	return titleCaser.String(name), true
}

var nonDigit = regexp.MustCompile(`\D`)

func validatePhone(raw string) (string, bool) {
	digits := nonDigit.ReplaceAllString(raw, "")
	if len(digits) < 7 {
		return "", false
	}
	switch len(digits) {
	case 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:]), true
	case 11:
		return fmt.Sprintf("+%s (%s) %s-%s", digits[:1], digits[1:4], digits[4:7], digits[7:]), true
	default:
		return strings.TrimSpace(raw), true
	}
}

func validateFreeText(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if len(text) < 2 {
		return "", false
	}
	return text, true
}

// fieldSchema returns the ordered field sequence for an intent. Cancellations
// ask about the existing appointment; book and reschedule ask for preferences.
func fieldSchema(intent Intent) []FieldSpec {
	dayPrompt := "What is your preferred day? (e.g. next Monday, March 5)"
	timePrompt := "And what is your preferred time? (e.g. 10:00 AM, afternoon)"
	if intent == IntentCancel {
		dayPrompt = "What is the date of the appointment you want to cancel? (e.g. next Monday, March 5)"
		timePrompt = "And what time was the appointment? (e.g. 2:00 PM, afternoon)"
	}
	return []FieldSpec{
		{
			Name:     SlotFullName,
			State:    StateAwaitingFullName,
			Prompt:   "What is your full name?",
			Reprompt: "Please enter your full name.",
			Validate: validateName,
		},
		{
			Name:      SlotPhone,
			State:     StateAwaitingPhone,
			Prompt:    "What is your phone number?",
			Reprompt:  "Please enter a valid phone number (e.g. 902-555-0123).",
			Validate:  validatePhone,
			ackFormat: "Thanks, %s! ",
		},
		{
			Name:      SlotDay,
			State:     StateAwaitingDay,
			Prompt:    dayPrompt,
			Reprompt:  "Please enter a preferred day or date.",
			Validate:  validateFreeText,
			ackFormat: "Got it! ",
		},
		{
			Name:     SlotTime,
			State:    StateAwaitingTime,
			Prompt:   timePrompt,
			Reprompt: "Please enter a preferred time.",
			Validate: validateFreeText,
		},
	}
}

// fieldAwaitedIn finds the schema entry for the given dialog state.
func fieldAwaitedIn(schema []FieldSpec, state DialogState) (FieldSpec, int, bool) {
	for i, f := range schema {
		if f.State == state {
			return f, i, true
		}
	}
	return FieldSpec{}, 0, false
}

// intentPatterns mirror the keyword matching of the intake script: an intent
// keyword near "appointment", or the bare verb.
var intentPatterns = []struct {
	intent Intent
	re     *regexp.Regexp
}{
	{IntentReschedule, regexp.MustCompile(`(?i)\b(reschedule|move|change|shift|postpone|rebook)\b`)},
	{IntentCancel, regexp.MustCompile(`(?i)\b(cancel|remove|drop|delete)\b`)},
	// "need/want" phrasing only counts as a booking when the utterance also
	// mentions what is being requested.
	{IntentBook, regexp.MustCompile(`(?i)\b(book|schedule)\b|\b(make|new|set up|need|want|would like)\b.*\b(appointment|see a doctor)\b`)},
}

// MatchIntent classifies free text into one of the supported intents.
// Emergency is handled upstream by the detector, never here.
func MatchIntent(text string) (Intent, bool) {
	for _, p := range intentPatterns {
		if p.re.MatchString(text) {
			return p.intent, true
		}
	}
	return IntentUnset, false
}

const intentMenuText = "I can help you book, reschedule, or cancel an appointment. " +
	"Just type what you need!"

// intentAck opens the field collection once an intent is recognized.
func intentAck(intent Intent, firstPrompt string) string {
	return fmt.Sprintf("I can help you %s an appointment. Let's get a few details first. %s",
		intent, firstPrompt)
}
