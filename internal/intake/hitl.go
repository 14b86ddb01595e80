package intake

import "strings"

// confirmDecision is the outcome of reading a patient's reply while a draft
// is pending review.
type confirmDecision int

const (
	confirmUnclear confirmDecision = iota
	confirmYes
	confirmNo
)

var affirmativeReplies = map[string]struct{}{
	"yes": {}, "y": {}, "send": {}, "confirm": {}, "looks good": {},
	"correct": {}, "ok": {}, "sure": {}, "yeah": {}, "yep": {},
}

var negativeReplies = map[string]struct{}{
	"no": {}, "n": {}, "edit": {}, "change": {}, "redo": {},
	"wrong": {}, "incorrect": {}, "restart": {},
}

// readConfirmation classifies a reply against the affirmative and negative
// token sets. Anything that matches neither is unclear and re-prompts.
func readConfirmation(raw string) confirmDecision {
	reply := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := affirmativeReplies[reply]; ok {
		return confirmYes
	}
	if _, ok := negativeReplies[reply]; ok {
		return confirmNo
	}
	return confirmUnclear
}

const (
	confirmationAckText = "Your request has been submitted. A team member will " +
		"contact you shortly to confirm."

	restartText = "No problem! Let's start over. What would you like to do? " +
		"(book / reschedule / cancel an appointment)"

	confirmRepromptText = "Please reply yes to send the email, or no to start over."
)
