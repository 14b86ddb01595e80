package intake

import "regexp"

// emergencyLexicon is the fixed set of crisis phrases that bypass every other
// stage. It is checked case-insensitively on every turn, before moderation,
// redaction, and dialog logic.
var emergencyLexicon = regexp.MustCompile(`(?i)\b(emergency|heart attack|chest pain|stroke|dying|can't breathe|cannot breathe|bleeding|unconscious|911|critical|collapsed|seizure|overdose|not breathing|passed out|severe pain)\b`)

// DetectEmergency reports whether the text matches the crisis lexicon.
func DetectEmergency(text string) bool {
	return emergencyLexicon.MatchString(text)
}

const emergencyAlertText = "EMERGENCY: Please call 911 immediately! " +
	"If you are experiencing a medical emergency, call 911 now or go to your " +
	"nearest emergency room. Do not wait. Once you are safe, come back and we " +
	"can help you book a follow-up."
