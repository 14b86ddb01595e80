package intake

import "fmt"

// intentAction phrases the requested action for email text.
func intentAction(intent Intent) string {
	switch intent {
	case IntentCancel:
		return "cancel my appointment"
	case IntentReschedule:
		return "reschedule my appointment"
	default:
		return "book a new appointment"
	}
}

// intentSubject is the email subject label per intent.
func intentSubject(intent Intent) string {
	switch intent {
	case IntentCancel:
		return "Appointment Cancellation Request"
	case IntentReschedule:
		return "Appointment Reschedule Request"
	case IntentBook:
		return "New Appointment Request"
	default:
		return "Appointment Request"
	}
}

// FallbackDraft assembles a deterministic email purely from the slot mapping,
// with no model involvement. Identical slots always yield identical text.
func FallbackDraft(intent Intent, slots map[string]string, clinicName string) string {
	name := slots[SlotFullName]
	return fmt.Sprintf(
		"Subject: %s - %s\n\n"+
			"Dear %s Team,\n\n"+
			"I would like to %s.\n\n"+
			"Patient: %s\n"+
			"Phone: %s\n"+
			"Day: %s\n"+
			"Time: %s\n\n"+
			"Please contact me to confirm.\n\n"+
			"Thank you,\n%s",
		intentSubject(intent), name,
		clinicName,
		intentAction(intent),
		name,
		slots[SlotPhone],
		slots[SlotDay],
		slots[SlotTime],
		name,
	)
}
