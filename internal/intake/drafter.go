package intake

import (
	"context"
	"errors"
)

// ErrModelUnavailable marks any drafting failure (timeout, auth, quota). The
// orchestrator recovers with the static fallback template; the patient never
// sees this error.
var ErrModelUnavailable = errors.New("intake: model unavailable")

// Drafter is the opaque model capability: given an intent and the filled
// slots, produce a professional email body summarizing the request. One call
// per draft; every call counts against the session's call budget.
type Drafter interface {
	DraftEmail(ctx context.Context, intent Intent, slots map[string]string) (string, error)
}
