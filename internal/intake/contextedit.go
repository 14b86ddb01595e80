package intake

import (
	"regexp"
	"unicode/utf8"
)

// DefaultHistoryBudget caps the stored transcript at this many bytes.
const DefaultHistoryBudget = 2000

// urgencyLexicon is distinct from the emergency lexicon: it may soften or
// speed up the response tone but never changes control flow.
var urgencyLexicon = regexp.MustCompile(`(?i)\b(urgent|asap|now)\b`)

// DetectUrgency reports whether the text asks for a fast turnaround.
func DetectUrgency(text string) bool {
	return urgencyLexicon.MatchString(text)
}

// TrimHistory drops oldest transcript entries until the total byte length fits
// the budget. If the newest entry alone exceeds the budget, its oldest bytes
// are dropped so the tail fits exactly.
func TrimHistory(history []string, budget int) []string {
	if budget <= 0 {
		return nil
	}
	total := 0
	for _, line := range history {
		total += len(line)
	}
	for len(history) > 0 && total > budget {
		if len(history) == 1 {
			tail := history[0][len(history[0])-budget:]
			// Never slice through the middle of a multibyte rune.
			for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
				tail = tail[1:]
			}
			return []string{tail}
		}
		total -= len(history[0])
		history = history[1:]
	}
	return history
}
