package intake

import (
	"context"
	"regexp"
)

// Classification is the moderation collaborator's verdict on one message.
type Classification struct {
	Flagged    bool
	Categories []string
}

// Classifier screens patient text for harmful content before any other
// processing of the message body.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// moderationPattern pairs a compiled regex with its category label.
type moderationPattern struct {
	re       *regexp.Regexp
	category string
}

var moderationPatterns = []moderationPattern{
	{regexp.MustCompile(`(?i)\b(bomb|weapon|kill|suicide|abuse)\b`), "violence"},
	{regexp.MustCompile(`(?i)\b(hack|exploit|injection)\b`), "security"},
}

// LexiconClassifier is the default moderation capability: a fixed pattern
// table with no external calls.
type LexiconClassifier struct{}

// NewLexiconClassifier returns the pattern-based classifier.
func NewLexiconClassifier() *LexiconClassifier {
	return &LexiconClassifier{}
}

// Classify matches the text against the moderation lexicon.
func (c *LexiconClassifier) Classify(_ context.Context, text string) (Classification, error) {
	var categories []string
	for _, p := range moderationPatterns {
		if p.re.MatchString(text) {
			categories = append(categories, p.category)
		}
	}
	return Classification{Flagged: len(categories) > 0, Categories: categories}, nil
}

const moderationRefusalText = "We were unable to process your message. " +
	"Please contact our office directly."
