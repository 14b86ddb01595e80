package intake

import "regexp"

// piiPattern is a compiled PII matcher with its field-type label. Only the
// label ever reaches annotations or logs; matched values do not.
type piiPattern struct {
	re    *regexp.Regexp
	label string
}

var piiPatterns = []piiPattern{
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "ssn"},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), "dob"},
	{regexp.MustCompile(`\(?\b\d{3}\)?[\s\-]\d{3}[\s\-]\d{4}\b`), "phone"},
	{regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.\w+\b`), "email"},
	{regexp.MustCompile(`(?i)\bMRN[:\s]*\d{6,}\b`), "mrn"},
}

const redactedPlaceholder = "[REDACTED]"

// RedactPII replaces every matched PII span with a placeholder and returns the
// field types that were detected, in pattern order. The caller keeps the
// original text for slot storage; only the redacted form may be logged or
// echoed back.
func RedactPII(text string) (string, []string) {
	var types []string
	clean := text
	for _, p := range piiPatterns {
		if p.re.MatchString(clean) {
			types = append(types, p.label)
			clean = p.re.ReplaceAllString(clean, redactedPlaceholder)
		}
	}
	return clean, types
}
