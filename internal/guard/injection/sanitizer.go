package injection

import (
	"regexp"

	"bulwark/internal/identity"
)

// placeholder replaces neutralized markup in sanitized messages.
const placeholder = "[filtered]"

// sanitizePatterns are the markup fragments stripped from non-admin input
// regardless of scan outcome. Sanitization is defense in depth: it runs even
// when Scan found nothing, because a pattern the scanner misses can still be
// live markup to a downstream template or model.
var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)</?\s*(system|assistant|tool|human)\s*>`),
	regexp.MustCompile(`(?i)\[\s*/?(system|inst)\s*\]`),
	regexp.MustCompile(`(?i)<<\s*/?SYS\s*>>`),
	regexp.MustCompile(`(?i)###\s*(system|instruction)s?\b`),
	regexp.MustCompile(`\{\{[^}]*\}\}`),
	regexp.MustCompile(`\$\{[^}]*\}`),
	regexp.MustCompile(`<%[^%]*%>`),
}

// Sanitize is a pure text transform, not a verdict. For non-admins it
// replaces known fake role/system tags and template markers with a neutral
// placeholder. Admin input passes through unchanged.
func Sanitize(message string, caller identity.Identity) string {
	if caller.Admin || message == "" {
		return message
	}
	for _, p := range sanitizePatterns {
		message = p.ReplaceAllString(message, placeholder)
	}
	return message
}
