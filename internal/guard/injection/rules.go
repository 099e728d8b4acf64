package injection

import "regexp"

// Verdict is the action a rule demands on match.
type Verdict string

const (
	// VerdictBlock stops the calling action.
	VerdictBlock Verdict = "block"
	// VerdictWarn records the match but lets the action proceed.
	VerdictWarn Verdict = "warn"
)

// Rule pairs a compiled pattern with its verdict and a stable label.
type Rule struct {
	Label   string
	Verdict Verdict
	Pattern *regexp.Regexp
}

// DefaultRules is the versioned rule fixture. Evaluation is ordered with
// first-match-wins, so the position of a rule is part of its behavior:
// reordering changes which label a multi-pattern payload reports. Append new
// rules at the end of their category unless a precedence change is intended.
func DefaultRules() []Rule {
	return []Rule{
		// System prompt override / extraction.
		{
			Label:   "system_prompt_override",
			Verdict: VerdictBlock,
			Pattern: regexp.MustCompile(`(?i)(ignore|disregard|forget|skip|override)\s+(all\s+)?(previous|prior|above|earlier|system)\s+(instructions?|rules?|prompts?|directives?|context)`),
		},
		{
			Label:   "system_prompt_extraction",
			Verdict: VerdictBlock,
			Pattern: regexp.MustCompile(`(?i)(show|reveal|display|print|repeat|recite|output)\s+(me\s+)?(all\s+)?(your|the)\s+(original\s+|system\s+)?(instructions?|prompts?|rules?|configuration)`),
		},
		// Persona hijacking.
		{
			Label:   "persona_hijack",
			Verdict: VerdictBlock,
			Pattern: regexp.MustCompile(`(?i)(you\s+are\s+now|from\s+now\s+on\s+you\s+are|pretend\s+(to\s+be|you\s+are)|act\s+as\s+if\s+you\s+are|you\s+must\s+role.?play\s+as)`),
		},
		{
			Label:   "persona_hijack_dan",
			Verdict: VerdictBlock,
			Pattern: regexp.MustCompile(`(?i)\b(jailbreak|developer\s+mode|DAN\s+mode|do\s+anything\s+now)\b`),
		},
		// Fake role-tag injection.
		{
			Label:   "fake_role_tag",
			Verdict: VerdictBlock,
			Pattern: regexp.MustCompile(`(?i)(</?\s*(system|assistant|tool|human)\s*>|\[\s*/?(system|inst)\s*\]|<<\s*/?SYS\s*>>|###\s*(system|instruction))`),
		},
		// Template-injection markers.
		{
			Label:   "template_injection",
			Verdict: VerdictWarn,
			Pattern: regexp.MustCompile(`(\{\{[^}]*\}\}|\$\{[^}]*\}|<%[^%]*%>)`),
		},
		// Encoded-payload smuggling.
		{
			Label:   "encoded_payload",
			Verdict: VerdictWarn,
			Pattern: regexp.MustCompile(`(?i)((base64|hex|rot13)\s*(decode|encoded?)|(\\x[0-9a-f]{2}){4,}|(\\u[0-9a-f]{4}){4,}|[A-Za-z0-9+/]{120,}={0,2})`),
		},
		// Privilege-escalation phrasing.
		{
			Label:   "privilege_escalation",
			Verdict: VerdictBlock,
			Pattern: regexp.MustCompile(`(?i)((make|set|grant)\s+(me|my\s+account)\s+(an?\s+)?admin|unlimited\s+credits?|(add|give)\s+(me\s+)?free\s+credits?|bypass\s+(the\s+)?(payment|billing|paywall)|unlock\s+(all\s+)?premium)`),
		},
	}
}
