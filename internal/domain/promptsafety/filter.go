// Package promptsafety holds the prompt-injection filter and the LLM output
// validator. Both are pure over their inputs; the cognitive cycle decides
// what a flagged or invalid result means for the run.
package promptsafety

import (
	"regexp"
	"strings"
)

// FilterResult is the outcome of sanitizing one piece of text.
type FilterResult struct {
	Sanitized string
	Flagged   bool
	Reasons   []string
}

type injectionPattern struct {
	re     *regexp.Regexp
	reason string
}

var injectionPatterns = []injectionPattern{
	{regexp.MustCompile(`(?i)ignore\s+(?:all\s+|any\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|directives|prompts)`), "instruction-override"},
	{regexp.MustCompile(`(?i)disregard\s+(?:the\s+)?(?:system\s+prompt|previous\s+instructions|your\s+instructions)`), "instruction-override"},
	{regexp.MustCompile(`(?i)forget\s+(?:everything|all)\s+(?:above|before|you\s+were\s+told)`), "instruction-override"},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(?:a|an|the)\b`), "role-reassignment"},
	{regexp.MustCompile(`(?im)^\s*(?:system|assistant)\s*:`), "role-spoofing"},
	{regexp.MustCompile(`(?i)</?\s*(?:system|im_start|im_end)\s*>`), "role-spoofing"},
	{regexp.MustCompile(`(?i)(?:reveal|print|repeat|show)\s+(?:your\s+)?(?:system\s+prompt|hidden\s+instructions|initial\s+instructions)`), "prompt-exfiltration"},
	{regexp.MustCompile(`(?i)\b(?:jailbreak|DAN\s+mode|developer\s+mode\s+enabled)\b`), "jailbreak-marker"},
	{regexp.MustCompile(`(?i)do\s+anything\s+now`), "jailbreak-marker"},
	{regexp.MustCompile("```\\s*(?:system|assistant)"), "fence-spoofing"},
}

// invisibleRunes are zero-width and bidi-control characters used to smuggle
// instructions past human review. They are stripped and their presence is
// itself a flag reason.
var invisibleRunes = map[rune]bool{
	'​': true, // zero-width space
	'‌': true, // zero-width non-joiner
	'‍': true, // zero-width joiner
	'⁠': true, // word joiner
	'\uFEFF': true, // BOM / zero-width no-break space
	'‪': true, '‫': true, '‬': true, '‭': true, '‮': true,
	'⁦': true, '⁧': true, '⁨': true, '⁩': true,
}

// InjectionFilter classifies text as safe or suspicious with human-readable
// reasons. Sanitize is a pure function over the text; flagging is advisory
// to the caller.
type InjectionFilter struct {
	patterns []injectionPattern
}

// NewInjectionFilter returns a filter with the default pattern set.
func NewInjectionFilter() *InjectionFilter {
	return &InjectionFilter{patterns: injectionPatterns}
}

// Sanitize strips control and invisible characters from text and reports
// every injection pattern it matches. The sanitized text is always returned,
// flagged or not.
func (f *InjectionFilter) Sanitize(text string) FilterResult {
	result := FilterResult{}
	seen := make(map[string]bool)

	var b strings.Builder
	b.Grow(len(text))
	strippedInvisible := false
	for _, r := range text {
		if invisibleRunes[r] {
			strippedInvisible = true
			continue
		}
		if r < 0x20 && r != '\n' && r != '\t' && r != '\r' {
			strippedInvisible = true
			continue
		}
		b.WriteRune(r)
	}
	result.Sanitized = b.String()
	if strippedInvisible {
		result.Flagged = true
		result.Reasons = append(result.Reasons, "invisible-characters")
		seen["invisible-characters"] = true
	}

	for _, p := range f.patterns {
		if seen[p.reason] {
			continue
		}
		if p.re.MatchString(result.Sanitized) {
			result.Flagged = true
			result.Reasons = append(result.Reasons, p.reason)
			seen[p.reason] = true
		}
	}
	return result
}
