package safety

import (
	"reflect"
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

var defaultSensitiveSubstrings = []string{
	"password", "passwd", "secret", "apikey", "api_key", "token",
	"access_token", "refresh_token", "key", "credential", "auth",
	"authorization", "bearer", "session", "cookie",
	"ssn", "credit_card", "card_number", "pin", "pii",
}

// keyValuePattern matches "key: value" or "key=value" pairs where key looks
// like a credential field name, so free-text log lines get scrubbed too.
// Longer alternatives come first so e.g. "api_key" wins over bare "key".
var keyValuePattern = regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|access[_-]?key|private[_-]?key|client[_-]?secret|access[_-]?token|refresh[_-]?token|token|authorization|auth|bearer|credential|session|cookie|ssn|credit[_-]?card|card[_-]?number|pin|pii|key)\s*[:=]\s*\S+`)

// bareTokenPattern matches long bare alphanumeric runs that look like opaque
// credentials, while excluding things that merely contain digits/letters in
// URL or UUID shapes (handled by urlLikePattern / uuidPattern below).
var bareTokenPattern = regexp.MustCompile(`\b[A-Za-z0-9_\-]{20,}\b`)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

var urlLikePattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)

// RedactorConfig controls how Redact walks and scrubs a value.
type RedactorConfig struct {
	// SensitiveSubstrings overrides the default deny-list of key-name
	// substrings (case-insensitive) that mark a field for redaction.
	SensitiveSubstrings []string
	// AllowlistKeys, if non-empty, switches to allowlist mode: only exact key
	// names (case-insensitive) in this set are redacted, substrings are
	// ignored.
	AllowlistKeys []string
	// RedactStringPatterns additionally scans surviving string values for
	// credential-shaped substrings (key:value pairs, bare tokens) and masks
	// them in place.
	RedactStringPatterns bool
}

// Redact returns a deep copy of v with sensitive fields replaced by a fixed
// placeholder, following the same tagged-union shapes AssertSafeObject
// walks (map[string]any, []any, scalars). Cycles in non-JSON Go values are
// broken by substituting the placeholder on revisit.
func Redact(v any, cfg RedactorConfig) any {
	seen := make(map[uintptr]bool)
	return redactValue(v, cfg, seen)
}

func redactValue(v any, cfg RedactorConfig, seen map[uintptr]bool) any {
	switch val := v.(type) {
	case map[string]any:
		return redactMap(val, cfg, seen)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item, cfg, seen)
		}
		return out
	case string:
		if cfg.RedactStringPatterns {
			return redactString(val)
		}
		return val
	default:
		rv := reflect.ValueOf(v)
		if rv.IsValid() && (rv.Kind() == reflect.Map || rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Slice) {
			return redactReflect(rv, cfg, seen)
		}
		return v
	}
}

func redactMap(m map[string]any, cfg RedactorConfig, seen map[uintptr]bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		if isSensitiveKey(k, cfg) {
			out[k] = redactedPlaceholder
			continue
		}
		out[k] = redactValue(val, cfg, seen)
	}
	return out
}

func redactReflect(rv reflect.Value, cfg RedactorConfig, seen map[uintptr]bool) any {
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return redactedPlaceholder
		}
		seen[ptr] = true
		return redactValue(rv.Elem().Interface(), cfg, seen)
	}
	if rv.Kind() == reflect.Map {
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return redactedPlaceholder
		}
		seen[ptr] = true
		out := make(map[string]any, rv.Len())
		for _, key := range rv.MapKeys() {
			ks, ok := key.Interface().(string)
			if !ok {
				continue
			}
			if isSensitiveKey(ks, cfg) {
				out[ks] = redactedPlaceholder
				continue
			}
			out[ks] = redactValue(rv.MapIndex(key).Interface(), cfg, seen)
		}
		return out
	}
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = redactValue(rv.Index(i).Interface(), cfg, seen)
		}
		return out
	}
	return rv.Interface()
}

func isSensitiveKey(key string, cfg RedactorConfig) bool {
	if len(cfg.AllowlistKeys) > 0 {
		for _, k := range cfg.AllowlistKeys {
			if strings.EqualFold(k, key) {
				return true
			}
		}
		return false
	}
	substrings := cfg.SensitiveSubstrings
	if len(substrings) == 0 {
		substrings = defaultSensitiveSubstrings
	}
	lower := strings.ToLower(key)
	for _, s := range substrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// redactString masks credential-shaped substrings within free text. It is
// idempotent: re-running it against already-redacted text is a no-op since
// the placeholder itself matches neither pattern.
func redactString(s string) string {
	s = keyValuePattern.ReplaceAllStringFunc(s, func(m string) string {
		idx := strings.IndexAny(m, ":=")
		if idx < 0 {
			return m
		}
		return m[:idx+1] + " " + redactedPlaceholder
	})
	redactBare := func(seg string) string {
		return bareTokenPattern.ReplaceAllStringFunc(seg, func(m string) string {
			if uuidPattern.MatchString(m) {
				return m
			}
			return redactedPlaceholder
		})
	}
	var b strings.Builder
	last := 0
	for _, span := range urlLikePattern.FindAllStringIndex(s, -1) {
		b.WriteString(redactBare(s[last:span[0]]))
		b.WriteString(s[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(redactBare(s[last:]))
	return b.String()
}
