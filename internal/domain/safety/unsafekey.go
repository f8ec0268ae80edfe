// Package safety implements the core's safety primitives: unsafe-key
// rejection, path-traversal prevention, SSRF filtering, rate limiting, and
// structured redaction.
package safety

import (
	"reflect"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// DefaultMaxKeyDepth bounds the recursion depth assertSafeObject will walk
// before treating the input itself as malformed.
const DefaultMaxKeyDepth = 50

var unsafeKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// IsUnsafeKey reports whether a single property-path segment is one of the
// prototype-pollution-style unsafe keys.
func IsUnsafeKey(key string) bool {
	return unsafeKeys[key]
}

// AssertSafeObject walks v (expected to be the result of decoding JSON —
// map[string]any, []any, and scalars) and returns a CodeSafety AppError if
// any reachable map key is unsafe, or if the structure nests deeper than
// maxDepth. A maxDepth of 0 uses DefaultMaxKeyDepth.
func AssertSafeObject(v any, maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxKeyDepth
	}
	return walk(v, 0, maxDepth)
}

func walk(v any, depth, maxDepth int) error {
	if depth > maxDepth {
		return apperrors.NewSafetyError("object exceeds maximum nesting depth")
	}
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if IsUnsafeKey(k) {
				return apperrors.NewSafetyError("unsafe key: " + k)
			}
			if err := walk(child, depth+1, maxDepth); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range val {
			if err := walk(child, depth+1, maxDepth); err != nil {
				return err
			}
		}
	default:
		// Scalars (and any other concrete Go struct reachable via reflection,
		// e.g. a tool result built programmatically rather than decoded from
		// JSON) are inspected defensively so the same assertion can guard
		// both inbound JSON and in-process Go values.
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Kind() == reflect.Map {
			for _, key := range rv.MapKeys() {
				ks, ok := key.Interface().(string)
				if ok && IsUnsafeKey(ks) {
					return apperrors.NewSafetyError("unsafe key: " + ks)
				}
				if err := walk(rv.MapIndex(key).Interface(), depth+1, maxDepth); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
