package promptsafety

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ngoclaw/agentcore/internal/domain/safety"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// DefaultMaxOutputBytes bounds how much raw LLM text the validator will even
// attempt to parse.
const DefaultMaxOutputBytes = 1 << 20

// ValidationResult is the outcome of classifying one LLM response.
type ValidationResult struct {
	Success  bool
	Decision *valueobject.Decision
	Errors   []string
}

// OutputValidator parses raw LLM text into a Decision. It accepts raw JSON,
// fenced blocks, a balanced brace-span inside free text, and double-encoded
// JSON strings; whatever parses is then checked for unsafe keys and applied
// to the decision schema. Parse, unsafe-key check, and schema check run
// back-to-back with no intervening I/O, so the classification is atomic.
type OutputValidator struct {
	MaxBytes int
}

// NewOutputValidator returns a validator with the default size bound.
func NewOutputValidator() *OutputValidator {
	return &OutputValidator{MaxBytes: DefaultMaxOutputBytes}
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// Validate classifies raw into a decision or a list of errors.
func (v *OutputValidator) Validate(raw string) ValidationResult {
	maxBytes := v.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxOutputBytes
	}
	if len(raw) > maxBytes {
		return failure(fmt.Sprintf("output exceeds maximum size of %d bytes", maxBytes))
	}

	parsed, ok := parseCandidate(raw, true)
	if !ok {
		return failure("no JSON object found in output")
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return failure("output JSON is not an object")
	}

	if err := safety.AssertSafeObject(obj, 0); err != nil {
		return failure(err.Error())
	}

	return applySchema(obj)
}

// parseCandidate tries the accepted encodings in order. allowNested permits
// one level of string-containing-JSON indirection.
func parseCandidate(raw string, allowNested bool) (any, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		// A JSON string may itself contain JSON (double-encoded) or a
		// fenced block; unwrap one level.
		if inner, isString := parsed.(string); isString && allowNested {
			if nested, ok := parseCandidate(inner, false); ok {
				return nested, true
			}
			return nil, false
		}
		return parsed, true
	}

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		if nested, ok := parseCandidate(m[1], false); ok {
			return nested, true
		}
	}

	if span, ok := balancedBraceSpan(text); ok {
		var parsed any
		if err := json.Unmarshal([]byte(span), &parsed); err == nil {
			return parsed, true
		}
	}
	return nil, false
}

// balancedBraceSpan extracts the first balanced {...} span, tracking string
// literals and escapes so braces inside strings do not count.
func balancedBraceSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// applySchema checks the decision shape: actionType is a non-empty string,
// actionPayload an optional object, confidence an optional number in [0,1],
// reasoning an optional string.
func applySchema(obj map[string]any) ValidationResult {
	var errs []string

	actionType, _ := obj["actionType"].(string)
	if actionType == "" {
		errs = append(errs, "actionType must be a non-empty string")
	}

	var payload map[string]any
	if rawPayload, present := obj["actionPayload"]; present && rawPayload != nil {
		var ok bool
		payload, ok = rawPayload.(map[string]any)
		if !ok {
			errs = append(errs, "actionPayload must be an object")
		}
	}

	var confidence *float64
	if rawConf, present := obj["confidence"]; present && rawConf != nil {
		c, ok := rawConf.(float64)
		if !ok {
			errs = append(errs, "confidence must be a number")
		} else if c < 0 || c > 1 {
			errs = append(errs, "confidence must be within [0,1]")
		} else {
			confidence = &c
		}
	}

	reasoning := ""
	if rawReasoning, present := obj["reasoning"]; present && rawReasoning != nil {
		r, ok := rawReasoning.(string)
		if !ok {
			errs = append(errs, "reasoning must be a string")
		} else {
			reasoning = r
		}
	}

	if len(errs) > 0 {
		return ValidationResult{Success: false, Errors: errs}
	}
	return ValidationResult{
		Success: true,
		Decision: &valueobject.Decision{
			ActionType:    actionType,
			ActionPayload: payload,
			Confidence:    confidence,
			Reasoning:     reasoning,
		},
	}
}

func failure(msgs ...string) ValidationResult {
	return ValidationResult{Success: false, Errors: msgs}
}
