package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact_MasksSensitiveKeysByDefault(t *testing.T) {
	in := map[string]any{
		"username": "alice",
		"password": "hunter2",
		"nested": map[string]any{
			"api_key": "sk-abc123",
			"note":    "fine",
		},
	}
	out := Redact(in, RedactorConfig{}).(map[string]any)
	assert.Equal(t, "alice", out["username"])
	assert.Equal(t, redactedPlaceholder, out["password"])

	nested := out["nested"].(map[string]any)
	assert.Equal(t, redactedPlaceholder, nested["api_key"])
	assert.Equal(t, "fine", nested["note"])
}

func TestRedact_DefaultDenyListCoversMandatedTerms(t *testing.T) {
	in := map[string]any{
		"encryption_key": "k1",
		"auth":           "basic xyz",
		"bearer":         "b-123",
		"ssn":            "123-45-6789",
		"credit_card":    "4111111111111111",
		"card_number":    "4111111111111111",
		"pin":            "1234",
		"pii":            "dob 1990-01-01",
		"credential":     "c",
		"session":        "s",
		"cookie":         "c=1",
		"access_token":   "at",
		"refresh_token":  "rt",
		"note":           "fine",
	}
	out := Redact(in, RedactorConfig{}).(map[string]any)
	for field := range in {
		if field == "note" {
			continue
		}
		assert.Equal(t, redactedPlaceholder, out[field], field)
	}
	assert.Equal(t, "fine", out["note"])
}

func TestRedact_StringPatternCoversMandatedTerms(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		secret string
	}{
		{"bare key", "signing key=deadbeefcafe", "deadbeefcafe"},
		{"auth", "auth: basic-xyz failed", "basic-xyz"},
		{"bearer", "sent bearer=tok-1 upstream", "tok-1"},
		{"ssn", "ssn: 123-45-6789 on file", "123-45-6789"},
		{"credit card", "credit_card=4111111111111111", "4111111111111111"},
		{"card number", "card_number: 4111111111111111", "4111111111111111"},
		{"pin", "pin=1234 entered", "1234"},
		{"pii", "pii: dob-1990-01-01", "dob-1990-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Redact(tt.in, RedactorConfig{RedactStringPatterns: true}).(string)
			assert.NotContains(t, out, tt.secret)
			assert.Contains(t, out, redactedPlaceholder)
		})
	}
}

func TestRedact_AllowlistModeRedactsOnlyListedKeys(t *testing.T) {
	in := map[string]any{"password": "x", "secretish_but_not_listed": "y"}
	out := Redact(in, RedactorConfig{AllowlistKeys: []string{"password"}}).(map[string]any)
	assert.Equal(t, redactedPlaceholder, out["password"])
	assert.Equal(t, "y", out["secretish_but_not_listed"])
}

func TestRedact_WalksSlicesAndPreservesShape(t *testing.T) {
	in := map[string]any{
		"items": []any{
			map[string]any{"token": "abc"},
			"plain string",
		},
	}
	out := Redact(in, RedactorConfig{}).(map[string]any)
	items := out["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, redactedPlaceholder, items[0].(map[string]any)["token"])
	assert.Equal(t, "plain string", items[1])
}

func TestRedact_StringPatternMode(t *testing.T) {
	in := "connecting with token: abcdef0123456789ZZZZ and url https://example.com/path/abcdefghijklmnopqrstuvwxyz"
	out := Redact(in, RedactorConfig{RedactStringPatterns: true}).(string)
	assert.Contains(t, out, "token: "+redactedPlaceholder)
	assert.Contains(t, out, "https://example.com/path/abcdefghijklmnopqrstuvwxyz")
}

func TestRedact_StringPatternModeIsIdempotent(t *testing.T) {
	in := "password=supersecretvalue1234567890"
	once := Redact(in, RedactorConfig{RedactStringPatterns: true}).(string)
	twice := Redact(once, RedactorConfig{RedactStringPatterns: true}).(string)
	assert.Equal(t, once, twice)
}

func TestRedact_HandlesCyclicGoValues(t *testing.T) {
	type node struct {
		Name string
		Next *node
	}
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	assert.NotPanics(t, func() {
		_ = Redact(a, RedactorConfig{})
	})
}
