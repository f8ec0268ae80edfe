package safety

import (
	"testing"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUnsafeKey(t *testing.T) {
	assert.True(t, IsUnsafeKey("__proto__"))
	assert.True(t, IsUnsafeKey("prototype"))
	assert.True(t, IsUnsafeKey("constructor"))
	assert.False(t, IsUnsafeKey("name"))
	assert.False(t, IsUnsafeKey(""))
}

func TestAssertSafeObject_RejectsUnsafeKeyAtAnyDepth(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"top level", map[string]any{"__proto__": "x"}},
		{"nested map", map[string]any{"a": map[string]any{"prototype": 1}}},
		{"inside slice", map[string]any{"a": []any{map[string]any{"constructor": 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AssertSafeObject(tt.v, 0)
			require.Error(t, err)
			assert.True(t, apperrors.IsSafety(err))
		})
	}
}

func TestAssertSafeObject_AllowsSafeInput(t *testing.T) {
	v := map[string]any{
		"name":  "agent",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"depth": 1},
		"count": 3,
	}
	assert.NoError(t, AssertSafeObject(v, 0))
}

// nestedMaps builds a value whose deepest leaf sits at the given depth:
// levels maps wrapped around a scalar leaf.
func nestedMaps(levels int) any {
	var v any = "leaf"
	for i := 0; i < levels; i++ {
		v = map[string]any{"n": v}
	}
	return v
}

func TestAssertSafeObject_RejectsExcessiveDepth(t *testing.T) {
	err := AssertSafeObject(nestedMaps(60), 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsSafety(err))
}

func TestAssertSafeObject_DepthBoundaryAtDefaultLimit(t *testing.T) {
	// Exactly at the limit is accepted; one level past it is rejected.
	assert.NoError(t, AssertSafeObject(nestedMaps(DefaultMaxKeyDepth), 0))

	err := AssertSafeObject(nestedMaps(DefaultMaxKeyDepth+1), 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsSafety(err))
	assert.Contains(t, err.Error(), "depth")
}

func TestAssertSafeObject_DepthBoundaryAtCustomLimit(t *testing.T) {
	assert.NoError(t, AssertSafeObject(nestedMaps(5), 5))
	assert.Error(t, AssertSafeObject(nestedMaps(6), 5))
}

func TestAssertSafeObject_ReflectionFallbackForGoMaps(t *testing.T) {
	type wrapper struct {
		Data map[string]int
	}
	bad := map[string]int{"__proto__": 1}
	err := AssertSafeObject(bad, 0)
	assert.Error(t, err)

	_ = wrapper{} // struct fields aren't walked; only map/slice/scalar shapes are
}
