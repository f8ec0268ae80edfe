package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

type hasTools map[string]bool

func (h hasTools) Has(name string) bool { return h[name] }

func decision(actionType string) *valueobject.Decision {
	return &valueobject.Decision{ActionType: actionType}
}

func TestPolicyGate_DefaultPolicy(t *testing.T) {
	g := NewPolicyGate(nil, hasTools{"shell": true})

	ok, _ := g.IsAllowed(decision("pursue_goal"), "g1")
	assert.True(t, ok)

	ok, _ = g.IsAllowed(decision("shell"), "g1")
	assert.True(t, ok)

	ok, reason := g.IsAllowed(decision("unregistered"), "g1")
	assert.False(t, ok)
	assert.Contains(t, reason, "not in policy")
}

func TestPolicyGate_DenyTakesPrecedence(t *testing.T) {
	g := NewPolicyGate(&Policy{
		AllowedActions:       []string{"pursue_goal"},
		DeniedActions:        []string{"shell"},
		AllowRegisteredTools: true,
	}, hasTools{"shell": true})

	ok, reason := g.IsAllowed(decision("shell"), "g1")
	assert.False(t, ok)
	assert.Contains(t, reason, "denied")
}

func TestLoadPolicy_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
allowed_actions:
  - pursue_goal
  - notify
denied_actions:
  - shell
allow_registered_tools: false
`), 0644))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	g := NewPolicyGate(policy, hasTools{"shell": true, "fetch": true})

	ok, _ := g.IsAllowed(decision("notify"), "")
	assert.True(t, ok)
	ok, _ = g.IsAllowed(decision("shell"), "")
	assert.False(t, ok)
	ok, _ = g.IsAllowed(decision("fetch"), "")
	assert.False(t, ok)
}
