package application

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// Policy declares which action types the gate authorizes. Loaded from YAML
// so operators can tighten it without a rebuild.
type Policy struct {
	// AllowedActions are always permitted.
	AllowedActions []string `yaml:"allowed_actions"`
	// DeniedActions are always rejected, even if registered as tools.
	DeniedActions []string `yaml:"denied_actions"`
	// AllowRegisteredTools permits any action whose type names a registered
	// tool.
	AllowRegisteredTools bool `yaml:"allow_registered_tools"`
}

// LoadPolicy reads a Policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultPolicy permits goal pursuit and registered tools.
func DefaultPolicy() *Policy {
	return &Policy{
		AllowedActions:       []string{"pursue_goal"},
		AllowRegisteredTools: true,
	}
}

// ToolChecker reports whether an action type names an executable tool.
type ToolChecker interface {
	Has(name string) bool
}

// PolicyGate authorizes decisions against a Policy before the environment
// acts on them.
type PolicyGate struct {
	policy *Policy
	tools  ToolChecker
}

// NewPolicyGate builds a gate; a nil policy uses DefaultPolicy.
func NewPolicyGate(policy *Policy, tools ToolChecker) *PolicyGate {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &PolicyGate{policy: policy, tools: tools}
}

// IsAllowed implements the cycle's PermissionGate capability.
func (g *PolicyGate) IsAllowed(decision *valueobject.Decision, _ string) (bool, string) {
	actionType := decision.ActionType
	for _, denied := range g.policy.DeniedActions {
		if denied == actionType {
			return false, "action type denied by policy: " + actionType
		}
	}
	for _, allowed := range g.policy.AllowedActions {
		if allowed == actionType {
			return true, ""
		}
	}
	if g.policy.AllowRegisteredTools && g.tools != nil && g.tools.Has(actionType) {
		return true, ""
	}
	return false, "action type not in policy: " + actionType
}
