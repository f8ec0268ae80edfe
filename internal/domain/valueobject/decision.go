package valueobject

import apperrors "github.com/ngoclaw/agentcore/pkg/errors"

// Decision is the LLM's chosen action, after schema validation.
type Decision struct {
	ActionType    string
	ActionPayload map[string]any
	Confidence    *float64
	Reasoning     string
}

// Validate enforces the Decision shape invariants.
func (d *Decision) Validate() error {
	if d.ActionType == "" {
		return apperrors.NewInvalidInputError("decision actionType must not be empty")
	}
	if d.Confidence != nil && (*d.Confidence < 0 || *d.Confidence > 1) {
		return apperrors.NewInvalidInputError("decision confidence must be within [0,1]")
	}
	return nil
}
