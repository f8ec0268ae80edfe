package cognition

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

func TestUpdateFromObservation_MergesSanitizedFacts(t *testing.T) {
	w := NewWorldModel(0)
	w.UpdateFromObservation(&Observation{
		Timestamp: 100,
		State: map[string]any{
			"status":    "ok",
			"__proto__": "polluted",
			"nested":    map[string]any{"constructor": "bad", "depth": 1.0},
			"longText":  strings.Repeat("x", valueobject.MaxFactStringLen+50),
		},
	})

	facts, _ := w.Snapshot()
	assert.Equal(t, "ok", facts["status"])
	assert.NotContains(t, facts, "__proto__")
	nested, ok := facts["nested"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, nested, "constructor")
	assert.Equal(t, 1.0, nested["depth"])
	assert.Len(t, facts["longText"], valueobject.MaxFactStringLen)
}

func TestUpdateFromObservation_DecaysUncertainty(t *testing.T) {
	w := NewWorldModel(0)
	w.state.Uncertainty = 1.0

	w.UpdateFromObservation(&Observation{Timestamp: 1, State: map[string]any{"a": 1}})
	assert.InDelta(t, 0.9, w.Uncertainty(), 1e-9)
	w.UpdateFromObservation(&Observation{Timestamp: 2, State: map[string]any{"a": 2}})
	assert.InDelta(t, 0.81, w.Uncertainty(), 1e-9)
}

func TestSanitizeFacts_DepthBound(t *testing.T) {
	deep := map[string]any{}
	cursor := deep
	for i := 0; i < valueobject.MaxFactDepth+5; i++ {
		next := map[string]any{}
		cursor["child"] = next
		cursor = next
	}
	cursor["leaf"] = "value"

	out := sanitizeFacts(deep, 0)
	depth := 0
	for m := out; m != nil; {
		child, ok := m["child"].(map[string]any)
		if !ok {
			break
		}
		depth++
		m = child
	}
	assert.LessOrEqual(t, depth, valueobject.MaxFactDepth)
}

type stubPredictor struct {
	actionType string
	prediction Prediction
}

func (p stubPredictor) Matches(a valueobject.CandidateAction) bool { return a.Type == p.actionType }
func (p stubPredictor) Predict(valueobject.CandidateAction, *valueobject.WorldState) Prediction {
	return p.prediction
}

func TestSimulate_DispatchesToFirstMatchingPredictor(t *testing.T) {
	w := NewWorldModel(0,
		stubPredictor{actionType: "restart", prediction: Prediction{Score: 0.9, Uncertainty: 0.1}},
		stubPredictor{actionType: "restart", prediction: Prediction{Score: 0.1, Uncertainty: 0.9}},
	)

	pred := w.Simulate(valueobject.CandidateAction{Type: "restart"})
	assert.InDelta(t, 0.9, pred.Score, 1e-9)
	assert.InDelta(t, 0.1, pred.Uncertainty, 1e-9)
}

func TestSimulate_NoPredictorRaisesUncertainty(t *testing.T) {
	w := NewWorldModel(0)
	pred := w.Simulate(valueobject.CandidateAction{Type: "unknown"})
	assert.InDelta(t, noPredictorUncertainty, pred.Uncertainty, 1e-9)

	w.state.Uncertainty = 0.95
	pred = w.Simulate(valueobject.CandidateAction{Type: "unknown"})
	assert.InDelta(t, 1.0, pred.Uncertainty, 1e-9)
}

func TestSimulate_ClampsPredictorUncertainty(t *testing.T) {
	w := NewWorldModel(0,
		stubPredictor{actionType: "wild", prediction: Prediction{Score: 0.5, Uncertainty: 7}},
	)
	pred := w.Simulate(valueobject.CandidateAction{Type: "wild"})
	assert.InDelta(t, 1.0, pred.Uncertainty, 1e-9)
}

func TestUpdateFromResult_NoOutputLeavesStateUntouched(t *testing.T) {
	w := NewWorldModel(0)
	w.UpdateFromObservation(&Observation{Timestamp: 1, State: map[string]any{"a": 1}})
	before, _ := w.Snapshot()

	w.UpdateFromResult(2, &valueobject.ActionResult{Success: true})
	after, _ := w.Snapshot()
	assert.Equal(t, before, after)

	w.UpdateFromResult(3, &valueobject.ActionResult{Success: true, Output: map[string]any{"b": 2}})
	facts, _ := w.Snapshot()
	assert.Equal(t, 2, facts["b"])
}
