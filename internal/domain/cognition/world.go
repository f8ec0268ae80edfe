package cognition

import (
	"sync"

	"github.com/ngoclaw/agentcore/internal/domain/safety"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// Prediction is a predictor's estimate of an action's outcome.
type Prediction struct {
	Score       float64
	Uncertainty float64
}

// Predictor estimates the outcome of a candidate action. Matches decides
// whether this predictor knows anything about the action at all.
type Predictor interface {
	Matches(action valueobject.CandidateAction) bool
	Predict(action valueobject.CandidateAction, state *valueobject.WorldState) Prediction
}

// noPredictorUncertainty is added when no predictor matches a simulated
// action.
const noPredictorUncertainty = 0.2

// WorldModel holds the agent's belief state and simulates candidate actions.
// Safe for concurrent readers within a run.
type WorldModel struct {
	mu         sync.RWMutex
	state      *valueobject.WorldState
	predictors []Predictor
}

// NewWorldModel returns a world model with an empty belief state.
func NewWorldModel(timestamp int64, predictors ...Predictor) *WorldModel {
	return &WorldModel{
		state:      valueobject.NewWorldState(timestamp),
		predictors: predictors,
	}
}

// UpdateFromObservation merges the observation's state into the belief
// facts, after sanitizing keys and values, and decays uncertainty.
func (w *WorldModel) UpdateFromObservation(obs *Observation) {
	if obs == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Merge(obs.Timestamp, sanitizeFacts(obs.State, 0))
	w.state.DecayUncertainty()
}

// UpdateFromResult folds an action result's output back into the facts.
// A result with no output leaves the belief state untouched.
func (w *WorldModel) UpdateFromResult(timestamp int64, result *valueobject.ActionResult) {
	if result == nil || len(result.Output) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Merge(timestamp, sanitizeFacts(result.Output, 0))
}

// Simulate dispatches the action to the first matching predictor. Without a
// matching predictor the model admits ignorance: neutral score, raised
// uncertainty.
func (w *WorldModel) Simulate(action valueobject.CandidateAction) Prediction {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, p := range w.predictors {
		if !p.Matches(action) {
			continue
		}
		pred := p.Predict(action, w.state)
		if pred.Uncertainty < 0 {
			pred.Uncertainty = 0
		}
		if pred.Uncertainty > 1 {
			pred.Uncertainty = 1
		}
		return pred
	}

	uncertainty := w.state.Uncertainty + noPredictorUncertainty
	if uncertainty > 1 {
		uncertainty = 1
	}
	return Prediction{Score: 0.5, Uncertainty: uncertainty}
}

// Snapshot returns a copy of the current facts and uncertainty.
func (w *WorldModel) Snapshot() (map[string]any, float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	facts := make(map[string]any, len(w.state.Facts))
	for k, v := range w.state.Facts {
		facts[k] = v
	}
	return facts, w.state.Uncertainty
}

// Uncertainty returns the current belief uncertainty.
func (w *WorldModel) Uncertainty() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state.Uncertainty
}

// sanitizeFacts deep-copies facts while dropping unsafe keys, truncating
// over-long keys and string values, and cutting off past the depth bound.
func sanitizeFacts(facts map[string]any, depth int) map[string]any {
	if depth >= valueobject.MaxFactDepth {
		return nil
	}
	out := make(map[string]any, len(facts))
	for key, value := range facts {
		if safety.IsUnsafeKey(key) {
			continue
		}
		if len(key) > valueobject.MaxFactKeyLen {
			key = key[:valueobject.MaxFactKeyLen]
		}
		out[key] = sanitizeFactValue(value, depth+1)
	}
	return out
}

func sanitizeFactValue(value any, depth int) any {
	switch v := value.(type) {
	case string:
		if len(v) > valueobject.MaxFactStringLen {
			return v[:valueobject.MaxFactStringLen]
		}
		return v
	case map[string]any:
		if depth >= valueobject.MaxFactDepth {
			return nil
		}
		return sanitizeFacts(v, depth)
	case []any:
		if depth >= valueobject.MaxFactDepth {
			return nil
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeFactValue(item, depth+1)
		}
		return out
	default:
		return v
	}
}
