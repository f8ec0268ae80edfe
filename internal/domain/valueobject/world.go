package valueobject

const (
	// MaxFactDepth bounds nested fact values.
	MaxFactDepth = 10
	// MaxFactKeyLen bounds a single fact key's length.
	MaxFactKeyLen = 256
	// MaxFactStringLen truncates string fact values.
	MaxFactStringLen = 10000
	// MaxFactCount bounds the number of facts kept; oldest is FIFO-evicted.
	MaxFactCount = 1000
)

// WorldState is the agent's belief about its environment.
// factOrder tracks FIFO insertion order for the MaxFactCount eviction policy.
type WorldState struct {
	Timestamp   int64
	Facts       map[string]any
	Uncertainty float64
	factOrder   []string
}

// NewWorldState returns an empty, valid WorldState.
func NewWorldState(timestamp int64) *WorldState {
	return &WorldState{
		Timestamp:   timestamp,
		Facts:       make(map[string]any),
		Uncertainty: 0,
	}
}

// setFact inserts or overwrites a fact, evicting the oldest fact on overflow.
// Callers are expected to have already sanitized the key/value (unsafe-key
// rejection, depth bound, length truncation) via the safety package.
func (w *WorldState) setFact(key string, value any) {
	if _, exists := w.Facts[key]; !exists {
		w.factOrder = append(w.factOrder, key)
	}
	w.Facts[key] = value
	for len(w.factOrder) > MaxFactCount {
		oldest := w.factOrder[0]
		w.factOrder = w.factOrder[1:]
		delete(w.Facts, oldest)
	}
}

// Merge writes each sanitized fact into the world state via setFact, applying
// the FIFO eviction policy, and returns the updated timestamp.
func (w *WorldState) Merge(timestamp int64, facts map[string]any) {
	w.Timestamp = timestamp
	for k, v := range facts {
		w.setFact(k, v)
	}
}

// DecayUncertainty applies the ×0.9-per-update decay, clamped to [0,1].
func (w *WorldState) DecayUncertainty() {
	w.Uncertainty *= 0.9
	w.clampUncertainty()
}

// RaiseUncertainty increases uncertainty by delta, clamped to [0,1].
func (w *WorldState) RaiseUncertainty(delta float64) {
	w.Uncertainty += delta
	w.clampUncertainty()
}

func (w *WorldState) clampUncertainty() {
	if w.Uncertainty < 0 {
		w.Uncertainty = 0
	}
	if w.Uncertainty > 1 {
		w.Uncertainty = 1
	}
}

// Snapshot returns a shallow copy safe to hand to a concurrent reader.
func (w *WorldState) Snapshot() WorldState {
	facts := make(map[string]any, len(w.Facts))
	for k, v := range w.Facts {
		facts[k] = v
	}
	return WorldState{Timestamp: w.Timestamp, Facts: facts, Uncertainty: w.Uncertainty}
}
