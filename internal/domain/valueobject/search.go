package valueobject

// ScoreWeights are the coefficients of the hybrid memory-search score
//: score = Similarity*WS + TimeDecay*WD + GoalRelevance*WR.
type ScoreWeights struct {
	Similarity    float64
	TimeDecay     float64
	GoalRelevance float64
}

// DefaultScoreWeights returns the standard weighting (0.6, 0.2, 0.2).
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Similarity: 0.6, TimeDecay: 0.2, GoalRelevance: 0.2}
}

// DefaultHalfLifeMS is the default time-decay half-life: 7 days in milliseconds.
const DefaultHalfLifeMS int64 = 7 * 24 * 60 * 60 * 1000

// SearchResult is one scored memory hit.
type SearchResult struct {
	Memory        *MemoryItem
	Similarity    float64
	TimeDecay     float64
	GoalRelevance float64
	Score         float64
}

// Combine computes the weighted aggregate score for a result.
func (w ScoreWeights) Combine(similarity, timeDecay, goalRelevance float64) float64 {
	return w.Similarity*similarity + w.TimeDecay*timeDecay + w.GoalRelevance*goalRelevance
}
