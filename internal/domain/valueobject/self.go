package valueobject

// Self-model outcome adjustment steps.
const (
	ReliabilitySuccessStep = 0.03
	ReliabilityFailureStep = -0.08
	ConfidenceSuccessStep  = 0.02
	ConfidenceFailureStep  = -0.10
)

// SelfModel is the agent's belief about its own capability.
type SelfModel struct {
	Capabilities map[string]bool
	Tools        map[string]bool
	Reliability  float64
	Confidence   float64
	Successes    int
	Failures     int
}

// NewSelfModel returns a SelfModel with neutral starting reliability/confidence.
func NewSelfModel() *SelfModel {
	return &SelfModel{
		Capabilities: make(map[string]bool),
		Tools:        make(map[string]bool),
		Reliability:  0.5,
		Confidence:   0.5,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RecordOutcome applies the fixed-step monotonic adjustment for a run outcome.
func (s *SelfModel) RecordOutcome(success bool) {
	if success {
		s.Successes++
		s.Reliability = clamp01(s.Reliability + ReliabilitySuccessStep)
		s.Confidence = clamp01(s.Confidence + ConfidenceSuccessStep)
		return
	}
	s.Failures++
	s.Reliability = clamp01(s.Reliability + ReliabilityFailureStep)
	s.Confidence = clamp01(s.Confidence + ConfidenceFailureStep)
}

// Snapshot returns a value copy safe to hand to a concurrent reader.
func (s *SelfModel) Snapshot() SelfModel {
	caps := make(map[string]bool, len(s.Capabilities))
	for k, v := range s.Capabilities {
		caps[k] = v
	}
	tools := make(map[string]bool, len(s.Tools))
	for k, v := range s.Tools {
		tools[k] = v
	}
	return SelfModel{
		Capabilities: caps, Tools: tools,
		Reliability: s.Reliability, Confidence: s.Confidence,
		Successes: s.Successes, Failures: s.Failures,
	}
}
