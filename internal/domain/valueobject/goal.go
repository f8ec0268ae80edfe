package valueobject

// Horizon distinguishes short-lived from long-lived goals.
type Horizon string

const (
	HorizonShort Horizon = "short"
	HorizonLong  Horizon = "long"
)

// GoalStatus is the lifecycle state of a Goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"
	GoalSuspended GoalStatus = "suspended"
)

// CandidateAction is one action the goal owner proposes the cycle consider
// instead of the synthesized "pursue_goal" action.
type CandidateAction struct {
	Type    string
	Payload map[string]any
}

// Goal is mutated only through the goal stack.
type Goal struct {
	ID                string
	Title             string
	Description       string
	Priority          float64
	Horizon           Horizon
	Status            GoalStatus
	CreatedAt         int64
	UpdatedAt         int64
	CandidateActions []CandidateAction
	InsertionSeq     int64 // tie-break for resolveNextGoal; set by the goal stack
}
