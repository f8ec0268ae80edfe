package valueobject

// StateLabel names one state of the cognitive cycle state machine
//. Each entered state is appended to a run's StateTrace.
type StateLabel string

const (
	StateObserve        StateLabel = "observe"
	StateRetrieveMemory StateLabel = "retrieve_memory"
	StateUpdateWorld    StateLabel = "update_world"
	StateUpdateSelf     StateLabel = "update_self"
	StatePlanGoals      StateLabel = "plan_goals"
	StateSimulate       StateLabel = "simulate"
	StateQueryLLM       StateLabel = "query_llm"
	StateValidateOutput StateLabel = "validate_output"
	StateAct            StateLabel = "act"
	StateStoreResults   StateLabel = "store_results"
	StateLearn          StateLabel = "learn"
	StateComplete       StateLabel = "complete"
	StateError          StateLabel = "error"
	StateIdle           StateLabel = "idle"
	StateDryRun         StateLabel = "dry_run"
)

// RunStatus is the terminal outcome of a cognitive-cycle run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunIdle      RunStatus = "idle"
	RunDryRun    RunStatus = "dry_run"
	RunError     RunStatus = "error"
)

// DryRunMode selects how far a dry run proceeds.
type DryRunMode string

const (
	DryRunWithLLM    DryRunMode = "with-llm"
	DryRunWithoutLLM DryRunMode = "without-llm"
)

// ActionResult is the outcome of environment.act, or a stub marking a
// skipped dry-run action.
type ActionResult struct {
	Success bool
	Skipped bool
	Output  map[string]any
	Error   string
}

// RunResult is what runOnce returns to its caller.
type RunResult struct {
	Status         RunStatus
	Decision       *Decision
	ActionResult   *ActionResult
	SelectedGoalID string
	StateTrace     []StateLabel
	DryRunMode     DryRunMode
	Error          string
	DurationMS     int64
}

// AppendState appends a state label to the trace in program order
//.
func (r *RunResult) AppendState(s StateLabel) {
	r.StateTrace = append(r.StateTrace, s)
}
