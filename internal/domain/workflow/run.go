package workflow

import "time"

// State is the lifecycle of a run
type State string

// Run states
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Step outcomes
const (
	OutcomeDone    = "done"
	OutcomeTimeout = "timeout" // readiness wait expired; counts as done
	OutcomePassed  = "passed"
	OutcomeFailed  = "failed"
	OutcomeError   = "error"
)

// StepResult is the outcome of one executed step
type StepResult struct {
	Index    int           `json:"index"`
	Kind     string        `json:"kind"`
	Step     string        `json:"step"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// Run is one execution of a workflow
type Run struct {
	ID         string       `json:"id"`
	Workflow   string       `json:"workflow"`
	ContextID  string       `json:"contextId"`
	State      State        `json:"state"`
	Total      int          `json:"totalSteps"`
	Steps      []StepResult `json:"steps"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt,omitempty"`
}

// Finished reports whether the run has stopped
func (r Run) Finished() bool {
	return r.State == StateCompleted || r.State == StateAborted
}
