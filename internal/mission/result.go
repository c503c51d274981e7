package mission

import "time"

// StepStatus is the terminal state recorded for an attempted step.
type StepStatus string

const (
	StepSucceeded StepStatus = "success"
	StepFailed    StepStatus = "failed"
	// StepSkipped marks a step whose condition evaluated to false.
	StepSkipped StepStatus = "skipped"
)

// Status is the overall outcome of a mission run.
type Status string

const (
	StatusCompleted             Status = "completed"
	StatusCompletedWithFailures Status = "completed_with_failures"
	StatusFailed                Status = "failed"
	StatusCancelled             Status = "cancelled"
)

// StepResult is the outcome of one attempted step. It is never modified
// after the executor records it.
type StepResult struct {
	StepID     string        `json:"step_id" yaml:"step_id"`
	Type       StepType      `json:"step_type" yaml:"step_type"`
	Status     StepStatus    `json:"status" yaml:"status"`
	Success    bool          `json:"success" yaml:"success"`
	Output     any           `json:"output,omitempty" yaml:"output,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Err        error         `json:"-" yaml:"-"`
	Tolerated  bool          `json:"tolerated,omitempty" yaml:"tolerated,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// ExecutionResult aggregates a mission run. StepResults holds one entry per
// attempted step in the order the steps finished; steps that never started
// because the mission aborted are absent.
type ExecutionResult struct {
	MissionID   string        `json:"mission_id" yaml:"mission_id"`
	MissionName string        `json:"mission_name" yaml:"mission_name"`
	Status      Status        `json:"status" yaml:"status"`
	StepResults []StepResult  `json:"step_results" yaml:"step_results"`
	FailedStep  string        `json:"failed_step,omitempty" yaml:"failed_step,omitempty"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// Step returns the recorded result for the given step id.
func (r *ExecutionResult) Step(id string) (StepResult, bool) {
	for _, sr := range r.StepResults {
		if sr.StepID == id {
			return sr, true
		}
	}
	return StepResult{}, false
}

// Failures returns every failed step result, tolerated or not.
func (r *ExecutionResult) Failures() []StepResult {
	var failed []StepResult
	for _, sr := range r.StepResults {
		if sr.Status == StepFailed {
			failed = append(failed, sr)
		}
	}
	return failed
}

// Succeeded reports whether the mission finished without a fatal failure.
func (r *ExecutionResult) Succeeded() bool {
	return r.Status == StatusCompleted || r.Status == StatusCompletedWithFailures
}
