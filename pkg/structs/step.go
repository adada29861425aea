package structs

import (
	"fmt"
)

// StepResult is what a strategy reports back after working over one batch.
type StepResult struct {
	// Processed is how many of the batch's items were consumed. Strategies
	// may stop early (eg. context cancelled) and report less than the batch.
	Processed int64 `json:"processed"`

	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
	Skipped int64 `json:"skipped"`
	Deleted int64 `json:"deleted"`

	Logs []string `json:"logs,omitempty"`

	// Fatal, if set, fails the whole job
	Fatal error `json:"-"`
}

func (r *StepResult) Logf(format string, args ...interface{}) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

type Outcome string

const (
	// trigger fired for a job that isn't runnable (paused, done, missing)
	OutcomeIgnored Outcome = "ignored"
	// someone else holds the lock, we re-armed with backoff
	OutcomeLockHeld Outcome = "lock_held"
	// our lock expired under us and another step took over
	OutcomeLockLost  Outcome = "lock_lost"
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// a control command landed while the step ran and its status was kept
	OutcomeInterrupted Outcome = "interrupted"
)

type StepReport struct {
	JobID   string  `json:"job_id"`
	Outcome Outcome `json:"outcome"`
	Delay   int64   `json:"delay_ms,omitempty"`
	Job     *Job    `json:"job,omitempty"`
}
