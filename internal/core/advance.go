package core

import (
	"time"

	"github.com/voidshard/galleryimport/pkg/structs"
)

// Transition is what the engine should do after a step's state is saved.
type Transition struct {
	Outcome structs.Outcome
	// Rearm, if set, means schedule another trigger after Delay
	Rearm bool
	Delay time.Duration
}

// Advance computes the job state following a step. It is pure: job is not
// modified and nothing is read or written elsewhere.
//
// total is the payload's length (negative if it couldn't be read), attempted
// the number of items handed to the strategy and res what it reported back.
func Advance(job *structs.Job, total int64, attempted int, res *structs.StepResult, elapsed time.Duration, opts *Options) (*structs.Job, *Transition) {
	next := job.Copy()
	next.Lock = 0
	next.Steps++

	if next.Total == nil && total >= 0 {
		// the total is set once, the first time we see the payload
		t := total
		next.Total = &t
	}

	if res == nil {
		res = &structs.StepResult{}
	}
	processed := res.Processed
	if processed < 0 {
		processed = 0
	} else if processed > int64(attempted) {
		processed = int64(attempted)
	}
	next.Processed += processed
	next.Created += res.Created
	next.Updated += res.Updated
	next.Skipped += res.Skipped
	next.Deleted += res.Deleted

	if res.Fatal != nil {
		next.Status = structs.FAILED
		next.Done = true
		next.Error = res.Fatal.Error()
		return next, &Transition{Outcome: structs.OutcomeFailed}
	}

	if attempted == 0 || (next.Total != nil && next.Processed >= *next.Total) {
		next.Status = structs.COMPLETE
		next.Done = true
		return next, &Transition{Outcome: structs.OutcomeCompleted}
	}

	next.Status = structs.RUNNING
	next.BatchSize = adaptBatchSize(next.BatchSize, elapsed, opts)

	delay := opts.FastDelay
	if elapsed >= opts.StepBudget {
		delay = opts.SlowDelay
	}
	return next, &Transition{Outcome: structs.OutcomeAdvanced, Rearm: true, Delay: delay}
}

// adaptBatchSize halves the batch after a slow step and doubles it back
// (up to the configured size) after a quick one.
func adaptBatchSize(current int, elapsed time.Duration, opts *Options) int {
	if current <= 0 || current > opts.BatchSize {
		current = opts.BatchSize
	}
	if !opts.Adaptive {
		return opts.BatchSize
	}
	switch {
	case elapsed >= opts.StepBudget && current > 1:
		return current / 2
	case elapsed < opts.StepBudget/4 && current < opts.BatchSize:
		current *= 2
		if current > opts.BatchSize {
			current = opts.BatchSize
		}
	}
	return current
}
