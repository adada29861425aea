package core

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/voidshard/galleryimport/pkg/structs"
)

const (
	defBatchSize      = 5
	defStepBudget     = 15 * time.Second
	defLockTTL        = 45 * time.Second
	defLockMargin     = 10 * time.Second
	defLockBackoff    = 10 * time.Second
	defEnqueueDelay   = 1 * time.Second
	defFastDelay      = 1 * time.Second
	defSlowDelay      = 5 * time.Second
	defRetentionDays  = 7
	defRegistryMax    = 500
	defTidyFrequency  = 2 * time.Minute
	defTidyStaleAfter = 2 * time.Minute
	defNotifyTTL      = time.Hour
	defContentionWarn = 10

	defDeleteBatchSize = 15

	importCompleteMessage = "Gallery import complete (job %s): %d created, %d updated, %d skipped."
)

// Options tune one Engine.
type Options struct {
	// Kind of job this engine runs, also its queue & key namespace
	Kind string

	// BatchSize is how many items a step takes, at most
	BatchSize int

	// Adaptive halves the batch size of a job whose step ran over StepBudget
	// and grows it back when steps are quick.
	Adaptive bool

	// StepBudget is the soft time limit for a step; steps over it are
	// followed by SlowDelay rather than FastDelay
	StepBudget time.Duration

	// LockTTL is how long a step's lock is honoured before others may take it
	LockTTL time.Duration

	// StepTimeout cancels the strategy's context. It is kept below LockTTL
	// so a step has finished (and saved) before its lock can be taken over.
	StepTimeout time.Duration

	// LockBackoff is how long a trigger that found the lock held waits
	LockBackoff time.Duration

	// EnqueueDelay is the wait before the first step of a new (or resumed) job
	EnqueueDelay time.Duration

	FastDelay time.Duration
	SlowDelay time.Duration

	// Controllable allows pause / resume / stop
	Controllable bool

	// CompletionMessage, if set, is a format string (job id, created,
	// updated, skipped) delivered to the owner when a job completes
	CompletionMessage string
	NotifyTTL         time.Duration

	// PurgeOnComplete deletes a job's record & registry entry as soon as it
	// completes
	PurgeOnComplete bool

	// LockContentionWarn is how many lock denials in a row (across all jobs)
	// before we log at warn level
	LockContentionWarn int64

	RetentionDays int
	RegistryMax   int

	// Tidy starts a routine that re-arms jobs whose triggers appear to
	// have been lost
	Tidy           bool
	TidyFrequency  time.Duration
	TidyStaleAfter time.Duration

	Logger *zerolog.Logger
}

// OptionsImportDefault are the options for the gallery import engine.
func OptionsImportDefault() *Options {
	return &Options{
		Kind:              structs.KindImport,
		BatchSize:         defBatchSize,
		Adaptive:          true,
		Controllable:      true,
		CompletionMessage: importCompleteMessage,
	}
}

// OptionsDeleteDefault are the options for the background deletion engine.
func OptionsDeleteDefault() *Options {
	return &Options{
		Kind:            structs.KindDelete,
		BatchSize:       defDeleteBatchSize,
		PurgeOnComplete: true,
	}
}

func (o *Options) setDefaults() {
	if o.Kind == "" {
		o.Kind = structs.KindImport
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defBatchSize
	}
	if o.StepBudget <= 0 {
		o.StepBudget = defStepBudget
	}
	if o.LockTTL <= 0 {
		o.LockTTL = defLockTTL
	}
	limit := o.LockTTL - defLockMargin
	if limit <= 0 {
		limit = o.LockTTL / 2
	}
	if o.StepTimeout <= 0 || o.StepTimeout > limit {
		o.StepTimeout = limit
	}
	if o.LockBackoff <= 0 {
		o.LockBackoff = defLockBackoff
	}
	if o.EnqueueDelay <= 0 {
		o.EnqueueDelay = defEnqueueDelay
	}
	if o.FastDelay <= 0 {
		o.FastDelay = defFastDelay
	}
	if o.SlowDelay <= 0 {
		o.SlowDelay = defSlowDelay
	}
	if o.NotifyTTL <= 0 {
		o.NotifyTTL = defNotifyTTL
	}
	if o.LockContentionWarn <= 0 {
		o.LockContentionWarn = defContentionWarn
	}
	if o.RetentionDays <= 0 {
		o.RetentionDays = defRetentionDays
	}
	if o.RegistryMax <= 0 {
		o.RegistryMax = defRegistryMax
	}
	if o.TidyFrequency <= 0 {
		o.TidyFrequency = defTidyFrequency
	}
	if o.TidyStaleAfter <= 0 {
		o.TidyStaleAfter = defTidyStaleAfter
	}
	if o.Logger == nil {
		l := zerolog.Nop()
		o.Logger = &l
	}
}
