package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/voidshard/galleryimport/internal/utils"
	"github.com/voidshard/galleryimport/pkg/database"
	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/joblog"
	"github.com/voidshard/galleryimport/pkg/queue"
	"github.com/voidshard/galleryimport/pkg/step"
	"github.com/voidshard/galleryimport/pkg/structs"
)

var timeNow = time.Now

// Engine runs jobs of one kind as a chain of short, self re-arming steps.
//
// Every step is guarded by an advisory lock on the job record, so any number
// of workers may receive triggers for the same job; at most one makes
// progress at a time.
type Engine struct {
	db       database.Database
	qu       queue.Queue
	strategy step.Strategy
	loader   step.Loader
	logs     joblog.Sink
	opts     *Options
	log      zerolog.Logger

	contention atomic.Int64
	// denied counts lock denials since the last lock we took
	denied atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(db database.Database, qu queue.Queue, strategy step.Strategy, loader step.Loader, logs joblog.Sink, opts *Options) (*Engine, error) {
	if opts == nil {
		opts = OptionsImportDefault()
	}
	opts.setDefaults()
	if logs == nil {
		logs = joblog.Discard{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	me := &Engine{
		db:       db,
		qu:       qu,
		strategy: strategy,
		loader:   loader,
		logs:     logs,
		opts:     opts,
		log:      opts.Logger.With().Str("kind", opts.Kind).Logger(),
		cancel:   cancel,
	}

	err := qu.Register(opts.Kind, me.HandleStep)
	if err != nil {
		cancel()
		return nil, err
	}

	if opts.Tidy {
		me.wg.Add(1)
		go func() {
			defer me.wg.Done()
			me.tidyForever(ctx)
		}()
	}

	return me, nil
}

// Kind returns the kind of job this engine runs.
func (e *Engine) Kind() string {
	return e.opts.Kind
}

// LockContention returns how many triggers found their job locked.
func (e *Engine) LockContention() int64 {
	return e.contention.Load()
}

func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}

// Enqueue creates a job and arms its first trigger.
func (e *Engine) Enqueue(ctx context.Context, req *structs.EnqueueRequest) (*structs.Job, error) {
	if req == nil || req.Source.Empty() {
		return nil, ie.ErrNoPayload
	}
	if len(req.Source.Items) > 0 && !json.Valid(req.Source.Items) {
		return nil, fmt.Errorf("%w: inline items are not valid json", ie.ErrInvalidArg)
	}

	now := timeNow()
	job := &structs.Job{
		ID:        utils.NewRandomID(),
		Kind:      e.opts.Kind,
		Status:    structs.QUEUED,
		Source:    req.Source,
		Options:   req.Options,
		Target:    req.Target,
		Owner:     req.Owner,
		BatchSize: e.opts.BatchSize,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}
	job.LogFile = e.logs.Path(job.ID)

	err := e.db.InsertJob(ctx, job)
	if err != nil {
		return nil, err
	}

	err = e.db.Register(ctx, &structs.RegistryEntry{
		JobID:     job.ID,
		Kind:      job.Kind,
		Status:    job.Status,
		Owner:     job.Owner,
		Source:    job.Source.Path,
		CreatedAt: job.CreatedAt,
		LastSeen:  job.CreatedAt,
	}, e.opts.RegistryMax)
	if err != nil {
		e.log.Warn().Err(err).Str("job", job.ID).Msg("registering job")
	}

	e.logs.Append(job.ID, fmt.Sprintf("Job %s queued.", job.ID))
	e.arm(job.ID, now.Add(e.opts.EnqueueDelay))
	return job, nil
}

// HandleStep is the trigger handler. Errors are logged, never returned: the
// queue retrying a step would only duplicate the engine's own re-arming.
func (e *Engine) HandleStep(ctx context.Context, m *queue.Meta) error {
	if late := m.Late(timeNow()); late > e.opts.LockBackoff {
		e.log.Debug().Str("job", m.JobID).Dur("late", late).Msg("trigger fired late")
	}
	_, err := e.Step(ctx, m.JobID)
	if err != nil {
		e.log.Error().Err(err).Str("job", m.JobID).Msg("step")
	}
	return nil
}

// Step runs at most one batch of the given job. It's what a trigger calls.
//
// Duplicate, late or stray triggers are harmless: a job that isn't runnable
// is left alone & a job locked by another step is re-armed with backoff.
func (e *Engine) Step(ctx context.Context, id string) (*structs.StepReport, error) {
	log := e.log.With().Str("job", id).Logger()
	report := &structs.StepReport{JobID: id, Outcome: structs.OutcomeIgnored}

	job, err := e.db.Job(ctx, e.opts.Kind, id)
	if errors.Is(err, ie.ErrNotFound) {
		log.Debug().Msg("trigger for unknown job")
		return report, nil
	} else if err != nil {
		return report, err
	}
	if !job.Eligible() {
		report.Job = job
		return report, nil
	}

	job, token, err := e.lock(ctx, id)
	if errors.Is(err, ie.ErrLockHeld) {
		e.contention.Add(1)
		if n := e.denied.Add(1); n%e.opts.LockContentionWarn == 0 {
			log.Warn().Int64("denied", n).Msg("repeated lock contention")
		}
		now := timeNow()
		e.arm(id, now.Add(e.opts.LockBackoff))
		e.touch(ctx, id, job.Status, now)
		report.Outcome = structs.OutcomeLockHeld
		report.Delay = e.opts.LockBackoff.Milliseconds()
		report.Job = job
		return report, nil
	} else if errors.Is(err, ie.ErrInvalidState) || errors.Is(err, ie.ErrNotFound) {
		// changed between our read & the lock attempt
		report.Job = job
		return report, nil
	} else if err != nil {
		return report, err
	}
	e.denied.Store(0)
	e.touch(ctx, id, job.Status, timeNow())

	started := timeNow()
	total, attempted, res := e.runBatch(ctx, job)
	elapsed := timeNow().Sub(started)

	next, tr := Advance(job, total, attempted, res, elapsed, e.opts)

	saved, err := e.save(ctx, id, token, next)
	if errors.Is(err, ie.ErrLockLost) {
		log.Warn().Dur("elapsed", elapsed).Msg("lock expired during step, results discarded")
		e.shrink(ctx, id, next.BatchSize)
		report.Outcome = structs.OutcomeLockLost
		return report, nil
	} else if err != nil {
		// leave the lock to expire; the tidy routine or a later trigger picks it up
		return report, err
	}

	e.logStep(saved, res)
	e.touch(ctx, id, saved.Status, timeNow())

	report.Job = saved
	report.Outcome = tr.Outcome
	if saved.Status != next.Status {
		// a control command landed while we were running; it wins
		report.Outcome = structs.OutcomeInterrupted
		return report, nil
	}

	if tr.Rearm {
		report.Delay = tr.Delay.Milliseconds()
		e.arm(id, timeNow().Add(tr.Delay))
	}
	if saved.Status == structs.COMPLETE {
		e.notify(ctx, saved)
		if e.opts.PurgeOnComplete {
			e.purge(ctx, saved)
		}
	}

	log.Debug().
		Str("outcome", string(report.Outcome)).
		Int64("processed", saved.Processed).
		Int64("remaining", saved.Remaining()).
		Int("attempted", attempted).
		Dur("elapsed", elapsed).
		Msg("step")
	return report, nil
}

// runBatch loads the payload & hands the job's next window to the strategy.
func (e *Engine) runBatch(ctx context.Context, job *structs.Job) (total int64, attempted int, res *structs.StepResult) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
	defer cancel()

	items, err := e.loader.Load(ctx, job.Source)
	if err != nil {
		return -1, 0, &structs.StepResult{Fatal: err}
	}
	total = int64(len(items))
	if job.Total != nil && *job.Total < total {
		// the payload grew since we first counted it, keep to what we saw
		total = *job.Total
		items = items[:total]
	}

	size := job.BatchSize
	if size <= 0 || size > e.opts.BatchSize {
		size = e.opts.BatchSize
	}
	batch := step.Window(items, job.Processed, size)
	if len(batch) == 0 {
		return total, 0, &structs.StepResult{}
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("job", job.ID).Interface("panic", r).Msg("strategy panicked")
			res = &structs.StepResult{Fatal: fmt.Errorf("step failed: %v", r)}
		}
	}()

	res = e.strategy.Process(ctx, job, batch)
	return total, len(batch), res
}

// lock takes the job's advisory lock, moving it to running. The returned
// token must be presented to save.
func (e *Engine) lock(ctx context.Context, id string) (*structs.Job, int64, error) {
	var token int64
	now := timeNow()
	job, err := e.db.UpdateJob(ctx, e.opts.Kind, id, func(j *structs.Job) error {
		if !j.Eligible() {
			return fmt.Errorf("job %s is %s: %w", j.ID, j.Status, ie.ErrInvalidState)
		}
		if j.Lock != 0 && now.UnixNano()-j.Lock < e.opts.LockTTL.Nanoseconds() {
			return ie.ErrLockHeld
		}
		token = now.UnixNano()
		if token <= j.Lock {
			token = j.Lock + 1
		}
		j.Lock = token
		j.Status = structs.RUNNING
		j.UpdatedAt = now.Unix()
		return nil
	})
	return job, token, err
}

// save writes a step's results, if we still hold the lock, and releases it.
func (e *Engine) save(ctx context.Context, id string, token int64, next *structs.Job) (*structs.Job, error) {
	now := timeNow()
	return e.db.UpdateJob(ctx, e.opts.Kind, id, func(j *structs.Job) error {
		if j.Lock != token {
			return ie.ErrLockLost
		}

		status := structs.MergeStatus(j.Status, next.Status)

		j.Processed = next.Processed
		j.Total = next.Total
		j.Created = next.Created
		j.Updated = next.Updated
		j.Skipped = next.Skipped
		j.Deleted = next.Deleted
		j.BatchSize = next.BatchSize
		j.Steps = next.Steps
		if status == structs.FAILED {
			j.Error = next.Error
		}
		j.Status = status
		j.Done = structs.IsFinalStatus(status)
		j.Lock = 0
		j.UpdatedAt = now.Unix()
		return nil
	})
}

// shrink lowers a job's batch size without holding its lock. It keeps a job
// whose steps always outlive their lock from overrunning forever.
func (e *Engine) shrink(ctx context.Context, id string, size int) {
	_, err := e.db.UpdateJob(ctx, e.opts.Kind, id, func(j *structs.Job) error {
		if size <= 0 || (j.BatchSize > 0 && j.BatchSize <= size) {
			return ie.ErrInvalidState
		}
		j.BatchSize = size
		return nil
	})
	if err != nil && !errors.Is(err, ie.ErrInvalidState) {
		e.log.Warn().Err(err).Str("job", id).Msg("shrinking batch size")
	}
}

func (e *Engine) logStep(job *structs.Job, res *structs.StepResult) {
	lines := []string{}
	if res != nil {
		lines = append(lines, res.Logs...)
	}
	switch job.Status {
	case structs.COMPLETE:
		lines = append(lines, fmt.Sprintf("Completed: %d created, %d updated, %d skipped.", job.Created, job.Updated, job.Skipped))
	case structs.FAILED:
		lines = append(lines, fmt.Sprintf("Failed: %s", job.Error))
	}
	e.logs.Append(job.ID, lines...)
}

func (e *Engine) notify(ctx context.Context, job *structs.Job) {
	if e.opts.CompletionMessage == "" || job.Owner == "" {
		return
	}
	_, err := e.db.Deliver(ctx, &structs.Notification{
		Owner:     job.Owner,
		JobID:     job.ID,
		Message:   fmt.Sprintf(e.opts.CompletionMessage, job.ID, job.Created, job.Updated, job.Skipped),
		CreatedAt: timeNow().Unix(),
	}, e.opts.NotifyTTL)
	if err != nil {
		e.log.Warn().Err(err).Str("job", job.ID).Msg("delivering completion notice")
	}
}

// arm schedules a trigger. A failure here is logged; the tidy routine
// re-arms jobs whose triggers went missing.
func (e *Engine) arm(id string, at time.Time) {
	_, err := e.qu.Schedule(e.opts.Kind, id, at)
	if err != nil {
		e.log.Error().Err(err).Str("job", id).Msg("scheduling trigger")
	}
}

func (e *Engine) purge(ctx context.Context, job *structs.Job) {
	err := e.db.DeleteJob(ctx, job.Kind, job.ID)
	if err != nil {
		e.log.Warn().Err(err).Str("job", job.ID).Msg("purging job")
		return
	}
	_, err = e.db.Unregister(ctx, job.ID)
	if err != nil {
		e.log.Warn().Err(err).Str("job", job.ID).Msg("purging registry entry")
	}
}

func (e *Engine) touch(ctx context.Context, id string, st structs.Status, at time.Time) {
	err := e.db.Touch(ctx, id, st, at.Unix())
	if err != nil {
		e.log.Warn().Err(err).Str("job", id).Msg("updating registry")
	}
}
