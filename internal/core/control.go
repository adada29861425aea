package core

import (
	"context"
	"fmt"

	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

// Control applies a pause / resume / stop command.
func (e *Engine) Control(ctx context.Context, caller *structs.Caller, req *structs.ControlRequest) (*structs.Job, error) {
	if req == nil {
		return nil, ie.ErrInvalidArg
	}
	switch req.Action {
	case structs.ActionPause:
		return e.Pause(ctx, caller, req.JobID)
	case structs.ActionResume:
		return e.Resume(ctx, caller, req.JobID)
	case structs.ActionStop:
		return e.Stop(ctx, caller, req.JobID)
	}
	return nil, fmt.Errorf("%w: unknown action %q", ie.ErrInvalidArg, req.Action)
}

// Pause stops a queued or running job from taking further steps. A step
// already in flight finishes & its results are kept.
func (e *Engine) Pause(ctx context.Context, caller *structs.Caller, id string) (*structs.Job, error) {
	job, err := e.command(ctx, caller, id, func(j *structs.Job) error {
		if !structs.CanTransition(j.Status, structs.PAUSED) {
			return fmt.Errorf("%w (job is %s)", ie.ErrCannotPause, j.Status)
		}
		j.Status = structs.PAUSED
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logs.Append(id, fmt.Sprintf("Job paused by %s.", caller.ID))
	return job, nil
}

// Resume re-queues a paused job & arms a trigger for it.
func (e *Engine) Resume(ctx context.Context, caller *structs.Caller, id string) (*structs.Job, error) {
	job, err := e.command(ctx, caller, id, func(j *structs.Job) error {
		if !structs.CanTransition(j.Status, structs.QUEUED) {
			return fmt.Errorf("%w (job is %s)", ie.ErrCannotResume, j.Status)
		}
		j.Status = structs.QUEUED
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logs.Append(id, fmt.Sprintf("Job resumed by %s.", caller.ID))
	e.arm(id, timeNow().Add(e.opts.EnqueueDelay))
	return job, nil
}

// Stop ends a job for good. Work already committed stays.
func (e *Engine) Stop(ctx context.Context, caller *structs.Caller, id string) (*structs.Job, error) {
	job, err := e.command(ctx, caller, id, func(j *structs.Job) error {
		if !structs.CanTransition(j.Status, structs.STOPPED) {
			return fmt.Errorf("%w (job is %s)", ie.ErrCannotStop, j.Status)
		}
		j.Status = structs.STOPPED
		j.Done = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logs.Append(id, fmt.Sprintf("Job stopped by %s.", caller.ID))
	return job, nil
}

// Poke runs a step right now, on behalf of the caller.
func (e *Engine) Poke(ctx context.Context, caller *structs.Caller, id string) (*structs.StepReport, error) {
	_, err := e.authorized(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return e.Step(ctx, id)
}

// Status reports a job's progress.
func (e *Engine) Status(ctx context.Context, caller *structs.Caller, id string) (*structs.StatusResponse, error) {
	job, err := e.authorized(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return &structs.StatusResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Processed: job.Processed,
		Total:     job.Total,
		Created:   job.Created,
		Updated:   job.Updated,
		Skipped:   job.Skipped,
		Deleted:   job.Deleted,
		Error:     job.Error,
		LogURL:    e.logs.URL(job.ID),
		Done:      job.Done,
	}, nil
}

// Job returns the raw job record.
func (e *Engine) Job(ctx context.Context, caller *structs.Caller, id string) (*structs.Job, error) {
	return e.authorized(ctx, caller, id)
}

func (e *Engine) command(ctx context.Context, caller *structs.Caller, id string, fn func(j *structs.Job) error) (*structs.Job, error) {
	if !e.opts.Controllable {
		return nil, fmt.Errorf("%w: %s jobs can't be controlled", ie.ErrNotSupported, e.opts.Kind)
	}
	_, err := e.authorized(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	job, err := e.db.UpdateJob(ctx, e.opts.Kind, id, func(j *structs.Job) error {
		err := fn(j)
		if err == nil {
			j.UpdatedAt = now.Unix()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	e.touch(ctx, id, job.Status, now)
	return job, nil
}

func (e *Engine) authorized(ctx context.Context, caller *structs.Caller, id string) (*structs.Job, error) {
	if caller == nil {
		return nil, ie.ErrForbidden
	}
	job, err := e.db.Job(ctx, e.opts.Kind, id)
	if err != nil {
		return nil, err
	}
	if !caller.Allowed(job.Owner) {
		return nil, ie.ErrForbidden
	}
	return job, nil
}
