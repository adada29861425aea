package core

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/voidshard/galleryimport/pkg/structs"
)

// Tidy re-arms queued or running jobs of our kind that haven't been seen
// stepping for a while; their trigger was probably lost (failed to
// schedule, dropped by the queue, worker died mid step). Returns how many
// were re-armed.
//
// Extra triggers are harmless, so this errs on the side of re-arming.
func (e *Engine) Tidy(ctx context.Context) (int, error) {
	entries, err := e.db.Entries(ctx)
	if err != nil {
		return 0, err
	}

	now := timeNow()
	stale := now.Add(-e.opts.TidyStaleAfter).Unix()
	count := 0
	var errs *multierror.Error
	for _, en := range entries {
		if en.Kind != e.opts.Kind || en.LastSeen > stale {
			continue
		}
		if en.Status != structs.QUEUED && en.Status != structs.RUNNING {
			continue
		}

		job, err := e.db.Job(ctx, e.opts.Kind, en.JobID)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if !job.Eligible() {
			e.touch(ctx, job.ID, job.Status, now)
			continue
		}

		e.log.Info().Str("job", job.ID).Int64("last_seen", en.LastSeen).Msg("re-arming stale job")
		e.arm(job.ID, now)
		e.touch(ctx, job.ID, job.Status, now)
		count++
	}
	return count, errs.ErrorOrNil()
}

func (e *Engine) tidyForever(ctx context.Context) {
	tick := time.NewTicker(e.opts.TidyFrequency)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			count, err := e.Tidy(ctx)
			if err != nil {
				e.log.Warn().Err(err).Msg("tidy")
			}
			if count > 0 {
				e.log.Info().Int("rearmed", count).Msg("tidy")
			}
		}
	}
}
