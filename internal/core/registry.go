package core

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/voidshard/galleryimport/pkg/structs"
)

// Jobs lists registry entries visible to the caller. Stale entries are
// collected first.
func (e *Engine) Jobs(ctx context.Context, caller *structs.Caller, q *structs.Query) ([]*structs.RegistryEntry, error) {
	_, err := e.GC(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("registry gc")
	}

	if q == nil {
		q = &structs.Query{}
	}
	q.Sanitize()
	if caller == nil || !caller.Admin {
		q.Owner = ""
		if caller != nil {
			q.Owner = caller.ID
		}
		if q.Owner == "" {
			return []*structs.RegistryEntry{}, nil
		}
	}

	entries, err := e.db.Entries(ctx)
	if err != nil {
		return nil, err
	}

	out := []*structs.RegistryEntry{}
	skipped := 0
	for _, en := range entries {
		if !q.Match(en) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, en)
		if len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// GC drops registry entries not seen within the retention window, along
// with the job records of those that finished.
func (e *Engine) GC(ctx context.Context) (*structs.GCResult, error) {
	entries, err := e.db.Entries(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := timeNow().Add(-time.Duration(e.opts.RetentionDays) * 24 * time.Hour).Unix()
	result := &structs.GCResult{Removed: []string{}}
	var errs *multierror.Error
	for _, en := range entries {
		if en.LastSeen >= cutoff {
			continue
		}
		if structs.IsFinalStatus(en.Status) {
			err = e.db.DeleteJob(ctx, en.Kind, en.JobID)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
		}
		result.Removed = append(result.Removed, en.JobID)
	}

	_, err = e.db.Unregister(ctx, result.Removed...)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return result, errs.ErrorOrNil()
}
