// Package deletion removes the images & terms a deleted gallery leaves
// behind, inline for small galleries and as a background job for big ones.
package deletion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/voidshard/galleryimport/pkg/database"
	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/records"
	"github.com/voidshard/galleryimport/pkg/structs"
)

const (
	defThreshold = 30
	defNoticeTTL = time.Hour

	backgroundMessage = "Gallery deleted successfully. %d images are being removed in the background."
)

// Enqueuer starts background jobs, the deletion engine in practice.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *structs.EnqueueRequest) (*structs.Job, error)
}

type CleanupOptions struct {
	// Threshold is the image count above which removal runs in the background
	Threshold int

	// Background overrides the Threshold check when set
	Background func(g *structs.Gallery) bool

	NoticeTTL time.Duration

	Logger *zerolog.Logger
}

func (o *CleanupOptions) setDefaults() {
	if o.Threshold <= 0 {
		o.Threshold = defThreshold
	}
	if o.Background == nil {
		threshold := o.Threshold
		o.Background = func(g *structs.Gallery) bool {
			return len(g.Images) > threshold
		}
	}
	if o.NoticeTTL <= 0 {
		o.NoticeTTL = defNoticeTTL
	}
	if o.Logger == nil {
		l := zerolog.Nop()
		o.Logger = &l
	}
}

// Cleanup handles a gallery's deletion.
type Cleanup struct {
	db       records.Database
	jobs     Enqueuer
	strategy *Strategy
	outbox   database.Outbox
	opts     *CleanupOptions
	log      zerolog.Logger
}

func NewCleanup(db records.Database, jobs Enqueuer, strategy *Strategy, outbox database.Outbox, opts *CleanupOptions) *Cleanup {
	if opts == nil {
		opts = &CleanupOptions{}
	}
	opts.setDefaults()
	return &Cleanup{
		db:       db,
		jobs:     jobs,
		strategy: strategy,
		outbox:   outbox,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "cleanup").Logger(),
	}
}

// GalleryDeleted soft deletes the gallery, then removes its images (if
// DeleteImages) and any terms nothing else uses (if DeleteTerms).
func (c *Cleanup) GalleryDeleted(ctx context.Context, caller *structs.Caller, galleryID string, opts structs.JobOptions) (*structs.CleanupResult, error) {
	if caller == nil || !caller.Admin {
		return nil, ie.ErrForbidden
	}

	g, err := c.db.Gallery(ctx, galleryID)
	if err != nil {
		return nil, err
	}
	if g.DeletedAt != 0 {
		return nil, fmt.Errorf("gallery %s: %w", galleryID, ie.ErrNotFound)
	}

	err = c.db.DeleteGallery(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("gallery", g.ID).Int("images", len(g.Images)).Msg("gallery deleted")

	result := &structs.CleanupResult{GalleryID: g.ID}
	var errs *multierror.Error

	images := imageIDs(g)
	if opts.DeleteImages && len(images) > 0 {
		err = c.images(ctx, caller, g, images, opts, result)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if opts.DeleteTerms {
		err = c.terms(ctx, g, result)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return result, errs.ErrorOrNil()
}

func (c *Cleanup) images(ctx context.Context, caller *structs.Caller, g *structs.Gallery, images []string, opts structs.JobOptions, result *structs.CleanupResult) error {
	items, err := json.Marshal(images)
	if err != nil {
		return err
	}

	if !c.opts.Background(g) {
		res := c.strategy.Process(ctx, &structs.Job{Kind: structs.KindDelete, Target: g.ID}, jsonItems(images))
		result.ImagesDeleted = res.Deleted
		result.ImagesKept = res.Skipped
		for _, l := range res.Logs {
			c.log.Debug().Str("gallery", g.ID).Msg(l)
		}
		return nil
	}

	job, err := c.jobs.Enqueue(ctx, &structs.EnqueueRequest{
		Source:  structs.PayloadSource{Items: items},
		Options: opts,
		Owner:   caller.ID,
		Target:  g.ID,
	})
	if err != nil {
		return err
	}

	result.Background = true
	result.JobID = job.ID
	result.Message = fmt.Sprintf(backgroundMessage, len(images))

	_, err = c.outbox.Deliver(ctx, &structs.Notification{
		Owner:     caller.ID,
		JobID:     job.ID,
		Message:   result.Message,
		CreatedAt: time.Now().Unix(),
	}, c.opts.NoticeTTL)
	if err != nil {
		c.log.Warn().Err(err).Str("job", job.ID).Msg("delivering deletion notice")
	}
	return nil
}

// terms deletes the gallery's terms that no other live gallery uses.
func (c *Cleanup) terms(ctx context.Context, g *structs.Gallery, result *structs.CleanupResult) error {
	var errs *multierror.Error
	for _, t := range g.Terms {
		count, err := c.db.TermUsage(ctx, t, g.ID)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if count > 0 {
			continue
		}
		err = c.db.DeleteTerm(ctx, t)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		result.TermsDeleted = append(result.TermsDeleted, t)
	}
	return errs.ErrorOrNil()
}

// imageIDs is the gallery's images plus its representative, if that isn't
// one of them.
func imageIDs(g *structs.Gallery) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, id := range append(append([]string{}, g.Images...), g.Representative) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func jsonItems(ids []string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		data, _ := json.Marshal(id)
		out = append(out, data)
	}
	return out
}
