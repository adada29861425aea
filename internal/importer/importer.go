// Package importer turns gallery payload items into gallery records.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/fetch"
	"github.com/voidshard/galleryimport/pkg/media"
	"github.com/voidshard/galleryimport/pkg/records"
	"github.com/voidshard/galleryimport/pkg/structs"
)

const (
	defImageBatchSize = 3
	defFlushEvery     = 5
)

type Options struct {
	// ImageBatchSize is how many images are fetched between cache flushes
	ImageBatchSize int

	// FlushEvery flushes the record store's caches after this many
	// galleries are created
	FlushEvery int

	Logger *zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.ImageBatchSize <= 0 {
		o.ImageBatchSize = defImageBatchSize
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = defFlushEvery
	}
	if o.Logger == nil {
		l := zerolog.Nop()
		o.Logger = &l
	}
}

// Strategy is the import step. Each payload element becomes one gallery.
type Strategy struct {
	db      records.Database
	media   media.Store
	fetcher fetch.Fetcher
	opts    *Options
	log     zerolog.Logger
}

func NewStrategy(db records.Database, store media.Store, fetcher fetch.Fetcher, opts *Options) *Strategy {
	if opts == nil {
		opts = &Options{}
	}
	opts.setDefaults()
	return &Strategy{
		db:      db,
		media:   store,
		fetcher: fetcher,
		opts:    opts,
		log:     opts.Logger.With().Str("strategy", structs.KindImport).Logger(),
	}
}

// Process imports each element of the batch in order. Bad elements are
// skipped & logged; only a cancelled context stops the batch early, in which
// case Processed is the number of elements handled.
func (s *Strategy) Process(ctx context.Context, job *structs.Job, batch []json.RawMessage) *structs.StepResult {
	res := &structs.StepResult{}
	created := 0

	for i, raw := range batch {
		if ctx.Err() != nil {
			break
		}
		idx := job.Processed + int64(i) + 1
		res.Processed++

		item := &structs.GalleryItem{}
		err := decodeItem(raw, item)
		if err != nil {
			res.Skipped++
			res.Logf("Item %d: skipped (invalid)", idx)
			continue
		}
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			res.Skipped++
			res.Logf("Item %d: skipped (no title)", idx)
			continue
		}

		termIDs := s.terms(ctx, item, res)

		if job.Options.SkipExisting && item.NID > 0 {
			existing, err := s.db.GalleryByExternalID(ctx, item.NID)
			if err == nil {
				res.Skipped++
				res.Logf("Item %d (NID %d): skipped, already exists as gallery %s", idx, item.NID, existing.ID)
				continue
			} else if !errors.Is(err, ie.ErrNotFound) {
				res.Skipped++
				res.Logf("Item %d (NID %d): failed - %v", idx, item.NID, err)
				continue
			}
		}

		gallery := &structs.Gallery{
			ExternalID:  item.NID,
			Title:       item.Title,
			Content:     item.Description,
			Excerpt:     strings.TrimSpace(item.Summary),
			Link:        item.Link,
			PublishedAt: item.PublishDate,
		}
		id, err := s.db.CreateGallery(ctx, gallery)
		if err != nil {
			res.Skipped++
			res.Logf("Item %d: failed - %v", idx, err)
			continue
		}

		if len(termIDs) > 0 {
			err = s.db.SetGalleryTerms(ctx, id, termIDs)
			if err != nil {
				res.Logf("Gallery %s: failed to set gallery types - %v", id, err)
			}
		}

		if job.Options.DownloadImages && len(item.Images) > 0 {
			s.images(ctx, job, id, item.Images, res)
		}

		res.Created++
		created++
		res.Logf("Item %d: created gallery %s", idx, id)

		if created%s.opts.FlushEvery == 0 {
			s.flush()
		}
	}

	return res
}

// terms resolves an item's gallery types, creating those we haven't seen.
func (s *Strategy) terms(ctx context.Context, item *structs.GalleryItem, res *structs.StepResult) []string {
	ids := []string{}
	seen := map[string]bool{}
	for _, gt := range item.GalleryTypes {
		name := strings.TrimSpace(gt.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		id, created, err := s.db.FindOrCreateTerm(ctx, name)
		if err != nil {
			res.Logf("Gallery type %s: failed - %v", name, err)
			continue
		}
		if created {
			res.Logf("Created gallery type: %s", name)
		}
		ids = append(ids, id)
	}
	return ids
}

// images downloads & stores a gallery's images a few at a time, attaching
// the ones that worked. Failures are logged and left out.
func (s *Strategy) images(ctx context.Context, job *structs.Job, galleryID string, paths []string, res *structs.StepResult) {
	res.Logf("Gallery %s: starting download of %d images", galleryID, len(paths))

	attached := []string{}
	failed := 0
	for start := 0; start < len(paths); start += s.opts.ImageBatchSize {
		end := start + s.opts.ImageBatchSize
		if end > len(paths) {
			end = len(paths)
		}

		for _, p := range paths[start:end] {
			id, err := s.image(ctx, job, galleryID, p)
			if err != nil {
				failed++
				res.Logf("Failed: %s - %v", p, err)
				continue
			}
			attached = append(attached, id)
		}

		if end < len(paths) {
			s.flush()
		}
	}

	if len(attached) == 0 {
		return
	}
	err := s.db.AttachImages(ctx, galleryID, attached)
	if err != nil {
		res.Logf("Gallery %s: failed to attach images - %v", galleryID, err)
		return
	}
	res.Logf("Gallery %s: saved %d images (%d failed)", galleryID, len(attached), failed)
}

func (s *Strategy) image(ctx context.Context, job *structs.Job, galleryID, ref string) (string, error) {
	dl, err := s.fetcher.Fetch(ctx, fetch.Resolve(job.Options.SourceURL, ref))
	if err != nil {
		return "", err
	}

	path, err := s.media.Put(ctx, dl.Filename, dl.Data)
	if err != nil {
		return "", err
	}

	id, err := s.db.CreateImage(ctx, &structs.Image{
		GalleryID:   galleryID,
		Filename:    dl.Filename,
		SourceURL:   dl.URL,
		Path:        path,
		ContentType: dl.ContentType,
		Size:        int64(len(dl.Data)),
	})
	if err != nil {
		rerr := s.media.Remove(ctx, path)
		if rerr != nil {
			s.log.Warn().Err(rerr).Str("path", path).Msg("removing unrecorded image")
		}
		return "", err
	}
	return id, nil
}

func (s *Strategy) flush() {
	if f, ok := s.db.(records.Flusher); ok {
		f.Flush()
	}
}

// decodeItem accepts only JSON objects.
func decodeItem(raw json.RawMessage, item *structs.GalleryItem) error {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return ie.ErrInvalidArg
	}
	return json.Unmarshal(raw, item)
}
