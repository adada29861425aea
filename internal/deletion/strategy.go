package deletion

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/media"
	"github.com/voidshard/galleryimport/pkg/records"
	"github.com/voidshard/galleryimport/pkg/structs"
)

// Strategy is the deletion step. Items are image IDs; the job's Target is
// the gallery being removed, which never counts as a reference.
type Strategy struct {
	db     records.Images
	media  media.Store
	oracle *Oracle
	log    zerolog.Logger
}

func NewStrategy(db records.Images, store media.Store, oracle *Oracle, logger *zerolog.Logger) *Strategy {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Strategy{
		db:     db,
		media:  store,
		oracle: oracle,
		log:    logger.With().Str("strategy", structs.KindDelete).Logger(),
	}
}

// Process deletes each image of the batch that is no longer referenced.
// Images still in use are kept and counted as skipped.
func (s *Strategy) Process(ctx context.Context, job *structs.Job, batch []json.RawMessage) *structs.StepResult {
	res := &structs.StepResult{}

	for _, raw := range batch {
		if ctx.Err() != nil {
			break
		}
		res.Processed++

		var id string
		err := json.Unmarshal(raw, &id)
		if err != nil || id == "" {
			res.Skipped++
			res.Logf("Item %s: skipped (invalid)", string(raw))
			continue
		}

		orphan, err := s.oracle.IsOrphan(ctx, id, job.Target)
		if err != nil {
			res.Skipped++
			res.Logf("Image %s: kept, reference check failed - %v", id, err)
			continue
		}
		if !orphan {
			res.Skipped++
			res.Logf("Image %s: kept (still in use)", id)
			continue
		}

		err = s.remove(ctx, id)
		if errors.Is(err, ie.ErrNotFound) {
			res.Skipped++
			res.Logf("Image %s: already removed", id)
			continue
		} else if err != nil {
			res.Skipped++
			res.Logf("Image %s: failed - %v", id, err)
			continue
		}

		s.oracle.Forget(id, job.Target)
		res.Deleted++
		res.Logf("Image %s: deleted", id)
	}

	return res
}

func (s *Strategy) remove(ctx context.Context, id string) error {
	img, err := s.db.Image(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.DeleteImage(ctx, id)
	if err != nil {
		return err
	}

	err = s.media.Remove(ctx, img.Path)
	if err != nil {
		// the record is gone so nothing points at the file any more
		s.log.Warn().Err(err).Str("image", id).Str("path", img.Path).Msg("removing image file")
	}
	return nil
}
