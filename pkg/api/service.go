package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/voidshard/galleryimport/internal/core"
	"github.com/voidshard/galleryimport/internal/deletion"
	"github.com/voidshard/galleryimport/internal/importer"
	"github.com/voidshard/galleryimport/pkg/database"
	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/fetch"
	"github.com/voidshard/galleryimport/pkg/joblog"
	"github.com/voidshard/galleryimport/pkg/media"
	"github.com/voidshard/galleryimport/pkg/queue"
	"github.com/voidshard/galleryimport/pkg/records"
	"github.com/voidshard/galleryimport/pkg/source"
	"github.com/voidshard/galleryimport/pkg/structs"
)

var timeNow = time.Now

// Service wires the import & deletion engines to their stores. It's both
// the API implementation & (via Run) a worker.
type Service struct {
	db      database.Database
	recs    records.Database
	qu      queue.Queue
	imports *core.Engine
	deletes *core.Engine
	cleanup *deletion.Cleanup
	opts    *Options
	log     zerolog.Logger
}

// New builds a Service. Both engines register their step handlers with qu.
func New(db database.Database, recs records.Database, qu queue.Queue, store media.Store, fetcher fetch.Fetcher, logs joblog.Sink, opts *Options) (*Service, error) {
	if opts == nil {
		opts = OptionsServerDefault()
	}
	opts.setDefaults()

	imports, err := core.NewEngine(
		db, qu,
		importer.NewStrategy(recs, store, fetcher, opts.Importer),
		source.Loader{}, logs, opts.Import,
	)
	if err != nil {
		return nil, err
	}

	strategy := deletion.NewStrategy(recs, store, deletion.NewOracle(recs, opts.OrphanCacheTTL, opts.OrphanCacheSize), opts.Logger)
	deletes, err := core.NewEngine(db, qu, strategy, source.Loader{}, logs, opts.Delete)
	if err != nil {
		imports.Close()
		return nil, err
	}

	return &Service{
		db:      db,
		recs:    recs,
		qu:      qu,
		imports: imports,
		deletes: deletes,
		cleanup: deletion.NewCleanup(recs, deletes, strategy, db, opts.Cleanup),
		opts:    opts,
		log:     opts.Logger.With().Str("component", "api").Logger(),
	}, nil
}

// Run processes step triggers until Close is called.
func (s *Service) Run() error {
	return s.qu.Run()
}

func (s *Service) Close() error {
	var errs *multierror.Error
	for _, fn := range []func() error{s.closeEngines, s.qu.Close, s.db.Close, s.closeRecords} {
		err := fn()
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (s *Service) closeEngines() error {
	var errs *multierror.Error
	for _, e := range []*core.Engine{s.imports, s.deletes} {
		if e == nil {
			continue
		}
		err := e.Close()
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (s *Service) closeRecords() error {
	if s.recs == nil {
		return nil
	}
	return s.recs.Close()
}

func (s *Service) Import(ctx context.Context, caller *structs.Caller, payload io.Reader, opts structs.JobOptions) (*structs.Job, error) {
	if !identified(caller) {
		return nil, ie.ErrForbidden
	}
	path, err := source.Stage(s.opts.UploadDir, payload, timeNow())
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("path", path).Str("owner", caller.ID).Msg("payload staged")
	return s.imports.Enqueue(ctx, &structs.EnqueueRequest{
		Source:  structs.PayloadSource{Path: path},
		Options: opts,
		Owner:   caller.ID,
	})
}

// Enqueue creates an import job. Jobs belong to the caller; only admins may
// name another owner or point a job at a file on the server.
func (s *Service) Enqueue(ctx context.Context, caller *structs.Caller, req *structs.EnqueueRequest) (*structs.Job, error) {
	if !identified(caller) {
		return nil, ie.ErrForbidden
	}
	if req == nil {
		return nil, ie.ErrNoPayload
	}
	if !caller.Admin {
		if req.Source.Path != "" {
			return nil, fmt.Errorf("%w: only admins may import from a server path", ie.ErrForbidden)
		}
		req.Owner = caller.ID
	} else if req.Owner == "" {
		req.Owner = caller.ID
	}
	req.Target = ""
	return s.imports.Enqueue(ctx, req)
}

// Status reports on an import job or, failing that, a background deletion.
func (s *Service) Status(ctx context.Context, caller *structs.Caller, jobID string) (*structs.StatusResponse, error) {
	st, err := s.imports.Status(ctx, caller, jobID)
	if errors.Is(err, ie.ErrNotFound) {
		return s.deletes.Status(ctx, caller, jobID)
	}
	return st, err
}

func (s *Service) Control(ctx context.Context, caller *structs.Caller, req *structs.ControlRequest) (*structs.Job, error) {
	return s.imports.Control(ctx, caller, req)
}

func (s *Service) Poke(ctx context.Context, caller *structs.Caller, jobID string) (*structs.StepReport, error) {
	report, err := s.imports.Poke(ctx, caller, jobID)
	if errors.Is(err, ie.ErrNotFound) {
		return s.deletes.Poke(ctx, caller, jobID)
	}
	return report, err
}

func (s *Service) Jobs(ctx context.Context, caller *structs.Caller, q *structs.Query) ([]*structs.RegistryEntry, error) {
	return s.imports.Jobs(ctx, caller, q)
}

func (s *Service) DeleteGallery(ctx context.Context, caller *structs.Caller, galleryID string, opts structs.JobOptions) (*structs.CleanupResult, error) {
	return s.cleanup.GalleryDeleted(ctx, caller, galleryID, opts)
}

func (s *Service) CheckExternalID(ctx context.Context, caller *structs.Caller, nid int64) (*structs.Gallery, error) {
	if !identified(caller) {
		return nil, ie.ErrForbidden
	}
	if nid <= 0 {
		return nil, fmt.Errorf("%w: external id must be positive", ie.ErrInvalidArg)
	}
	return s.recs.GalleryByExternalID(ctx, nid)
}

func (s *Service) Notifications(ctx context.Context, caller *structs.Caller) ([]*structs.Notification, error) {
	if !identified(caller) {
		return nil, ie.ErrForbidden
	}
	return s.db.Consume(ctx, caller.ID)
}

// Health reports the trigger backlog & lock contention. An unreachable queue
// is an error.
func (s *Service) Health(ctx context.Context) (*structs.Health, error) {
	backlog, err := s.qu.Backlog()
	if err != nil {
		return nil, err
	}
	return &structs.Health{
		OK:             true,
		Backlog:        backlog,
		LockContention: s.imports.LockContention() + s.deletes.LockContention(),
	}, nil
}

func identified(caller *structs.Caller) bool {
	return caller != nil && caller.ID != ""
}
