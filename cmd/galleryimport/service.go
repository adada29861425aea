package main

import (
	"github.com/voidshard/galleryimport/internal/utils"
	"github.com/voidshard/galleryimport/pkg/api"
	"github.com/voidshard/galleryimport/pkg/database"
	"github.com/voidshard/galleryimport/pkg/fetch"
	"github.com/voidshard/galleryimport/pkg/joblog"
	"github.com/voidshard/galleryimport/pkg/media"
	"github.com/voidshard/galleryimport/pkg/queue"
	"github.com/voidshard/galleryimport/pkg/records"
)

// service connects to everything & builds the API service. The returned
// service owns the connections; Close it.
func (c *optsServer) service(opts *api.Options) (*api.Service, error) {
	log := c.logger()

	tlsCfg, err := utils.TLSConfig(c.TLSCaCert, c.TLSCert, c.TLSKey)
	if err != nil {
		return nil, err
	}

	db, err := database.NewRedis(&database.Options{URL: c.redisURL(), TLSConfig: tlsCfg})
	if err != nil {
		return nil, err
	}

	recs, err := records.New(&records.Options{URL: c.databaseURL(), CacheSize: c.CacheSize})
	if err != nil {
		db.Close()
		return nil, err
	}

	qu, err := queue.NewAsynqQueue(&queue.Options{URL: c.queueURL(), TLSConfig: tlsCfg, Logger: log})
	if err != nil {
		db.Close()
		recs.Close()
		return nil, err
	}

	store, err := media.NewFS(c.MediaDir)
	if err != nil {
		db.Close()
		recs.Close()
		qu.Close()
		return nil, err
	}

	logs, err := joblog.NewFile(c.LogDir, c.PublicURL, *log)
	if err != nil {
		db.Close()
		recs.Close()
		qu.Close()
		return nil, err
	}

	opts.Logger = log
	opts.UploadDir = c.UploadDir
	opts.Import.BatchSize = c.BatchSize
	opts.Import.StepBudget = c.StepBudget
	opts.Delete.StepBudget = c.StepBudget
	opts.Cleanup.Threshold = c.Threshold

	return api.New(db, recs, qu, store, fetch.NewHTTP(&fetch.Options{}), logs, opts)
}
