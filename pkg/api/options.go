package api

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/voidshard/galleryimport/internal/core"
	"github.com/voidshard/galleryimport/internal/deletion"
	"github.com/voidshard/galleryimport/internal/importer"
)

const (
	defOrphanCacheTTL  = 5 * time.Second
	defOrphanCacheSize = 4096
)

// Options passed to the galleryimport API on creation
type Options struct {
	// UploadDir is where uploaded payloads are staged before import
	UploadDir string

	Import   *core.Options
	Delete   *core.Options
	Importer *importer.Options
	Cleanup  *deletion.CleanupOptions

	// OrphanCacheTTL is how long an "is this image still used" answer is kept
	OrphanCacheTTL  time.Duration
	OrphanCacheSize int

	Logger *zerolog.Logger
}

// OptionsClientDefault runs a service that serves the API but runs no
// background routines; steps still run wherever the queue delivers them.
func OptionsClientDefault() *Options {
	return &Options{
		Import:   core.OptionsImportDefault(),
		Delete:   core.OptionsDeleteDefault(),
		Importer: &importer.Options{},
		Cleanup:  &deletion.CleanupOptions{},
	}
}

// OptionsServerDefault also runs the tidy routines that recover jobs whose
// triggers went missing.
func OptionsServerDefault() *Options {
	o := OptionsClientDefault()
	o.Import.Tidy = true
	o.Delete.Tidy = true
	return o
}

func (o *Options) setDefaults() {
	if o.UploadDir == "" {
		o.UploadDir = filepath.Join(os.TempDir(), "galleryimport")
	}
	if o.Import == nil {
		o.Import = core.OptionsImportDefault()
	}
	if o.Delete == nil {
		o.Delete = core.OptionsDeleteDefault()
	}
	if o.Importer == nil {
		o.Importer = &importer.Options{}
	}
	if o.Cleanup == nil {
		o.Cleanup = &deletion.CleanupOptions{}
	}
	if o.OrphanCacheTTL <= 0 {
		o.OrphanCacheTTL = defOrphanCacheTTL
	}
	if o.OrphanCacheSize <= 0 {
		o.OrphanCacheSize = defOrphanCacheSize
	}
	if o.Logger == nil {
		l := zerolog.Nop()
		o.Logger = &l
	}
	for _, sub := range []*core.Options{o.Import, o.Delete} {
		if sub.Logger == nil {
			sub.Logger = o.Logger
		}
	}
	if o.Importer.Logger == nil {
		o.Importer.Logger = o.Logger
	}
	if o.Cleanup.Logger == nil {
		o.Cleanup.Logger = o.Logger
	}
}
