package records

import (
	"context"

	"github.com/voidshard/galleryimport/pkg/structs"
)

// Galleries is the store of gallery records.
type Galleries interface {
	// CreateGallery inserts a gallery, setting its ID if empty.
	CreateGallery(ctx context.Context, g *structs.Gallery) (string, error)

	// Gallery returns a gallery (with its images & terms) or ErrNotFound.
	Gallery(ctx context.Context, id string) (*structs.Gallery, error)

	// GalleryByExternalID returns the live gallery carrying the external ID,
	// or ErrNotFound.
	GalleryByExternalID(ctx context.Context, externalID int64) (*structs.Gallery, error)

	// AttachImages sets a gallery's image list, the first becomes its
	// representative image.
	AttachImages(ctx context.Context, galleryID string, imageIDs []string) error

	SetGalleryTerms(ctx context.Context, galleryID string, termIDs []string) error

	// DeleteGallery soft deletes a gallery; it stops counting as a reference
	// for anything.
	DeleteGallery(ctx context.Context, id string) error
}

type Images interface {
	CreateImage(ctx context.Context, img *structs.Image) (string, error)
	Image(ctx context.Context, id string) (*structs.Image, error)
	DeleteImage(ctx context.Context, id string) error

	// ImageReferenced reports if any live gallery other than excludeGalleryID
	// lists the image or uses it as its representative image.
	ImageReferenced(ctx context.Context, imageID, excludeGalleryID string) (bool, error)
}

type Terms interface {
	// FindOrCreateTerm returns the term with the given name, creating it if
	// needed. created is true if we made it.
	FindOrCreateTerm(ctx context.Context, name string) (id string, created bool, err error)

	Term(ctx context.Context, id string) (*structs.Term, error)

	// TermUsage counts live galleries other than excludeGalleryID using the term.
	TermUsage(ctx context.Context, termID, excludeGalleryID string) (int64, error)

	DeleteTerm(ctx context.Context, termID string) error
}

type Database interface {
	Galleries
	Images
	Terms

	Close() error
}

// Flusher is implemented by stores that hold caches the importer should
// drop periodically to bound memory.
type Flusher interface {
	Flush()
}
