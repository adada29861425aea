package records

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"

	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

// Cached fronts a Database with LRU caches for the lookups the importer
// repeats most: term names and external IDs. Flush drops both.
type Cached struct {
	Database

	terms    *lru.Cache[string, string]
	external *lru.Cache[int64, string]
}

func NewCached(db Database, size int) (*Cached, error) {
	terms, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	external, err := lru.New[int64, string](size)
	if err != nil {
		return nil, err
	}
	return &Cached{Database: db, terms: terms, external: external}, nil
}

func (c *Cached) FindOrCreateTerm(ctx context.Context, name string) (string, bool, error) {
	if id, ok := c.terms.Get(name); ok {
		return id, false, nil
	}
	id, created, err := c.Database.FindOrCreateTerm(ctx, name)
	if err == nil {
		c.terms.Add(name, id)
	}
	return id, created, err
}

// SetGalleryTerms retries once with freshly resolved terms if it fails on a
// term we handed out. Another process (the API deleting unused terms) may
// have removed it since we cached it.
func (c *Cached) SetGalleryTerms(ctx context.Context, galleryID string, termIDs []string) error {
	err := c.Database.SetGalleryTerms(ctx, galleryID, termIDs)
	if !errors.Is(err, ie.ErrNotFound) {
		return err
	}
	names := c.cachedNames(termIDs)
	if len(names) == 0 {
		return err
	}

	fresh := make([]string, len(termIDs))
	for i, id := range termIDs {
		name, ok := names[id]
		if !ok {
			fresh[i] = id
			continue
		}
		c.terms.Remove(name)
		fresh[i], _, err = c.FindOrCreateTerm(ctx, name)
		if err != nil {
			return err
		}
	}
	return c.Database.SetGalleryTerms(ctx, galleryID, fresh)
}

// cachedNames maps the given term ids back to the names we cached them under
func (c *Cached) cachedNames(ids []string) map[string]string {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[string]string{}
	for _, name := range c.terms.Keys() {
		if id, ok := c.terms.Peek(name); ok && want[id] {
			out[id] = name
		}
	}
	return out
}

func (c *Cached) DeleteTerm(ctx context.Context, termID string) error {
	c.terms.Purge()
	return c.Database.DeleteTerm(ctx, termID)
}

func (c *Cached) CreateGallery(ctx context.Context, g *structs.Gallery) (string, error) {
	id, err := c.Database.CreateGallery(ctx, g)
	if err == nil && g.ExternalID > 0 {
		c.external.Add(g.ExternalID, id)
	}
	return id, err
}

func (c *Cached) GalleryByExternalID(ctx context.Context, externalID int64) (*structs.Gallery, error) {
	if id, ok := c.external.Get(externalID); ok {
		g, err := c.Database.Gallery(ctx, id)
		if err == nil && g.DeletedAt == 0 {
			return g, nil
		}
		c.external.Remove(externalID)
	}
	g, err := c.Database.GalleryByExternalID(ctx, externalID)
	if err == nil {
		c.external.Add(externalID, g.ID)
	}
	return g, err
}

func (c *Cached) DeleteGallery(ctx context.Context, id string) error {
	err := c.Database.DeleteGallery(ctx, id)
	for _, k := range c.external.Keys() {
		if v, ok := c.external.Peek(k); ok && v == id {
			c.external.Remove(k)
		}
	}
	return err
}

// Flush drops all cached lookups.
func (c *Cached) Flush() {
	c.terms.Purge()
	c.external.Purge()
}
