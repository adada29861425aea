package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

func TestCachedTerms(t *testing.T) {
	ctx := context.Background()
	c, err := NewCached(NewMemory(), 10)
	assert.Nil(t, err)

	id, created, err := c.FindOrCreateTerm(ctx, "x")
	assert.Nil(t, err)
	assert.True(t, created)

	again, created, err := c.FindOrCreateTerm(ctx, "x")
	assert.Nil(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)

	c.Flush()
	flushed, created, err := c.FindOrCreateTerm(ctx, "x")
	assert.Nil(t, err)
	assert.False(t, created)
	assert.Equal(t, id, flushed)
}

func TestCachedExternalID(t *testing.T) {
	ctx := context.Background()
	c, err := NewCached(NewMemory(), 10)
	assert.Nil(t, err)

	id, err := c.CreateGallery(ctx, &structs.Gallery{Title: "a", ExternalID: 99})
	assert.Nil(t, err)

	g, err := c.GalleryByExternalID(ctx, 99)
	assert.Nil(t, err)
	assert.Equal(t, id, g.ID)

	assert.Nil(t, c.DeleteGallery(ctx, id))

	_, err = c.GalleryByExternalID(ctx, 99)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCachedIsFlusher(t *testing.T) {
	var db Database
	db, _ = NewCached(NewMemory(), 1)

	_, ok := db.(Flusher)
	assert.True(t, ok)
}

func TestCachedTermDeletedElsewhere(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	worker, err := NewCached(store, 10)
	assert.Nil(t, err)
	other, err := NewCached(store, 10)
	assert.Nil(t, err)

	a, err := worker.CreateGallery(ctx, &structs.Gallery{Title: "a"})
	assert.Nil(t, err)
	nature, _, err := worker.FindOrCreateTerm(ctx, "Nature")
	assert.Nil(t, err)
	assert.Nil(t, worker.SetGalleryTerms(ctx, a, []string{nature}))

	// another process deletes the gallery & its now unused term
	assert.Nil(t, other.DeleteGallery(ctx, a))
	assert.Nil(t, other.DeleteTerm(ctx, nature))

	b, err := worker.CreateGallery(ctx, &structs.Gallery{Title: "b"})
	assert.Nil(t, err)
	stale, _, err := worker.FindOrCreateTerm(ctx, "Nature")
	assert.Nil(t, err)
	assert.Equal(t, nature, stale)

	assert.Nil(t, worker.SetGalleryTerms(ctx, b, []string{stale}))

	fresh, created, err := store.FindOrCreateTerm(ctx, "Nature")
	assert.Nil(t, err)
	assert.False(t, created)
	assert.NotEqual(t, nature, fresh)

	used, err := store.TermUsage(ctx, fresh, "")
	assert.Nil(t, err)
	assert.Equal(t, int64(1), used)

	again, _, err := worker.FindOrCreateTerm(ctx, "Nature")
	assert.Nil(t, err)
	assert.Equal(t, fresh, again)
}

func TestCachedSetTermsMissingGallery(t *testing.T) {
	ctx := context.Background()
	c, err := NewCached(NewMemory(), 10)
	assert.Nil(t, err)

	id, _, err := c.FindOrCreateTerm(ctx, "x")
	assert.Nil(t, err)

	err = c.SetGalleryTerms(ctx, "nope", []string{id})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
