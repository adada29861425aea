package deletion

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/voidshard/galleryimport/pkg/records"
)

const (
	defOracleTTL  = 5 * time.Second
	defOracleSize = 1024
)

// Oracle answers whether an image is still referenced by any live gallery.
//
// Answers are cached for a few seconds; a batch often asks about the same
// image more than once & the store query isn't cheap.
type Oracle struct {
	db    records.Images
	cache *expirable.LRU[string, bool]
}

func NewOracle(db records.Images, ttl time.Duration, size int) *Oracle {
	if ttl <= 0 {
		ttl = defOracleTTL
	}
	if size <= 0 {
		size = defOracleSize
	}
	return &Oracle{
		db:    db,
		cache: expirable.NewLRU[string, bool](size, nil, ttl),
	}
}

// IsOrphan is true if no live gallery, other than excludeGalleryID, lists
// the image or uses it as its representative image.
func (o *Oracle) IsOrphan(ctx context.Context, imageID, excludeGalleryID string) (bool, error) {
	key := excludeGalleryID + "/" + imageID
	if referenced, ok := o.cache.Get(key); ok {
		return !referenced, nil
	}

	referenced, err := o.db.ImageReferenced(ctx, imageID, excludeGalleryID)
	if err != nil {
		return false, err
	}
	o.cache.Add(key, referenced)
	return !referenced, nil
}

// Forget drops any cached answer for the image.
func (o *Oracle) Forget(imageID, excludeGalleryID string) {
	o.cache.Remove(excludeGalleryID + "/" + imageID)
}
