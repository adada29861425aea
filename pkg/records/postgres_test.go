package records

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/galleryimport/pkg/structs"
)

func TestToSqlValues(t *testing.T) {
	assert.Equal(t, "($1)", toSqlValues(1, 1))
	assert.Equal(t, "($3, $4, $5)", toSqlValues(3, 3))
}

func TestToGallerySqlArgs(t *testing.T) {
	in := &structs.Gallery{
		ID:          "id",
		ExternalID:  12,
		Title:       "title",
		Content:     "content",
		Excerpt:     "excerpt",
		Link:        "link",
		PublishedAt: "2020-01-01",
		Images:      []string{"i1", "i2"},
		CreatedAt:   100,
	}

	qstr, result := toGallerySqlArgs(2, in)

	assert.Equal(t, "($2, $3, $4, $5, $6, $7, $8, $9, $10, $11)", qstr)
	assert.Equal(t, []interface{}{
		in.ID,
		in.ExternalID,
		in.Title,
		in.Content,
		in.Excerpt,
		in.Link,
		in.PublishedAt,
		"i1",
		in.Images,
		in.CreatedAt,
	}, result)
}

func TestToImageSqlArgs(t *testing.T) {
	in := &structs.Image{
		ID:          "id",
		GalleryID:   "g",
		Filename:    "a.jpg",
		SourceURL:   "http://x/a.jpg",
		Path:        "2024/01/a.jpg",
		ContentType: "image/jpeg",
		Size:        10,
		CreatedAt:   200,
	}

	qstr, result := toImageSqlArgs(1, in)

	assert.Equal(t, "($1, $2, $3, $4, $5, $6, $7, $8)", qstr)
	assert.Equal(t, []interface{}{
		in.ID,
		in.GalleryID,
		in.Filename,
		in.SourceURL,
		in.Path,
		in.ContentType,
		in.Size,
		in.CreatedAt,
	}, result)
}

func TestToGalleryTermSqlArgs(t *testing.T) {
	qstr, args := toGalleryTermSqlArgs("g", []string{"t1", "t2"})

	assert.Equal(t, "($1, $2), ($3, $4)", qstr)
	assert.Equal(t, []interface{}{"g", "t1", "g", "t2"}, args)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")

	assert.Nil(t, err)
	assert.Len(t, entries, 2)
}
