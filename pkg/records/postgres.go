package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voidshard/galleryimport/internal/utils"
	"github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

const (
	tableGalleries    = "galleries"
	tableImages       = "images"
	tableTerms        = "terms"
	tableGalleryTerms = "gallery_terms"
)

// Postgres is a records implementation that uses postgres.
type Postgres struct {
	opts *Options
	pool *pgxpool.Pool
}

// NewPostgres returns a new Postgres database connection.
func NewPostgres(opts *Options) (*Postgres, error) {
	opts.setDefaults()
	pool, err := pgxpool.New(context.Background(), opts.url())
	return &Postgres{pool: pool, opts: opts}, err
}

// Close shuts down the database connection.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// CreateGallery inserts a gallery row
func (p *Postgres) CreateGallery(ctx context.Context, g *structs.Gallery) (string, error) {
	if g.ID == "" {
		g.ID = utils.NewRandomID()
	}
	qstr, args := toGallerySqlArgs(1, g)
	qstr = fmt.Sprintf(`INSERT INTO %s (id, external_id, title, content, excerpt, link, published_at, representative, images, created_at) VALUES %s;`, tableGalleries, qstr)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, qstr, args...)
	return g.ID, err
}

// Gallery returns a gallery and the IDs of its terms
func (p *Postgres) Gallery(ctx context.Context, id string) (*structs.Gallery, error) {
	return p.gallery(ctx, "id=$1", id)
}

// GalleryByExternalID returns the newest live gallery with the external ID
func (p *Postgres) GalleryByExternalID(ctx context.Context, externalID int64) (*structs.Gallery, error) {
	return p.gallery(ctx, "external_id=$1 AND deleted_at=0", externalID)
}

func (p *Postgres) gallery(ctx context.Context, where string, arg interface{}) (*structs.Gallery, error) {
	qstr := fmt.Sprintf(`SELECT id, external_id, title, content, excerpt, link, published_at, representative, images, created_at, deleted_at
		FROM %s WHERE %s ORDER BY created_at DESC LIMIT 1;`, tableGalleries, where)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	g := structs.Gallery{}
	err = conn.QueryRow(ctx, qstr, arg).Scan(
		&g.ID,
		&g.ExternalID,
		&g.Title,
		&g.Content,
		&g.Excerpt,
		&g.Link,
		&g.PublishedAt,
		&g.Representative,
		&g.Images,
		&g.CreatedAt,
		&g.DeletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("gallery: %w", errors.ErrNotFound)
	} else if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT term_id FROM %s WHERE gallery_id=$1 ORDER BY term_id;`, tableGalleryTerms), g.ID)
	if err != nil {
		return nil, err
	}
	g.Terms, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if g.Images == nil {
		g.Images = []string{}
	}
	return &g, nil
}

// AttachImages sets the gallery's image list & representative image
func (p *Postgres) AttachImages(ctx context.Context, galleryID string, imageIDs []string) error {
	rep := ""
	if len(imageIDs) > 0 {
		rep = imageIDs[0]
	}
	qstr := fmt.Sprintf(`UPDATE %s SET images=$1, representative=$2 WHERE id=$3;`, tableGalleries)
	return p.exec(ctx, qstr, imageIDs, rep, galleryID)
}

// SetGalleryTerms replaces the gallery's terms in a single transaction
func (p *Postgres) SetGalleryTerms(ctx context.Context, galleryID string, termIDs []string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE gallery_id=$1;`, tableGalleryTerms), galleryID)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}

	if len(termIDs) > 0 {
		qstr, args := toGalleryTermSqlArgs(galleryID, termIDs)
		qstr = fmt.Sprintf(`INSERT INTO %s (gallery_id, term_id) VALUES %s ON CONFLICT DO NOTHING;`, tableGalleryTerms, qstr)
		_, err = tx.Exec(ctx, qstr, args...)
		if err != nil {
			tx.Rollback(ctx)
			return missingRef(err)
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		tx.Rollback(ctx)
	}
	return err
}

// missingRef reports a foreign key violation (a term or gallery deleted under
// us) as not found.
func missingRef(err error) error {
	pgErr, ok := err.(*pgconn.PgError)
	if ok && pgErr.Code == "23503" {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, pgErr.Detail)
	}
	return err
}

// DeleteGallery marks a gallery deleted
func (p *Postgres) DeleteGallery(ctx context.Context, id string) error {
	qstr := fmt.Sprintf(`UPDATE %s SET deleted_at=$1 WHERE id=$2 AND deleted_at=0;`, tableGalleries)
	return p.exec(ctx, qstr, timeNow(), id)
}

// CreateImage inserts an image row
func (p *Postgres) CreateImage(ctx context.Context, img *structs.Image) (string, error) {
	if img.ID == "" {
		img.ID = utils.NewRandomID()
	}
	qstr, args := toImageSqlArgs(1, img)
	qstr = fmt.Sprintf(`INSERT INTO %s (id, gallery_id, filename, source_url, path, content_type, size, created_at) VALUES %s;`, tableImages, qstr)
	return img.ID, p.exec(ctx, qstr, args...)
}

// Image returns an image by ID
func (p *Postgres) Image(ctx context.Context, id string) (*structs.Image, error) {
	qstr := fmt.Sprintf(`SELECT id, gallery_id, filename, source_url, path, content_type, size, created_at FROM %s WHERE id=$1;`, tableImages)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	img := structs.Image{}
	err = conn.QueryRow(ctx, qstr, id).Scan(
		&img.ID,
		&img.GalleryID,
		&img.Filename,
		&img.SourceURL,
		&img.Path,
		&img.ContentType,
		&img.Size,
		&img.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("image %s: %w", id, errors.ErrNotFound)
	}
	return &img, err
}

// DeleteImage removes an image row
func (p *Postgres) DeleteImage(ctx context.Context, id string) error {
	return p.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1;`, tableImages), id)
}

// ImageReferenced asks if some other live gallery lists or features the image.
// This always reads the live table, never a snapshot.
func (p *Postgres) ImageReferenced(ctx context.Context, imageID, excludeGalleryID string) (bool, error) {
	qstr := fmt.Sprintf(`SELECT EXISTS (
		SELECT 1 FROM %s WHERE id<>$2 AND deleted_at=0 AND ($1=ANY(images) OR representative=$1)
	);`, tableGalleries)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	found := false
	err = conn.QueryRow(ctx, qstr, imageID, excludeGalleryID).Scan(&found)
	return found, err
}

// FindOrCreateTerm returns a term by name, inserting it if needed
func (p *Postgres) FindOrCreateTerm(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, fmt.Errorf("term name: %w", errors.ErrInvalidArg)
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return "", false, err
	}
	defer conn.Release()

	id := ""
	err = conn.QueryRow(
		ctx,
		fmt.Sprintf(`INSERT INTO %s (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING RETURNING id;`, tableTerms),
		utils.NewRandomID(), name,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	} else if err != pgx.ErrNoRows {
		return "", false, err
	}

	// someone already has the name
	err = conn.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE name=$1;`, tableTerms), name).Scan(&id)
	return id, false, err
}

// Term returns a term by ID
func (p *Postgres) Term(ctx context.Context, id string) (*structs.Term, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	t := structs.Term{}
	err = conn.QueryRow(ctx, fmt.Sprintf(`SELECT id, name FROM %s WHERE id=$1;`, tableTerms), id).Scan(&t.ID, &t.Name)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("term %s: %w", id, errors.ErrNotFound)
	}
	return &t, err
}

// TermUsage counts live galleries (bar one) using a term
func (p *Postgres) TermUsage(ctx context.Context, termID, excludeGalleryID string) (int64, error) {
	qstr := fmt.Sprintf(`SELECT COUNT(*) FROM %s gt JOIN %s g ON g.id = gt.gallery_id
		WHERE gt.term_id=$1 AND g.id<>$2 AND g.deleted_at=0;`, tableGalleryTerms, tableGalleries)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := int64(0)
	err = conn.QueryRow(ctx, qstr, termID, excludeGalleryID).Scan(&count)
	return count, err
}

// DeleteTerm removes a term (and, via cascade, its gallery links)
func (p *Postgres) DeleteTerm(ctx context.Context, termID string) error {
	return p.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1;`, tableTerms), termID)
}

func (p *Postgres) exec(ctx context.Context, qstr string, args ...interface{}) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, qstr, args...)
	return err
}

// toGallerySqlArgs converts a gallery into a SQL query string & args (for an insert)
func toGallerySqlArgs(offset int, g *structs.Gallery) (string, []interface{}) {
	if g.CreatedAt == 0 {
		g.CreatedAt = timeNow()
	}
	if g.Images == nil {
		g.Images = []string{}
	}
	if len(g.Images) > 0 {
		g.Representative = g.Images[0]
	}
	return toSqlValues(offset, 10), []interface{}{
		g.ID,
		g.ExternalID,
		g.Title,
		g.Content,
		g.Excerpt,
		g.Link,
		g.PublishedAt,
		g.Representative,
		g.Images,
		g.CreatedAt,
	}
}

// toImageSqlArgs converts an image into a SQL query string & args (for an insert)
func toImageSqlArgs(offset int, img *structs.Image) (string, []interface{}) {
	if img.CreatedAt == 0 {
		img.CreatedAt = timeNow()
	}
	return toSqlValues(offset, 8), []interface{}{
		img.ID,
		img.GalleryID,
		img.Filename,
		img.SourceURL,
		img.Path,
		img.ContentType,
		img.Size,
		img.CreatedAt,
	}
}

// toGalleryTermSqlArgs builds the (),(),() values for linking terms
func toGalleryTermSqlArgs(galleryID string, termIDs []string) (string, []interface{}) {
	vals := []string{}
	args := []interface{}{}
	for _, t := range termIDs {
		vals = append(vals, toSqlValues(len(args)+1, 2))
		args = append(args, galleryID, t)
	}
	return strings.Join(vals, ", "), args
}

// toSqlValues returns ($offset, $offset+1, ... ) for count placeholders
func toSqlValues(offset, count int) string {
	vals := make([]string, count)
	for i := 0; i < count; i++ {
		vals[i] = fmt.Sprintf("$%d", i+offset)
	}
	return fmt.Sprintf("(%s)", strings.Join(vals, ", "))
}

// timeNow returns the current time in unix seconds
func timeNow() int64 {
	return time.Now().Unix()
}
