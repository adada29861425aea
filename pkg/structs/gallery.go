package structs

// GalleryItem is one element of an import payload.
type GalleryItem struct {
	NID          int64         `json:"nid"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Summary      string        `json:"summary"`
	PublishDate  string        `json:"publish_date"`
	Link         string        `json:"link"`
	GalleryTypes []GalleryType `json:"gallery_types"`
	Images       []string      `json:"images"`
}

type GalleryType struct {
	Name string `json:"name"`
}

type Gallery struct {
	ID         string `json:"id"`
	ExternalID int64  `json:"external_id,omitempty"`
	Title      string `json:"title"`
	Content    string `json:"content,omitempty"`
	Excerpt    string `json:"excerpt,omitempty"`
	Link       string `json:"link,omitempty"`

	// PublishedAt is kept as given by the source
	PublishedAt string `json:"published_at,omitempty"`

	// Images in display order, Representative is always the first of them
	Images         []string `json:"images"`
	Representative string   `json:"representative,omitempty"`
	Terms          []string `json:"terms"`

	CreatedAt int64 `json:"created_at"`
	DeletedAt int64 `json:"deleted_at,omitempty"`
}

type Image struct {
	ID string `json:"id"`
	// GalleryID is the gallery the image was originally uploaded for
	GalleryID   string `json:"gallery_id,omitempty"`
	Filename    string `json:"filename"`
	SourceURL   string `json:"source_url,omitempty"`
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	CreatedAt   int64  `json:"created_at"`
}

type Term struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CleanupResult describes what happened when a gallery was deleted.
type CleanupResult struct {
	GalleryID     string   `json:"gallery_id"`
	ImagesDeleted int64    `json:"images_deleted"`
	ImagesKept    int64    `json:"images_kept"`
	TermsDeleted  []string `json:"terms_deleted,omitempty"`
	Background    bool     `json:"background"`
	JobID         string   `json:"job_id,omitempty"`
	Message       string   `json:"message,omitempty"`
}
