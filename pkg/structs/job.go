package structs

const (
	KindImport = "import"
	KindDelete = "delete"
)

// PayloadSource says where a job's items live. Either a staged file on disk
// or an inline JSON array.
type PayloadSource struct {
	Path  string `json:"path,omitempty"`
	Items []byte `json:"items,omitempty"`
}

func (p *PayloadSource) Empty() bool {
	return p.Path == "" && len(p.Items) == 0
}

// JobOptions are the recognised per-job flags. They're handed to the step
// strategy untouched.
type JobOptions struct {
	SkipExisting   bool   `json:"skip_existing"`
	DownloadImages bool   `json:"download_images"`
	DeleteImages   bool   `json:"delete_images"`
	DeleteTerms    bool   `json:"delete_terms"`
	SourceURL      string `json:"source_url,omitempty"`
}

type Job struct {
	ID     string `json:"job_id"`
	Kind   string `json:"kind"`
	Status Status `json:"status"`

	Source  PayloadSource `json:"source"`
	Options JobOptions    `json:"options"`

	// Target is the record a job works on behalf of, eg. the gallery whose
	// images a deletion job is removing.
	Target string `json:"target,omitempty"`
	Owner  string `json:"owner,omitempty"`

	Processed int64 `json:"processed"`
	// Total is unknown (nil) until the first step loads the payload.
	Total   *int64 `json:"total"`
	Created int64  `json:"created"`
	Updated int64  `json:"updated"`
	Skipped int64  `json:"skipped"`
	Deleted int64  `json:"deleted,omitempty"`
	Error   string `json:"error,omitempty"`

	// Lock holds the unix nano time the current holder took the lock at, or 0
	Lock int64 `json:"lock"`

	// BatchSize is the effective batch size, it shrinks when steps run long
	BatchSize int   `json:"batch_size"`
	Steps     int64 `json:"steps"`

	LogFile string `json:"log_file,omitempty"`
	Done    bool   `json:"done"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Eligible reports if a trigger firing for this job should try to run a step.
func (j *Job) Eligible() bool {
	if j.Done {
		return false
	}
	return j.Status == QUEUED || j.Status == RUNNING
}

// Remaining returns the number of items left, or -1 if the total is unknown.
func (j *Job) Remaining() int64 {
	if j.Total == nil {
		return -1
	}
	r := *j.Total - j.Processed
	if r < 0 {
		return 0
	}
	return r
}

func (j *Job) Copy() *Job {
	c := *j
	if j.Total != nil {
		t := *j.Total
		c.Total = &t
	}
	if j.Source.Items != nil {
		c.Source.Items = append([]byte(nil), j.Source.Items...)
	}
	return &c
}
