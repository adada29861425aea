package structs

// Caller is whoever is asking; admins may act on any job.
type Caller struct {
	ID    string `json:"id"`
	Admin bool   `json:"admin"`
}

// Allowed reports if the caller may see / control a job owned by owner.
func (c *Caller) Allowed(owner string) bool {
	if c == nil {
		return false
	}
	if c.Admin {
		return true
	}
	return c.ID != "" && c.ID == owner
}

type EnqueueRequest struct {
	Source  PayloadSource `json:"source"`
	Options JobOptions    `json:"options"`
	Owner   string        `json:"owner,omitempty"`
	Target  string        `json:"target,omitempty"`
}

type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionStop   Action = "stop"
)

func ToAction(s string) Action {
	switch Action(s) {
	case ActionPause, ActionResume, ActionStop:
		return Action(s)
	}
	return ""
}

type ControlRequest struct {
	JobID  string `json:"job_id"`
	Action Action `json:"action"`
}

type StatusResponse struct {
	JobID     string `json:"job_id"`
	Status    Status `json:"status"`
	Processed int64  `json:"processed"`
	Total     *int64 `json:"total"`
	Created   int64  `json:"created"`
	Updated   int64  `json:"updated"`
	Skipped   int64  `json:"skipped"`
	Deleted   int64  `json:"deleted,omitempty"`
	Error     string `json:"error,omitempty"`
	LogURL    string `json:"log_url,omitempty"`
	Done      bool   `json:"done"`
}

// Health reports on the process serving the API.
type Health struct {
	OK bool `json:"ok"`

	// Backlog is how many step triggers are waiting to fire
	Backlog int `json:"backlog"`

	// LockContention counts triggers that found their job locked by
	// another step, since this process started
	LockContention int64 `json:"lock_contention"`
}
