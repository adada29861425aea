package structs

// RegistryEntry is the index record kept for every job we know of.
type RegistryEntry struct {
	JobID     string `json:"job_id"`
	Kind      string `json:"kind"`
	Status    Status `json:"status"`
	Owner     string `json:"owner,omitempty"`
	Source    string `json:"source,omitempty"`
	CreatedAt int64  `json:"created_at"`
	LastSeen  int64  `json:"last_seen"`
}

// Notification is a one-shot message for a job's owner.
type Notification struct {
	Owner     string `json:"owner"`
	JobID     string `json:"job_id"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"created_at"`
}

type GCResult struct {
	Removed []string `json:"removed"`
}
