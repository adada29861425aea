package structs

const (
	queryLimitDefault = 100
	queryLimitMax     = 500
)

type Query struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Filters
	Kinds    []string `json:"kinds,omitempty"`
	Statuses []Status `json:"statuses,omitempty"`
	Owner    string   `json:"owner,omitempty"`
}

func (q *Query) Sanitize() {
	if q.Limit <= 0 {
		q.Limit = queryLimitDefault
	}
	if q.Limit > queryLimitMax {
		q.Limit = queryLimitMax
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if len(q.Kinds) == 0 {
		q.Kinds = nil
	}
	if len(q.Statuses) == 0 {
		q.Statuses = nil
	}
}

// Match reports if a registry entry passes the query filters.
func (q *Query) Match(e *RegistryEntry) bool {
	if q.Owner != "" && e.Owner != q.Owner {
		return false
	}
	if q.Kinds != nil && !contains(q.Kinds, e.Kind) {
		return false
	}
	if q.Statuses != nil && !contains(q.Statuses, e.Status) {
		return false
	}
	return true
}

func contains[T comparable](in []T, v T) bool {
	for _, i := range in {
		if i == v {
			return true
		}
	}
	return false
}
