// Package records holds the domain records an import creates: galleries,
// their images & their taxonomy terms.
package records

// New connects to postgres, fronted by a cache if opts.CacheSize is set.
func New(opts *Options) (Database, error) {
	pg, err := NewPostgres(opts)
	if err != nil {
		return nil, err
	}
	if opts.CacheSize <= 0 {
		return pg, nil
	}
	return NewCached(pg, opts.CacheSize)
}
