package database

import (
	"context"
	"time"

	"github.com/voidshard/galleryimport/pkg/structs"
)

// JobDB is the job state store. It holds one record per job, keyed by kind
// and ID.
type JobDB interface {
	// InsertJob writes a new job, failing with ErrInvalidState if it exists.
	InsertJob(ctx context.Context, j *structs.Job) error

	// Job returns the job or ErrNotFound.
	Job(ctx context.Context, kind, id string) (*structs.Job, error)

	// UpdateJob atomically reads the job, hands it to fn & writes the result.
	// If fn returns an error nothing is written and the error is returned
	// along with the job as read. Concurrent writers never interleave.
	UpdateJob(ctx context.Context, kind, id string, fn func(j *structs.Job) error) (*structs.Job, error)

	DeleteJob(ctx context.Context, kind, id string) error
}

// Registry is the index of jobs we know about.
type Registry interface {
	// Register adds (or replaces) an entry. If the registry then holds more
	// than max entries the least recently seen are dropped.
	Register(ctx context.Context, e *structs.RegistryEntry, max int) error

	// Touch sets an entry's status & last seen time. Unknown IDs are ignored.
	Touch(ctx context.Context, id string, st structs.Status, at int64) error

	Entries(ctx context.Context) ([]*structs.RegistryEntry, error)

	Unregister(ctx context.Context, ids ...string) (int64, error)
}

// Outbox holds one-shot notifications per owner.
type Outbox interface {
	// Deliver stores a notification keyed by owner & job ID. Returns false
	// if one was already delivered for this pair.
	Deliver(ctx context.Context, n *structs.Notification, ttl time.Duration) (bool, error)

	// Consume returns & removes all of an owner's notifications.
	Consume(ctx context.Context, owner string) ([]*structs.Notification, error)
}

type Database interface {
	JobDB
	Registry
	Outbox

	Ping(ctx context.Context) error
	Close() error
}
