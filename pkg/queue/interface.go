package queue

import (
	"context"
	"time"
)

// Handler is called when a trigger fires. Errors are logged by the queue,
// triggers are never retried by the queue itself.
type Handler func(ctx context.Context, m *Meta) error

type Queue interface {
	// Register a handler for the given job kind.
	Register(kind string, handler Handler) error

	// Schedule a one-shot trigger for the given job, to fire no earlier
	// than `at`. Delivery is at-least-once; handlers must tolerate
	// duplicates and late arrivals.
	//
	// Returns an ID for the queued trigger.
	Schedule(kind, jobID string, at time.Time) (string, error)

	// Backlog returns how many triggers are waiting to fire.
	Backlog() (int, error)

	// Run the queue & process triggers (via Register funcs). This should block until Close() is called.
	Run() error

	// Close & shutdown the queue.
	Close() error
}
