package queue

import (
	"crypto/tls"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultQueueName   = "galleryimport:steps"
	defaultTaskTimeout = 40 * time.Second
	defaultConcurrency = 4
	defaultPoll        = 250 * time.Millisecond
)

// Options are options for the queue.
type Options struct {
	// URL encodes how we'll connect to the queue (ie. "redis://localhost:6379/1").
	URL string

	// TLSConfig needed to connect to the queue (optional).
	TLSConfig *tls.Config

	// Name of the queue triggers are placed on
	Name string

	// TaskTimeout is the hard ceiling on a single handler call. Keep it under
	// the engines' lock TTL.
	TaskTimeout time.Duration

	// Concurrency is how many triggers a worker handles at once
	Concurrency int

	// Poll is how often the in memory queue checks for due triggers
	Poll time.Duration

	Logger *zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Name == "" {
		o.Name = defaultQueueName
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = defaultTaskTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.Poll <= 0 {
		o.Poll = defaultPoll
	}
	if o.Logger == nil {
		l := zerolog.Nop()
		o.Logger = &l
	}
}
