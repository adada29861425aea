package api

import (
	"context"
	"io"

	"github.com/voidshard/galleryimport/pkg/structs"
)

// API represents the functions galleryimport servers expose.
type API interface {
	// Import stages an uploaded payload & enqueues an import job for it.
	Import(ctx context.Context, caller *structs.Caller, payload io.Reader, opts structs.JobOptions) (*structs.Job, error)

	// Enqueue creates an import job for a payload that's already in place.
	Enqueue(ctx context.Context, caller *structs.Caller, req *structs.EnqueueRequest) (*structs.Job, error)

	Status(ctx context.Context, caller *structs.Caller, jobID string) (*structs.StatusResponse, error)
	Control(ctx context.Context, caller *structs.Caller, req *structs.ControlRequest) (*structs.Job, error)

	// Poke runs a job's next step now, rather than waiting for its trigger.
	Poke(ctx context.Context, caller *structs.Caller, jobID string) (*structs.StepReport, error)

	Jobs(ctx context.Context, caller *structs.Caller, q *structs.Query) ([]*structs.RegistryEntry, error)

	// DeleteGallery removes a gallery & (optionally) its orphaned images & terms.
	DeleteGallery(ctx context.Context, caller *structs.Caller, galleryID string, opts structs.JobOptions) (*structs.CleanupResult, error)

	// CheckExternalID finds the live gallery imported with the given external ID.
	CheckExternalID(ctx context.Context, caller *structs.Caller, nid int64) (*structs.Gallery, error)

	// Notifications returns & clears the caller's pending notifications.
	Notifications(ctx context.Context, caller *structs.Caller) ([]*structs.Notification, error)

	// Health needs no caller.
	Health(ctx context.Context) (*structs.Health, error)
}

type Server interface {
	ServeForever(api API) error
	Close() error
}
