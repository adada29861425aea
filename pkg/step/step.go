// Package step defines the per-kind work a job engine drives.
package step

import (
	"context"
	"encoding/json"

	"github.com/voidshard/galleryimport/pkg/structs"
)

// Strategy processes one batch of a job's items.
//
// It must be idempotent at the item level where it can be (re-processing an
// item after a crash should not double its effects), must not mutate job
// state itself, and reports everything through the returned result.
type Strategy interface {
	Process(ctx context.Context, job *structs.Job, batch []json.RawMessage) *structs.StepResult
}

// StrategyFunc lets a plain function be a Strategy.
type StrategyFunc func(ctx context.Context, job *structs.Job, batch []json.RawMessage) *structs.StepResult

func (f StrategyFunc) Process(ctx context.Context, job *structs.Job, batch []json.RawMessage) *structs.StepResult {
	return f(ctx, job, batch)
}

// Loader resolves a job's payload into its items.
type Loader interface {
	Load(ctx context.Context, src structs.PayloadSource) ([]json.RawMessage, error)
}

// Window returns items[offset:offset+size], clamped to the slice.
func Window(items []json.RawMessage, offset int64, size int) []json.RawMessage {
	if offset < 0 {
		offset = 0
	}
	if offset >= int64(len(items)) || size <= 0 {
		return nil
	}
	end := offset + int64(size)
	if end > int64(len(items)) {
		end = int64(len(items))
	}
	return items[offset:end]
}
