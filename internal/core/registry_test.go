package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/voidshard/galleryimport/internal/mocks/pkg/queue_mock"
	"github.com/voidshard/galleryimport/pkg/database"
	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/source"
	"github.com/voidshard/galleryimport/pkg/structs"
)

func fixTime(t *testing.T, at time.Time) func(time.Time) {
	old := timeNow
	now := at
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = old })
	return func(next time.Time) { now = next }
}

func TestEnqueueArmsFirstTrigger(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fixTime(t, now)

	ctrl := gomock.NewController(t)
	qu := queue_mock.NewMockQueue(ctrl)
	qu.EXPECT().Register(structs.KindImport, gomock.Any()).Return(nil)

	e, err := NewEngine(database.NewMemory(), qu, &harness{}, source.Loader{}, nil, nil)
	assert.Nil(t, err)
	defer e.Close()

	qu.EXPECT().Schedule(structs.KindImport, gomock.Any(), now.Add(time.Second)).Return("task", nil)

	job, err := e.Enqueue(context.Background(), &structs.EnqueueRequest{
		Source: structs.PayloadSource{Items: items(3)},
		Owner:  bob.ID,
	})

	assert.Nil(t, err)
	assert.Equal(t, structs.QUEUED, job.Status)
	assert.Equal(t, now.Unix(), job.CreatedAt)
}

func TestTidyRearmsLostTrigger(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow := fixTime(t, now)

	ctrl := gomock.NewController(t)
	qu := queue_mock.NewMockQueue(ctrl)
	qu.EXPECT().Register(structs.KindImport, gomock.Any()).Return(nil)

	db := database.NewMemory()
	e, err := NewEngine(db, qu, &harness{}, source.Loader{}, nil, nil)
	assert.Nil(t, err)
	defer e.Close()

	// the queue is down when the job is created
	qu.EXPECT().Schedule(structs.KindImport, gomock.Any(), gomock.Any()).Return("", fmt.Errorf("connection refused"))
	job, err := e.Enqueue(ctx, &structs.EnqueueRequest{Source: structs.PayloadSource{Items: items(3)}, Owner: bob.ID})
	assert.Nil(t, err)

	// nothing is stale yet
	count, err := e.Tidy(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 0, count)

	later := now.Add(3 * time.Minute)
	setNow(later)
	qu.EXPECT().Schedule(structs.KindImport, job.ID, later).Return("task", nil)

	count, err = e.Tidy(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 1, count)

	// the registry was touched, so an immediate second pass does nothing
	count, err = e.Tidy(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 0, count)
}

func TestTidyIgnoresOtherKindsAndFinishedJobs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fixTime(t, now)

	ctrl := gomock.NewController(t)
	qu := queue_mock.NewMockQueue(ctrl)
	qu.EXPECT().Register(structs.KindImport, gomock.Any()).Return(nil)

	db := database.NewMemory()
	e, err := NewEngine(db, qu, &harness{}, source.Loader{}, nil, nil)
	assert.Nil(t, err)
	defer e.Close()

	old := now.Add(-time.Hour).Unix()
	for _, en := range []*structs.RegistryEntry{
		{JobID: "a", Kind: structs.KindDelete, Status: structs.RUNNING, CreatedAt: old, LastSeen: old},
		{JobID: "b", Kind: structs.KindImport, Status: structs.COMPLETE, CreatedAt: old, LastSeen: old},
		{JobID: "c", Kind: structs.KindImport, Status: structs.PAUSED, CreatedAt: old, LastSeen: old},
	} {
		assert.Nil(t, db.Register(ctx, en, 10))
	}

	// no Schedule calls are expected
	count, err := e.Tidy(ctx)

	assert.Nil(t, err)
	assert.Equal(t, 0, count)
}

func TestGC(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	fixTime(t, now)

	h := newHarness(t, nil)

	old := now.Add(-8 * 24 * time.Hour).Unix()
	recent := now.Add(-time.Hour).Unix()

	cases := []struct {
		ID       string
		Status   structs.Status
		LastSeen int64
		Removed  bool
		JobKept  bool
	}{
		{"old-complete", structs.COMPLETE, old, true, false},
		{"old-failed", structs.FAILED, old, true, false},
		{"old-running", structs.RUNNING, old, true, true},
		{"recent-complete", structs.COMPLETE, recent, false, true},
		{"recent-queued", structs.QUEUED, recent, false, true},
	}
	for _, c := range cases {
		assert.Nil(t, h.db.InsertJob(ctx, &structs.Job{ID: c.ID, Kind: structs.KindImport, Status: c.Status}))
		assert.Nil(t, h.db.Register(ctx, &structs.RegistryEntry{
			JobID: c.ID, Kind: structs.KindImport, Status: c.Status, CreatedAt: c.LastSeen, LastSeen: c.LastSeen,
		}, 100))
	}

	result, err := h.e.GC(ctx)
	assert.Nil(t, err)
	assert.ElementsMatch(t, []string{"old-complete", "old-failed", "old-running"}, result.Removed)

	entries, err := h.db.Entries(ctx)
	assert.Nil(t, err)
	remaining := []string{}
	for _, en := range entries {
		remaining = append(remaining, en.JobID)
	}
	assert.ElementsMatch(t, []string{"recent-complete", "recent-queued"}, remaining)

	for _, c := range cases {
		t.Run(c.ID, func(t *testing.T) {
			_, err := h.db.Job(ctx, structs.KindImport, c.ID)
			if c.JobKept {
				assert.Nil(t, err)
			} else {
				assert.ErrorIs(t, err, ie.ErrNotFound)
			}
		})
	}
}

func TestJobsVisibility(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	for _, owner := range []string{bob.ID, bob.ID, alice.ID} {
		_, err := h.e.Enqueue(ctx, &structs.EnqueueRequest{
			Source: structs.PayloadSource{Items: items(1)},
			Owner:  owner,
		})
		assert.Nil(t, err)
	}

	cases := []struct {
		Name   string
		Caller *structs.Caller
		Query  *structs.Query
		Expect int
	}{
		{"Owner", bob, nil, 2},
		{"OtherOwner", alice, nil, 1},
		{"Admin", admin, nil, 3},
		{"AdminFilteredByOwner", admin, &structs.Query{Owner: alice.ID}, 1},
		{"OwnerCannotWidenQuery", bob, &structs.Query{Owner: alice.ID}, 2},
		{"Limit", admin, &structs.Query{Limit: 2}, 2},
		{"Offset", admin, &structs.Query{Offset: 2}, 1},
		{"StatusFilter", admin, &structs.Query{Statuses: []structs.Status{structs.COMPLETE}}, 0},
		{"Anonymous", nil, nil, 0},
		{"NoID", &structs.Caller{}, nil, 0},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			result, err := h.e.Jobs(ctx, c.Caller, c.Query)

			assert.Nil(t, err)
			assert.Len(t, result, c.Expect)
			for _, en := range result {
				assert.True(t, c.Caller.Allowed(en.Owner))
			}
		})
	}
}
