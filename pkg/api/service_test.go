package api

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/voidshard/galleryimport/internal/mocks/pkg/queue_mock"
	"github.com/voidshard/galleryimport/pkg/database"
	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/fetch"
	"github.com/voidshard/galleryimport/pkg/joblog"
	"github.com/voidshard/galleryimport/pkg/media"
	"github.com/voidshard/galleryimport/pkg/queue"
	"github.com/voidshard/galleryimport/pkg/records"
	"github.com/voidshard/galleryimport/pkg/structs"
)

var (
	bob   = &structs.Caller{ID: "bob"}
	alice = &structs.Caller{ID: "alice"}
	admin = &structs.Caller{ID: "root", Admin: true}
)

type noFetch struct{}

func (noFetch) Fetch(ctx context.Context, url string) (*fetch.Download, error) {
	return nil, fmt.Errorf("offline")
}

type testService struct {
	*Service
	qu   *queue.Memory
	recs *records.Memory
}

func newTestService(t *testing.T) *testService {
	qu := queue.NewMemoryQueue(nil)
	recs := records.NewMemory()
	opts := OptionsClientDefault()
	opts.UploadDir = t.TempDir()

	svc, err := New(database.NewMemory(), recs, qu, media.NewMemory(), noFetch{}, joblog.Discard{}, opts)
	require.Nil(t, err)
	t.Cleanup(func() { svc.Close() })
	return &testService{Service: svc, qu: qu, recs: recs}
}

func TestClose(t *testing.T) {
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := &Service{qu: qu, db: database.NewMemory()}

	qu.EXPECT().Close().Return(nil)

	err := svc.Close()

	assert.Nil(t, err)
}

func TestCloseCollectsErrors(t *testing.T) {
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := &Service{qu: qu, db: database.NewMemory()}

	qu.EXPECT().Close().Return(fmt.Errorf("boom"))

	err := svc.Close()

	assert.ErrorContains(t, err, "boom")
}

func TestRun(t *testing.T) {
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := &Service{qu: qu}

	qu.EXPECT().Run().Return(nil)

	svc.Run()
}

func TestImportToCompletion(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	payload := `{"items": [
		{"nid": 11, "title": "First", "gallery_types": [{"name": "Events"}]},
		{"nid": 12, "title": "Second"},
		{"nid": 13, "title": ""}
	]}`

	job, err := svc.Import(ctx, bob, strings.NewReader(payload), structs.JobOptions{SkipExisting: true})
	require.Nil(t, err)
	assert.Equal(t, bob.ID, job.Owner)
	_, err = os.Stat(job.Source.Path)
	assert.Nil(t, err)

	_, err = svc.qu.Drain(ctx, 10)
	require.Nil(t, err)

	st, err := svc.Status(ctx, bob, job.ID)
	require.Nil(t, err)
	assert.Equal(t, structs.COMPLETE, st.Status)
	assert.Equal(t, int64(2), st.Created)
	assert.Equal(t, int64(1), st.Skipped)
	assert.True(t, st.Done)

	g, err := svc.CheckExternalID(ctx, bob, 12)
	require.Nil(t, err)
	assert.Equal(t, "Second", g.Title)

	notes, err := svc.Notifications(ctx, bob)
	require.Nil(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, fmt.Sprintf("Gallery import complete (job %s): 2 created, 0 updated, 1 skipped.", job.ID), notes[0].Message)

	// consumed
	notes, err = svc.Notifications(ctx, bob)
	require.Nil(t, err)
	assert.Len(t, notes, 0)
}

func TestImportBadPayload(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Import(context.Background(), bob, strings.NewReader(`{"items": [`), structs.JobOptions{})

	assert.ErrorIs(t, err, ie.ErrSourceBadJSON)
}

func TestEnqueueOwnership(t *testing.T) {
	ctx := context.Background()
	items := []byte(`[{"title": "x"}]`)

	cases := []struct {
		Name        string
		Caller      *structs.Caller
		Req         *structs.EnqueueRequest
		ExpectErr   error
		ExpectOwner string
	}{
		{
			Name:        "OwnerIsCaller",
			Caller:      bob,
			Req:         &structs.EnqueueRequest{Source: structs.PayloadSource{Items: items}, Owner: alice.ID},
			ExpectOwner: bob.ID,
		},
		{
			Name:        "AdminMayNameOwner",
			Caller:      admin,
			Req:         &structs.EnqueueRequest{Source: structs.PayloadSource{Items: items}, Owner: alice.ID},
			ExpectOwner: alice.ID,
		},
		{
			Name:        "AdminDefaultsToSelf",
			Caller:      admin,
			Req:         &structs.EnqueueRequest{Source: structs.PayloadSource{Items: items}},
			ExpectOwner: admin.ID,
		},
		{
			Name:      "PathNeedsAdmin",
			Caller:    bob,
			Req:       &structs.EnqueueRequest{Source: structs.PayloadSource{Path: "/etc/passwd"}},
			ExpectErr: ie.ErrForbidden,
		},
		{
			Name:      "Anonymous",
			Caller:    nil,
			Req:       &structs.EnqueueRequest{Source: structs.PayloadSource{Items: items}},
			ExpectErr: ie.ErrForbidden,
		},
		{
			Name:      "NoPayload",
			Caller:    bob,
			Req:       &structs.EnqueueRequest{},
			ExpectErr: ie.ErrInvalidArg,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			svc := newTestService(t)

			job, err := svc.Enqueue(ctx, c.Caller, c.Req)

			if c.ExpectErr != nil {
				assert.ErrorIs(t, err, c.ExpectErr)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, c.ExpectOwner, job.Owner)
		})
	}
}

func TestControlAndJobs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	job, err := svc.Enqueue(ctx, bob, &structs.EnqueueRequest{Source: structs.PayloadSource{Items: []byte(`[{"title": "x"}]`)}})
	require.Nil(t, err)

	_, err = svc.Control(ctx, alice, &structs.ControlRequest{JobID: job.ID, Action: structs.ActionPause})
	assert.ErrorIs(t, err, ie.ErrForbidden)

	paused, err := svc.Control(ctx, bob, &structs.ControlRequest{JobID: job.ID, Action: structs.ActionPause})
	require.Nil(t, err)
	assert.Equal(t, structs.PAUSED, paused.Status)

	report, err := svc.Poke(ctx, bob, job.ID)
	require.Nil(t, err)
	assert.Equal(t, structs.OutcomeIgnored, report.Outcome)

	entries, err := svc.Jobs(ctx, bob, nil)
	require.Nil(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, structs.PAUSED, entries[0].Status)

	entries, err = svc.Jobs(ctx, alice, nil)
	require.Nil(t, err)
	assert.Len(t, entries, 0)
}

func TestDeleteGalleryStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	images := []string{}
	for i := 0; i < 31; i++ {
		id, err := svc.recs.CreateImage(ctx, &structs.Image{Filename: fmt.Sprintf("%d.jpg", i), Path: fmt.Sprintf("%d.jpg", i)})
		require.Nil(t, err)
		images = append(images, id)
	}
	gid, err := svc.recs.CreateGallery(ctx, &structs.Gallery{Title: "big", Images: images})
	require.Nil(t, err)

	_, err = svc.DeleteGallery(ctx, bob, gid, structs.JobOptions{DeleteImages: true})
	assert.ErrorIs(t, err, ie.ErrForbidden)

	result, err := svc.DeleteGallery(ctx, admin, gid, structs.JobOptions{DeleteImages: true})
	require.Nil(t, err)
	assert.True(t, result.Background)

	// deletion jobs report through the same status call
	st, err := svc.Status(ctx, admin, result.JobID)
	require.Nil(t, err)
	assert.Equal(t, structs.QUEUED, st.Status)

	_, err = svc.qu.Drain(ctx, 10)
	require.Nil(t, err)

	_, err = svc.Status(ctx, admin, result.JobID)
	assert.ErrorIs(t, err, ie.ErrNotFound)

	for _, id := range images {
		_, err := svc.recs.Image(ctx, id)
		assert.ErrorIs(t, err, ie.ErrNotFound)
	}
}

func TestCheckExternalID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CheckExternalID(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ie.ErrForbidden)

	_, err = svc.CheckExternalID(context.Background(), bob, 0)
	assert.ErrorIs(t, err, ie.ErrInvalidArg)

	_, err = svc.CheckExternalID(context.Background(), bob, 99)
	assert.ErrorIs(t, err, ie.ErrNotFound)
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	h, err := s.Health(ctx)
	require.Nil(t, err)
	assert.Equal(t, &structs.Health{OK: true}, h)

	_, err = s.Import(ctx, bob, strings.NewReader(`[{"title": "a"}]`), structs.JobOptions{})
	require.Nil(t, err)

	h, err = s.Health(ctx)
	require.Nil(t, err)
	assert.Equal(t, 1, h.Backlog)
}

func TestHealthQueueDown(t *testing.T) {
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := &Service{qu: qu}

	qu.EXPECT().Backlog().Return(0, fmt.Errorf("connection refused"))

	_, err := svc.Health(context.Background())

	assert.ErrorContains(t, err, "connection refused")
}
