package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

// testDatabase runs the behaviours every Database implementation must share.
// expire moves the backend's clock forward by d.
func testDatabase(t *testing.T, newDB func(t *testing.T) Database, expire func(d time.Duration)) {
	ctx := context.Background()

	t.Run("InsertAndFetch", func(t *testing.T) {
		db := newDB(t)
		j := &structs.Job{ID: "a", Kind: structs.KindImport, Status: structs.QUEUED, Owner: "bob"}

		assert.Nil(t, db.InsertJob(ctx, j))
		assert.ErrorIs(t, db.InsertJob(ctx, j), errors.ErrInvalidState)

		got, err := db.Job(ctx, structs.KindImport, "a")
		assert.Nil(t, err)
		assert.Equal(t, j, got)

		_, err = db.Job(ctx, structs.KindDelete, "a")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("UpdateAbortsOnError", func(t *testing.T) {
		db := newDB(t)
		assert.Nil(t, db.InsertJob(ctx, &structs.Job{ID: "a", Kind: structs.KindImport, Status: structs.QUEUED}))

		read, err := db.UpdateJob(ctx, structs.KindImport, "a", func(j *structs.Job) error {
			j.Status = structs.RUNNING
			return errors.ErrLockHeld
		})
		assert.ErrorIs(t, err, errors.ErrLockHeld)
		assert.Equal(t, structs.QUEUED, read.Status)

		got, err := db.Job(ctx, structs.KindImport, "a")
		assert.Nil(t, err)
		assert.Equal(t, structs.QUEUED, got.Status)

		_, err = db.UpdateJob(ctx, structs.KindImport, "missing", func(j *structs.Job) error { return nil })
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("UpdateIsAtomic", func(t *testing.T) {
		db := newDB(t)
		assert.Nil(t, db.InsertJob(ctx, &structs.Job{ID: "a", Kind: structs.KindImport}))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := db.UpdateJob(ctx, structs.KindImport, "a", func(j *structs.Job) error {
					j.Processed++
					return nil
				})
				assert.Nil(t, err)
			}()
		}
		wg.Wait()

		got, err := db.Job(ctx, structs.KindImport, "a")
		assert.Nil(t, err)
		assert.Equal(t, int64(20), got.Processed)
	})

	t.Run("CompareAndSetHasOneWinner", func(t *testing.T) {
		db := newDB(t)
		assert.Nil(t, db.InsertJob(ctx, &structs.Job{ID: "a", Kind: structs.KindImport}))

		var wg sync.WaitGroup
		var lock sync.Mutex
		wins := 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(token int64) {
				defer wg.Done()
				_, err := db.UpdateJob(ctx, structs.KindImport, "a", func(j *structs.Job) error {
					if j.Lock != 0 {
						return errors.ErrLockHeld
					}
					j.Lock = token
					return nil
				})
				if err == nil {
					lock.Lock()
					wins++
					lock.Unlock()
				}
			}(int64(i + 1))
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})

	t.Run("Delete", func(t *testing.T) {
		db := newDB(t)
		assert.Nil(t, db.InsertJob(ctx, &structs.Job{ID: "a", Kind: structs.KindDelete}))
		assert.Nil(t, db.DeleteJob(ctx, structs.KindDelete, "a"))

		_, err := db.Job(ctx, structs.KindDelete, "a")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("RegistryBounded", func(t *testing.T) {
		db := newDB(t)
		for i, id := range []string{"a", "b", "c", "d"} {
			e := &structs.RegistryEntry{JobID: id, Status: structs.QUEUED, CreatedAt: int64(i), LastSeen: int64(i)}
			assert.Nil(t, db.Register(ctx, e, 3))
		}

		entries, err := db.Entries(ctx)
		assert.Nil(t, err)
		assert.Len(t, entries, 3)
		assert.Equal(t, "d", entries[0].JobID)
		assert.Equal(t, "b", entries[2].JobID)
	})

	t.Run("RegistryTouch", func(t *testing.T) {
		db := newDB(t)
		assert.Nil(t, db.Register(ctx, &structs.RegistryEntry{JobID: "a", Status: structs.QUEUED, LastSeen: 1}, 10))

		assert.Nil(t, db.Touch(ctx, "a", structs.RUNNING, 5))
		assert.Nil(t, db.Touch(ctx, "nope", structs.RUNNING, 5))

		entries, err := db.Entries(ctx)
		assert.Nil(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, structs.RUNNING, entries[0].Status)
		assert.Equal(t, int64(5), entries[0].LastSeen)

		count, err := db.Unregister(ctx, "a", "nope")
		assert.Nil(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("TouchAfterUnregister", func(t *testing.T) {
		db := newDB(t)
		assert.Nil(t, db.Register(ctx, &structs.RegistryEntry{JobID: "a", Status: structs.RUNNING, LastSeen: 1}, 10))

		count, err := db.Unregister(ctx, "a")
		assert.Nil(t, err)
		assert.Equal(t, int64(1), count)

		assert.Nil(t, db.Touch(ctx, "a", structs.RUNNING, 5))

		entries, err := db.Entries(ctx)
		assert.Nil(t, err)
		assert.Len(t, entries, 0)
	})

	t.Run("ConcurrentTouchesKeepEveryEntry", func(t *testing.T) {
		db := newDB(t)
		ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		for _, id := range ids {
			assert.Nil(t, db.Register(ctx, &structs.RegistryEntry{JobID: id, Status: structs.QUEUED, LastSeen: 1}, 100))
		}

		var wg sync.WaitGroup
		for i, id := range ids {
			wg.Add(1)
			go func(id string, at int64) {
				defer wg.Done()
				assert.Nil(t, db.Touch(ctx, id, structs.RUNNING, at))
			}(id, int64(i+10))
		}
		wg.Wait()

		entries, err := db.Entries(ctx)
		assert.Nil(t, err)
		assert.Len(t, entries, len(ids))
		for _, e := range entries {
			assert.Equal(t, structs.RUNNING, e.Status, e.JobID)
		}
	})

	t.Run("OutboxDeliversOnce", func(t *testing.T) {
		db := newDB(t)
		n := &structs.Notification{Owner: "bob", JobID: "a", Message: "hi", CreatedAt: 1}

		ok, err := db.Deliver(ctx, n, time.Hour)
		assert.Nil(t, err)
		assert.True(t, ok)

		ok, err = db.Deliver(ctx, n, time.Hour)
		assert.Nil(t, err)
		assert.False(t, ok)

		got, err := db.Consume(ctx, "alice")
		assert.Nil(t, err)
		assert.Len(t, got, 0)

		got, err = db.Consume(ctx, "bob")
		assert.Nil(t, err)
		assert.Equal(t, []*structs.Notification{n}, got)

		got, err = db.Consume(ctx, "bob")
		assert.Nil(t, err)
		assert.Len(t, got, 0)
	})

	t.Run("OutboxExpires", func(t *testing.T) {
		db := newDB(t)
		_, err := db.Deliver(ctx, &structs.Notification{Owner: "bob", JobID: "a"}, time.Hour)
		assert.Nil(t, err)

		expire(2 * time.Hour)

		got, err := db.Consume(ctx, "bob")
		assert.Nil(t, err)
		assert.Len(t, got, 0)
	})
}
