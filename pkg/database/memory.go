package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

type notice struct {
	n       *structs.Notification
	expires time.Time
}

// Memory is an in process Database, for tests and single process use.
// Records are stored serialised so callers never share memory with it.
type Memory struct {
	lock     sync.Mutex
	jobs     map[string][]byte
	registry map[string]structs.RegistryEntry
	outbox   map[string]map[string]notice
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		jobs:     map[string][]byte{},
		registry: map[string]structs.RegistryEntry{},
		outbox:   map[string]map[string]notice{},
		now:      time.Now,
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) InsertJob(ctx context.Context, j *structs.Job) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	key := memJobKey(j.Kind, j.ID)
	if _, ok := m.jobs[key]; ok {
		return fmt.Errorf("job %s exists: %w", j.ID, errors.ErrInvalidState)
	}
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	m.jobs[key] = data
	return nil
}

func (m *Memory) Job(ctx context.Context, kind, id string) (*structs.Job, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.job(kind, id)
}

func (m *Memory) job(kind, id string) (*structs.Job, error) {
	raw, ok := m.jobs[memJobKey(kind, id)]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, errors.ErrNotFound)
	}
	j := &structs.Job{}
	return j, json.Unmarshal(raw, j)
}

func (m *Memory) UpdateJob(ctx context.Context, kind, id string, fn func(j *structs.Job) error) (*structs.Job, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	j, err := m.job(kind, id)
	if err != nil {
		return nil, err
	}
	read := j.Copy()

	err = fn(j)
	if err != nil {
		return read, err
	}

	data, err := json.Marshal(j)
	if err != nil {
		return read, err
	}
	m.jobs[memJobKey(kind, id)] = data
	return j, nil
}

func (m *Memory) DeleteJob(ctx context.Context, kind, id string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.jobs, memJobKey(kind, id))
	return nil
}

func (m *Memory) Register(ctx context.Context, e *structs.RegistryEntry, max int) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.registry[e.JobID] = *e
	if max <= 0 || len(m.registry) <= max {
		return nil
	}
	for _, id := range oldest(m.entries(), len(m.registry)-max) {
		delete(m.registry, id)
	}
	return nil
}

func (m *Memory) Touch(ctx context.Context, id string, st structs.Status, at int64) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	e, ok := m.registry[id]
	if !ok {
		return nil
	}
	e.Status = st
	e.LastSeen = at
	m.registry[id] = e
	return nil
}

func (m *Memory) Entries(ctx context.Context) ([]*structs.RegistryEntry, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := m.entries()
	sortEntries(out)
	return out, nil
}

func (m *Memory) entries() []*structs.RegistryEntry {
	out := make([]*structs.RegistryEntry, 0, len(m.registry))
	for _, e := range m.registry {
		cp := e
		out = append(out, &cp)
	}
	return out
}

func (m *Memory) Unregister(ctx context.Context, ids ...string) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	count := int64(0)
	for _, id := range ids {
		if _, ok := m.registry[id]; ok {
			delete(m.registry, id)
			count++
		}
	}
	return count, nil
}

func (m *Memory) Deliver(ctx context.Context, n *structs.Notification, ttl time.Duration) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	inbox, ok := m.outbox[n.Owner]
	if !ok {
		inbox = map[string]notice{}
		m.outbox[n.Owner] = inbox
	}
	now := m.now()
	if existing, ok := inbox[n.JobID]; ok && now.Before(existing.expires) {
		return false, nil
	}
	cp := *n
	inbox[n.JobID] = notice{n: &cp, expires: now.Add(ttl)}
	return true, nil
}

func (m *Memory) Consume(ctx context.Context, owner string) ([]*structs.Notification, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	out := []*structs.Notification{}
	now := m.now()
	for _, v := range m.outbox[owner] {
		if now.Before(v.expires) {
			out = append(out, v.n)
		}
	}
	delete(m.outbox, owner)

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func memJobKey(kind, id string) string {
	return kind + "/" + id
}
