package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Memory is an in process Queue. Triggers live only as long as the process.
type Memory struct {
	opts *Options
	log  zerolog.Logger
	now  func() time.Time

	lock     sync.Mutex
	handlers map[string]Handler
	pending  []*Meta

	done chan struct{}
	once sync.Once
}

func NewMemoryQueue(opts *Options) *Memory {
	if opts == nil {
		opts = &Options{}
	}
	opts.setDefaults()
	return &Memory{
		opts:     opts,
		log:      *opts.Logger,
		now:      time.Now,
		handlers: map[string]Handler{},
		pending:  []*Meta{},
		done:     make(chan struct{}),
	}
}

func (m *Memory) Register(kind string, handler Handler) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.handlers[kind] = handler
	return nil
}

func (m *Memory) Schedule(kind, jobID string, at time.Time) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	meta := &Meta{ID: uuid.New().String(), Kind: kind, JobID: jobID, At: at}
	m.pending = append(m.pending, meta)
	sort.SliceStable(m.pending, func(i, j int) bool { return m.pending[i].At.Before(m.pending[j].At) })
	return meta.ID, nil
}

func (m *Memory) Backlog() (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.pending), nil
}

// Pending returns a copy of the waiting triggers, soonest first.
func (m *Memory) Pending() []*Meta {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := make([]*Meta, len(m.pending))
	for i, p := range m.pending {
		cp := *p
		out[i] = &cp
	}
	return out
}

// Fire pops every trigger due by `now` and hands it to its handler, in
// order. Returns how many fired.
func (m *Memory) Fire(ctx context.Context, now time.Time) (int, error) {
	m.lock.Lock()
	due := []*Meta{}
	rest := []*Meta{}
	for _, p := range m.pending {
		if p.At.After(now) {
			rest = append(rest, p)
		} else {
			due = append(due, p)
		}
	}
	m.pending = rest
	m.lock.Unlock()

	return len(due), m.deliver(ctx, due)
}

// FireNext pops the single soonest trigger regardless of its time.
// Returns false if nothing is waiting.
func (m *Memory) FireNext(ctx context.Context) (bool, error) {
	m.lock.Lock()
	if len(m.pending) == 0 {
		m.lock.Unlock()
		return false, nil
	}
	next := m.pending[0]
	m.pending = m.pending[1:]
	m.lock.Unlock()

	return true, m.deliver(ctx, []*Meta{next})
}

// Drain fires triggers (ignoring their times) until none remain or limit
// triggers have fired. Returns how many fired.
func (m *Memory) Drain(ctx context.Context, limit int) (int, error) {
	count := 0
	for count < limit {
		ok, err := m.FireNext(ctx)
		if err != nil {
			return count, err
		}
		if !ok {
			break
		}
		count++
	}
	return count, nil
}

func (m *Memory) deliver(ctx context.Context, in []*Meta) error {
	for _, meta := range in {
		m.lock.Lock()
		handler, ok := m.handlers[meta.Kind]
		m.lock.Unlock()
		if !ok {
			return fmt.Errorf("no handler registered for %s", meta.Kind)
		}

		hctx, cancel := context.WithTimeout(ctx, m.opts.TaskTimeout)
		err := handler(hctx, meta)
		cancel()
		if err != nil {
			m.log.Warn().Err(err).Str("job", meta.JobID).Str("kind", meta.Kind).Msg("trigger handler failed")
		}
	}
	return nil
}

func (m *Memory) Run() error {
	tick := time.NewTicker(m.opts.Poll)
	defer tick.Stop()
	for {
		select {
		case <-m.done:
			return nil
		case <-tick.C:
			_, err := m.Fire(context.Background(), m.now())
			if err != nil {
				m.log.Error().Err(err).Msg("firing triggers")
			}
		}
	}
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
