package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const asyncTaskPrefix = "step:"

type Asynq struct {
	opts *Options
	log  zerolog.Logger

	// the asynq client & inspector
	ins *asynq.Inspector
	cli *asynq.Client

	// if register is called we're intended to start a server
	lock sync.Mutex
	mux  *asynq.ServeMux
	srv  *asynq.Server
	done chan struct{}
	once sync.Once
}

func NewAsynqQueue(opts *Options) (*Asynq, error) {
	opts.setDefaults()
	conn, err := redisConnOpt(opts)
	if err != nil {
		return nil, err
	}
	return &Asynq{
		opts: opts,
		log:  *opts.Logger,
		ins:  asynq.NewInspector(conn),
		cli:  asynq.NewClient(conn),
		done: make(chan struct{}),
	}, nil
}

func (a *Asynq) Close() error {
	a.once.Do(func() {
		a.lock.Lock()
		if a.srv != nil {
			a.srv.Shutdown()
		}
		a.lock.Unlock()
		a.cli.Close()
		a.ins.Close()
		close(a.done)
	})
	return nil
}

func (a *Asynq) Register(kind string, handler Handler) error {
	if a.mux == nil {
		err := a.buildServer()
		if err != nil {
			return err
		}
	}
	a.mux.HandleFunc(taskType(kind), func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		m, err := decodeMeta(id, t.Payload())
		if err != nil {
			// nothing we can do with it, don't let asynq retry garbage
			a.log.Error().Err(err).Str("task", id).Msg("dropping trigger")
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		err = handler(ctx, m)
		if err != nil {
			a.log.Warn().Err(err).Str("job", m.JobID).Str("kind", m.Kind).Msg("trigger handler failed")
		}
		// the handler re-arms itself, a retry from asynq would only duplicate it
		return nil
	})
	return nil
}

func (a *Asynq) Schedule(kind, jobID string, at time.Time) (string, error) {
	payload := encodeMeta(&Meta{Kind: kind, JobID: jobID, At: at})
	info, err := a.cli.Enqueue(
		asynq.NewTask(taskType(kind), payload),
		asynq.Queue(a.opts.Name),
		asynq.ProcessAt(at),
		asynq.Timeout(a.opts.TaskTimeout),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *Asynq) Backlog() (int, error) {
	info, err := a.ins.GetQueueInfo(a.opts.Name)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return info.Pending + info.Scheduled + info.Retry, nil
}

func (a *Asynq) Run() error {
	a.lock.Lock()
	if a.srv == nil {
		a.lock.Unlock()
		return fmt.Errorf("no handlers registered")
	}
	err := a.srv.Start(a.mux)
	a.lock.Unlock()
	if err != nil {
		return err
	}
	<-a.done
	return nil
}

func (a *Asynq) buildServer() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.mux != nil {
		// someone locked and set this first
		return nil
	}
	conn, err := redisConnOpt(a.opts)
	if err != nil {
		return err
	}
	a.srv = asynq.NewServer(
		conn,
		asynq.Config{
			Concurrency: a.opts.Concurrency,
			Queues:      map[string]int{a.opts.Name: 1},
			Logger:      &asynqLogger{log: a.log},
		},
	)
	a.mux = asynq.NewServeMux()
	return nil
}

func redisConnOpt(opts *Options) (asynq.RedisConnOpt, error) {
	conn, err := asynq.ParseRedisURI(opts.URL)
	if err != nil {
		return nil, err
	}
	if c, ok := conn.(asynq.RedisClientOpt); ok && opts.TLSConfig != nil {
		c.TLSConfig = opts.TLSConfig
		return c, nil
	}
	return conn, nil
}

func taskType(kind string) string {
	return fmt.Sprintf("%s%s", asyncTaskPrefix, kind)
}

// asynqLogger routes asynq's own logging through zerolog
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
