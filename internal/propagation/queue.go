// Package propagation pushes optimistic local mutations to the remote directory
// in the background.
package propagation

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netpulse/client/internal/logging"
)

// Job performs one remote write.
type Job func(ctx context.Context) error

// Submitter accepts best-effort background writes. Jobs sharing a key run
// one at a time in submission order; name labels logs and spans.
type Submitter interface {
	Submit(name, key string, job Job)
}

// Config controls the concurrency characteristics of the queue. QueueSize is
// split evenly across the workers.
type Config struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// Queue runs remote writes on a fixed worker pool. Each key is pinned to one
// worker so writes to the same record land in order. Failed jobs are logged
// and dropped; the next scheduled refresh reconciles whatever did not reach
// the directory.
type Queue struct {
	logger     *slog.Logger
	jobTimeout time.Duration

	lanes  []chan task
	next   atomic.Uint32
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type task struct {
	name string
	key  string
	run  Job
}

// NewQueue starts the worker pool.
func NewQueue(cfg Config, logger *slog.Logger) *Queue {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Second
	}
	perLane := cfg.QueueSize / cfg.Workers
	if perLane < 1 {
		perLane = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		logger:     logging.Component(logger, "propagation"),
		jobTimeout: cfg.JobTimeout,
		lanes:      make([]chan task, cfg.Workers),
		ctx:        ctx,
		cancel:     cancel,
	}

	q.wg.Add(cfg.Workers)
	for i := range q.lanes {
		q.lanes[i] = make(chan task, perLane)
		go q.worker(q.lanes[i])
	}
	return q
}

// lane picks the worker for key. Unkeyed jobs are spread round robin.
func (q *Queue) lane(key string) chan task {
	if key == "" {
		return q.lanes[int(q.next.Add(1))%len(q.lanes)]
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return q.lanes[int(h.Sum32()%uint32(len(q.lanes)))]
}

// Submit schedules job without blocking the caller. When the worker owning
// key is backed up or the queue is closed the job is dropped and logged.
func (q *Queue) Submit(name, key string, job Job) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("propagation dropped after shutdown", "job", name, "key", key)
		return
	}
	select {
	case q.lane(key) <- task{name: name, key: key, run: job}:
	default:
		q.logger.Warn("propagation queue full, job dropped", "job", name, "key", key)
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When ctx
// expires first, in-flight jobs are cancelled.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, lane := range q.lanes {
			close(lane)
		}
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker(lane <-chan task) {
	defer q.wg.Done()
	for t := range lane {
		q.handle(t)
	}
}

func (q *Queue) handle(t task) {
	if q.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(q.ctx, q.jobTimeout)
	defer cancel()

	ctx = logging.WithLogger(ctx, q.logger)
	ctx, span := logging.StartSpan(ctx, "propagate."+t.name)

	defer func() {
		if rec := recover(); rec != nil {
			span.Logger().Error("propagation job panicked", "panic", rec, "key", t.key)
		}
	}()

	span.End(t.run(ctx))
}

var _ Submitter = (*Queue)(nil)

// Inline runs each job synchronously on the caller's goroutine. The operator
// CLI uses it so writes complete before the process exits.
type Inline struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

// Submit runs job immediately and logs its outcome.
func (i Inline) Submit(name, _ string, job Job) {
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ctx = logging.WithLogger(ctx, logging.Component(i.Logger, "propagation"))
	ctx, span := logging.StartSpan(ctx, "propagate."+name)
	span.End(job(ctx))
}

var _ Submitter = Inline{}
