// internal/queue/queue.go
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/observability"
)

var (
	// ErrClosed is returned for jobs submitted after Close.
	ErrClosed = errors.New("queue closed")
	// ErrJobPanicked wraps a panic recovered from a job.
	ErrJobPanicked = errors.New("job panicked")
)

// Job is a unit of work. It runs with the context it was enqueued with.
type Job func(ctx context.Context) error

// Future resolves once its job has finished or has been skipped.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}

// Done is closed when the job has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the job's result. Only meaningful after Done is closed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx ends.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type task struct {
	ctx      context.Context
	job      Job
	future   *Future
	enqueued time.Time
}

// Queue runs jobs strictly one at a time in submission order. A failing or
// panicking job does not affect the jobs behind it.
type Queue struct {
	logger *zap.Logger
	tasks  chan task

	mu     sync.RWMutex
	closed bool

	wg    sync.WaitGroup
	depth atomic.Int64
}

// New starts a queue whose buffer holds up to depth waiting jobs. Enqueue
// blocks once the buffer is full.
func New(logger *zap.Logger, depth int) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if depth < 0 {
		depth = 0
	}
	q := &Queue{
		logger: logger.With(zap.String("component", "job_queue")),
		tasks:  make(chan task, depth),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Enqueue submits job and returns its Future. If ctx ends before the job is
// accepted, or the queue is closed, the Future resolves immediately with the error.
func (q *Queue) Enqueue(ctx context.Context, job Job) *Future {
	f := newFuture()

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		f.resolve(ErrClosed)
		return f
	}

	q.adjustDepth(1)
	select {
	case q.tasks <- task{ctx: ctx, job: job, future: f, enqueued: time.Now()}:
	case <-ctx.Done():
		q.adjustDepth(-1)
		f.resolve(ctx.Err())
	}
	return f
}

// Do enqueues job and waits for its result.
func (q *Queue) Do(ctx context.Context, job Job) error {
	return q.Enqueue(ctx, job).Wait(ctx)
}

// Len reports jobs waiting or running.
func (q *Queue) Len() int {
	return int(q.depth.Load())
}

// Close stops accepting jobs, lets queued jobs finish, and waits for the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Debug("Job queue closed.")
}

func (q *Queue) run() {
	defer q.wg.Done()
	for t := range q.tasks {
		t.future.resolve(q.execute(t))
		q.adjustDepth(-1)
	}
}

func (q *Queue) execute(t task) (err error) {
	// Callers that gave up while waiting do not get their job run.
	if ctxErr := t.ctx.Err(); ctxErr != nil {
		q.logger.Debug("Skipping job whose context has ended.", zap.Error(ctxErr))
		return ctxErr
	}

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Recovered from panic in job.",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()

	q.logger.Debug("Running job.", zap.Duration("waited", time.Since(t.enqueued)))
	return t.job(t.ctx)
}

func (q *Queue) adjustDepth(delta int64) {
	observability.QueueDepth.Set(float64(q.depth.Add(delta)))
}
