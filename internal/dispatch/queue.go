// Package dispatch runs background jobs one at a time, in the order they were
// submitted, off the caller's goroutine.
package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/medical-assistant/pkg/logger"
	"github.com/capitalize-ai/medical-assistant/pkg/metrics"
)

// ErrFull is returned by Submit when the queue buffer is exhausted.
var ErrFull = errors.New("dispatch queue is full")

// DefaultDrainTimeout bounds how long Run keeps executing queued jobs after
// its context is done.
const DefaultDrainTimeout = 10 * time.Second

const dropLogEvery = 100

// Job is a unit of background work.
type Job func(ctx context.Context)

// Queue is a bounded FIFO drained by a single goroutine (Run).
type Queue struct {
	name         string
	jobs         chan Job
	drainTimeout time.Duration
	dropped      atomic.Uint64
	logger       *logger.Logger
}

// New creates a queue buffering up to size jobs.
func New(name string, size int, log *logger.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		name:         name,
		jobs:         make(chan Job, size),
		drainTimeout: DefaultDrainTimeout,
		logger:       log.With(zap.String("queue", name)),
	}
}

// Submit enqueues job without blocking. When the buffer is full the job is
// dropped and ErrFull returned.
func (q *Queue) Submit(job Job) error {
	select {
	case q.jobs <- job:
		metrics.DispatchQueueDepth.WithLabelValues(q.name).Inc()
		return nil
	default:
	}

	metrics.DispatchDroppedTotal.WithLabelValues(q.name).Inc()
	if n := q.dropped.Add(1); n%dropLogEvery == 1 {
		q.logger.Warn("dispatch queue full, dropping job", zap.Uint64("dropped", n))
	}
	return ErrFull
}

// Len returns the number of jobs waiting to run.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Run executes jobs until ctx is done, then keeps executing the jobs already
// queued for at most the drain timeout. It always returns nil so it can sit
// in an errgroup next to the server.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case job := <-q.jobs:
			q.exec(ctx, job)
		case <-ctx.Done():
			q.drain()
			return nil
		}
	}
}

func (q *Queue) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), q.drainTimeout)
	defer cancel()

	for {
		if ctx.Err() != nil {
			if left := len(q.jobs); left > 0 {
				q.logger.Warn("dispatch queue drain timed out", zap.Int("abandoned", left))
			}
			return
		}
		select {
		case job := <-q.jobs:
			q.exec(ctx, job)
		default:
			return
		}
	}
}

func (q *Queue) exec(ctx context.Context, job Job) {
	metrics.DispatchQueueDepth.WithLabelValues(q.name).Dec()
	defer func() {
		if p := recover(); p != nil {
			q.logger.Error("dispatch job panicked", zap.Any("panic", p))
		}
	}()
	job(ctx)
}
