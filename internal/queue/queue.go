// Package queue serializes outbound work (RPC reads, payload fetches, log
// processing) through one bounded worker pool with a global rate ceiling.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hypercertsIndexer/internal/metrics"
)

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("queue is closed")

// Config configures the request queue.
type Config struct {
	Concurrency   int
	QueueSize     int
	RatePerSecond float64
	Burst         int
}

// Func is a unit of queued work.
type Func func(ctx context.Context) (interface{}, error)

type result struct {
	value interface{}
	err   error
}

// Queue runs submitted functions in FIFO order with bounded concurrency.
// Submission blocks while the buffer is full. Running tasks are never
// cancelled by the queue; they observe the caller's context.
type Queue struct {
	pool      pond.ResultPool[*result]
	limiter   *rate.Limiter
	logger    *zap.Logger
	closed    atomic.Bool
	closeOnce sync.Once
}

// New creates a queue.
func New(cfg Config, logger *zap.Logger) (*Queue, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("queue concurrency must be positive")
	}
	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("queue size must not be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	opts := []pond.Option{}
	if cfg.QueueSize > 0 {
		opts = append(opts, pond.WithQueueSize(cfg.QueueSize))
	}

	logger.Info("request queue initialized",
		zap.Int("concurrency", cfg.Concurrency),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Float64("rps", cfg.RatePerSecond),
		zap.Int("burst", burst),
	)

	return &Queue{
		pool:    pond.NewResultPool[*result](cfg.Concurrency, opts...),
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// Submit enqueues fn and blocks until it completes. fn must not submit
// further work to the same queue.
func (q *Queue) Submit(ctx context.Context, fn Func) (interface{}, error) {
	if q.closed.Load() {
		return nil, ErrClosed
	}

	task := q.pool.Submit(func() *result {
		if err := q.limiter.Wait(ctx); err != nil {
			return &result{err: err}
		}
		value, err := fn(ctx)
		return &result{value: value, err: err}
	})
	metrics.QueueWaiting.Set(float64(q.pool.WaitingTasks()))

	res, err := task.Wait()
	if err != nil {
		if errors.Is(err, pond.ErrPoolStopped) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return res.value, res.err
}

// Close stops accepting work and waits for queued tasks to finish.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		q.pool.StopAndWait()
		q.logger.Info("request queue drained")
	})
	return nil
}

// Do submits fn to q and returns its typed result. A nil queue runs fn
// directly.
func Do[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	if q == nil {
		return fn(ctx)
	}
	var zero T
	value, err := q.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}
	return value.(T), nil
}
