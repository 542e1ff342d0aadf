package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/codebuildervaibhav/transly/internal/metrics"
)

var (
	// ErrQueueFull is returned by Enqueue when max depth is reached
	ErrQueueFull = errors.New("transcription queue is full")
	// ErrStopped is returned by Enqueue after Stop
	ErrStopped = errors.New("transcription queue is stopped")
)

// Processor runs the pipeline for a single job
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, job Job) error

// Process calls f(ctx, job)
func (f ProcessorFunc) Process(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Options tunes the queue
type Options struct {
	// MaxDepth bounds the number of waiting jobs; 0 means unbounded
	MaxDepth int
	// DrainDelay is the pause between two consecutive jobs
	DrainDelay time.Duration
}

// WorkerPool is a single-flight FIFO: one worker drains jobs in enqueue order
type WorkerPool struct {
	processor Processor
	opts      Options
	logger    *slog.Logger

	mu      sync.Mutex
	pending []Job
	busy    bool
	started bool
	stopped bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// NewWorkerPool creates a new queue around processor
func NewWorkerPool(processor Processor, opts Options, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		processor: processor,
		opts:      opts,
		logger:    logger.With("component", "queue"),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the drain loop
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	if wp.started {
		wp.mu.Unlock()
		return
	}
	wp.started = true
	wp.mu.Unlock()

	wp.logger.Info("starting transcription queue",
		"max_depth", wp.opts.MaxDepth, "drain_delay", wp.opts.DrainDelay)
	go wp.worker(ctx)
}

// EnqueueJob appends job to the queue and wakes the worker
func (wp *WorkerPool) EnqueueJob(job Job) error {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return ErrStopped
	}
	if wp.opts.MaxDepth > 0 && len(wp.pending) >= wp.opts.MaxDepth {
		wp.mu.Unlock()
		return ErrQueueFull
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	wp.pending = append(wp.pending, job)
	size := len(wp.pending)
	wp.mu.Unlock()

	metrics.QueueDepth.Set(float64(size))
	wp.logger.Info("job enqueued", "video_id", job.VideoID, "queue_size", size)

	select {
	case wp.wake <- struct{}{}:
	default:
	}
	return nil
}

// Size returns the number of jobs waiting
func (wp *WorkerPool) Size() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return len(wp.pending)
}

// IsProcessing reports whether a job is executing
func (wp *WorkerPool) IsProcessing() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.busy
}

// Stop refuses new jobs, lets the running job settle and discards the rest.
// It blocks until the worker exits.
func (wp *WorkerPool) Stop() {
	var started bool
	wp.once.Do(func() {
		wp.mu.Lock()
		started = wp.started
		wp.stopped = true
		dropped := len(wp.pending)
		wp.pending = nil
		wp.mu.Unlock()
		if dropped > 0 {
			wp.logger.Warn("discarding queued jobs on shutdown", "count", dropped)
		}
		close(wp.quit)
	})
	if started {
		<-wp.done
	}
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer close(wp.done)

	for {
		job, ok := wp.next()
		if !ok {
			select {
			case <-wp.wake:
				continue
			case <-wp.quit:
				return
			case <-ctx.Done():
				return
			}
		}

		wp.run(ctx, job)

		wp.mu.Lock()
		wp.busy = false
		more := len(wp.pending) > 0
		wp.mu.Unlock()
		metrics.SetBusy(false)

		if more && wp.opts.DrainDelay > 0 {
			select {
			case <-time.After(wp.opts.DrainDelay):
			case <-wp.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// next pops the head of the queue and marks the worker busy
func (wp *WorkerPool) next() (Job, bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if len(wp.pending) == 0 {
		return Job{}, false
	}
	job := wp.pending[0]
	wp.pending[0] = Job{}
	wp.pending = wp.pending[1:]
	wp.busy = true
	metrics.QueueDepth.Set(float64(len(wp.pending)))
	metrics.SetBusy(true)
	return job, true
}

// run processes a job; a failure or panic never escapes the worker
func (wp *WorkerPool) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("panic processing job",
				"video_id", job.VideoID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	wp.logger.Info("processing job", "video_id", job.VideoID, "remaining", wp.Size(),
		"waited", time.Since(job.EnqueuedAt).Round(time.Millisecond))

	if err := wp.processor.Process(ctx, job); err != nil {
		wp.logger.Error("job failed", "video_id", job.VideoID, "err", err)
	}
}
