package process

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/queue"
)

const (
	maxRetryDelay    = time.Hour
	progressInterval = 5 * time.Minute
	ackTimeout       = 15 * time.Second
)

// ItemProcessor handles one queued trend.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, trendID int64) error
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	WorkerCount  int
	Lease        time.Duration
	RetryDelay   time.Duration
	MaxAttempts  int
	PollInterval time.Duration
}

// Worker consumes the trend queue with a pool of goroutines.
type Worker struct {
	processor ItemProcessor
	queue     queue.Queue
	opts      WorkerOptions

	wg        sync.WaitGroup
	processed atomic.Int64
	retried   atomic.Int64
	abandoned atomic.Int64

	activeWorkers atomic.Int32
}

// NewWorker creates a Worker.
func NewWorker(processor ItemProcessor, q queue.Queue, opts WorkerOptions) *Worker {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = runtime.NumCPU()
	}
	if opts.Lease <= 0 {
		opts.Lease = 10 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Worker{processor: processor, queue: q, opts: opts}
}

// Run processes queue items until ctx is cancelled, polling when the queue is empty.
func (w *Worker) Run(ctx context.Context) {
	progressTicker := time.NewTicker(progressInterval)
	defer progressTicker.Stop()

	go func() {
		for {
			select {
			case <-progressTicker.C:
				w.logProgress("Processing progress")
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info().Int("workers", w.opts.WorkerCount).Msg("Starting queue workers")
	w.start(ctx, true)
	w.wg.Wait()
	w.logProgress("Queue workers stopped")
}

// Drain processes every item that is currently visible and returns once the
// queue yields nothing more.
func (w *Worker) Drain(ctx context.Context) {
	log.Info().Int("workers", w.opts.WorkerCount).Msg("Draining queue")
	w.start(ctx, false)
	w.wg.Wait()
	w.logProgress("Queue drained")
}

func (w *Worker) start(ctx context.Context, poll bool) {
	for i := 0; i < w.opts.WorkerCount; i++ {
		w.wg.Add(1)
		go w.loop(ctx, poll)
	}
}

func (w *Worker) loop(ctx context.Context, poll bool) {
	defer w.wg.Done()
	w.activeWorkers.Add(1)
	defer w.activeWorkers.Add(-1)
	log.Debug().Msg("Queue worker started")

	for ctx.Err() == nil {
		d, err := w.queue.Claim(ctx, w.opts.Lease)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Msg("Failed to claim queue item")
			if !poll || !w.sleep(ctx) {
				break
			}
			continue
		}
		if d == nil {
			if !poll || !w.sleep(ctx) {
				break
			}
			continue
		}
		w.handle(ctx, d)
	}
	log.Debug().Msg("Queue worker exiting")
}

func (w *Worker) sleep(ctx context.Context) bool {
	t := time.NewTimer(w.opts.PollInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) handle(ctx context.Context, d *queue.Delivery) {
	itemCtx, cancel := context.WithTimeout(ctx, w.opts.Lease)
	err := w.processor.ProcessItem(itemCtx, d.TrendID)
	cancel()

	// Settle the delivery even when ctx was cancelled mid-item.
	settleCtx, cancelSettle := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancelSettle()

	if err == nil {
		w.processed.Add(1)
		if ackErr := w.queue.Ack(settleCtx, d); ackErr != nil {
			log.Error().Err(ackErr).Int64("trend_id", d.TrendID).Msg("Failed to acknowledge queue item")
		}
		return
	}

	if d.Attempts >= w.opts.MaxAttempts {
		w.abandoned.Add(1)
		log.Error().
			Err(err).
			Int64("trend_id", d.TrendID).
			Int("attempts", d.Attempts).
			Msg("Giving up on trend after too many attempts")
		if ackErr := w.queue.Ack(settleCtx, d); ackErr != nil {
			log.Error().Err(ackErr).Int64("trend_id", d.TrendID).Msg("Failed to drop queue item")
		}
		return
	}

	delay := RetryDelay(w.opts.RetryDelay, d.Attempts)
	w.retried.Add(1)
	log.Warn().
		Err(err).
		Int64("trend_id", d.TrendID).
		Int("attempts", d.Attempts).
		Dur("retry_in", delay).
		Bool("retryable", IsRetryable(err)).
		Msg("Trend processing failed, will retry")
	if relErr := w.queue.Release(settleCtx, d, delay); relErr != nil {
		log.Error().Err(relErr).Int64("trend_id", d.TrendID).Msg("Failed to release queue item")
	}
}

// RetryDelay grows linearly with the attempt number and is capped at one hour.
func RetryDelay(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base * time.Duration(attempts)
	if d > maxRetryDelay || d < 0 {
		return maxRetryDelay
	}
	return d
}

func (w *Worker) logProgress(msg string) {
	processed, retried, abandoned := w.Stats()
	log.Info().
		Int64("processed", processed).
		Int64("retried", retried).
		Int64("abandoned", abandoned).
		Int32("active_workers", w.activeWorkers.Load()).
		Msg(msg)
}

// Stats returns counters for handled queue items.
func (w *Worker) Stats() (processed, retried, abandoned int64) {
	processed = w.processed.Load()
	retried = w.retried.Load()
	abandoned = w.abandoned.Load()
	return
}
