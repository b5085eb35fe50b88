package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/twofactor/pkg/logger"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// AsyncOptions configures batching and buffering.
type AsyncOptions struct {
	BufferSize     int           // Max attempts queued before falling back to synchronous writes
	BatchSize      int           // Target attempts per batch
	BatchTimeout   time.Duration // Max time a partial batch waits
	StorageTimeout time.Duration // Per-batch storage timeout

	// Detached makes AppendAttempt return once the attempt is queued.
	// Batch errors are then only logged.
	Detached bool
	Logger   *slog.Logger
}

// AsyncWriter batches attempts in front of a BatchWriter.
// It implements twofactor.AttemptStore.
type AsyncWriter struct {
	batchWriter BatchWriter
	queue       chan pending
	done        chan struct{}
	mu          sync.RWMutex // guards closed against concurrent enqueues
	closed      bool
	wg          sync.WaitGroup
	options     AsyncOptions
	logger      *slog.Logger
}

type pending struct {
	attempt twofactor.Attempt
	result  chan error // nil when detached
}

// NewAsyncWriter starts the background batching worker.
// The returned function flushes pending attempts and stops the worker.
func NewAsyncWriter(bw BatchWriter, opts AsyncOptions) (*AsyncWriter, func(context.Context) error) {
	if bw == nil {
		panic("audit: batch writer cannot be nil")
	}

	if opts.BufferSize == 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout == 0 {
		opts.BatchTimeout = 50 * time.Millisecond
	}
	if opts.StorageTimeout == 0 {
		opts.StorageTimeout = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	aw := &AsyncWriter{
		batchWriter: bw,
		queue:       make(chan pending, opts.BufferSize),
		done:        make(chan struct{}),
		options:     opts,
		logger:      log.With(logger.Component("audit")),
	}

	aw.wg.Add(1)
	go aw.worker()

	return aw, aw.Close
}

// AppendAttempt queues an attempt. Unless the writer is detached it waits
// for the batch containing the attempt to be written.
func (aw *AsyncWriter) AppendAttempt(ctx context.Context, attempt twofactor.Attempt) error {
	p := pending{attempt: attempt}
	if !aw.options.Detached {
		p.result = make(chan error, 1)
	}

	aw.mu.RLock()
	if aw.closed {
		aw.mu.RUnlock()
		return ErrWriterClosed
	}
	select {
	case aw.queue <- p:
		aw.mu.RUnlock()
	default:
		aw.mu.RUnlock()
		// Buffer full: write synchronously so no attempt is dropped.
		return aw.batchWriter.AppendAttempts(ctx, []twofactor.Attempt{attempt})
	}

	if p.result == nil {
		return nil
	}
	select {
	case err := <-p.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (aw *AsyncWriter) worker() {
	defer aw.wg.Done()

	batch := make([]twofactor.Attempt, 0, aw.options.BatchSize)
	results := make([]chan error, 0, aw.options.BatchSize)

	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		// Detached from request contexts so a client timeout cannot abort the batch.
		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		defer cancel()

		err := aw.batchWriter.AppendAttempts(ctx, batch)
		if err != nil {
			aw.logger.Error("failed to write attempt batch",
				logger.BatchSize(len(batch)),
				logger.Error(err),
			)
		}

		for _, r := range results {
			if r != nil {
				r <- err
			}
		}

		clear(batch)
		clear(results)
		batch = batch[:0]
		results = results[:0]
	}

	add := func(p pending) {
		batch = append(batch, p.attempt)
		results = append(results, p.result)
	}

	for {
		select {
		case p := <-aw.queue:
			add(p)
			if len(batch) >= aw.options.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-aw.done:
			for {
				select {
				case p := <-aw.queue:
					add(p)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting attempts and flushes the queue.
// If ctx expires first, queued attempts may remain unwritten.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.mu.Lock()
	if !aw.closed {
		aw.closed = true
		close(aw.done)
	}
	aw.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		aw.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
