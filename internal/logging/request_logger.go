package logging

import (
	"context"
	"sync"
	"time"

	"credgate/internal/models"
	"credgate/internal/utils"
)

// Store persists a batch of request log entries.
type Store interface {
	InsertBatch(ctx context.Context, entries []models.RequestLog) error
}

// Config tunes the worker's buffering and flush cadence.
type Config struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:    10000,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	}
}

// Worker writes request audit entries to the store in batches off the
// request path. Enqueue never blocks: when the buffer is full the entry is
// dropped and counted, because admission latency outranks audit
// completeness.
type Worker struct {
	store   Store
	config  Config
	logger  *utils.Logger
	entries chan models.RequestLog
	dropped int64
	mu      sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func NewWorker(store Store, config Config) *Worker {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Worker{
		store:   store,
		config:  config,
		logger:  utils.NewLogger("requestlog"),
		entries: make(chan models.RequestLog, config.BufferSize),
		done:    make(chan struct{}),
	}
}

// Enqueue hands an entry to the worker. Returns false when the buffer was
// full and the entry was dropped.
func (w *Worker) Enqueue(entry models.RequestLog) bool {
	select {
	case w.entries <- entry:
		return true
	default:
		w.mu.Lock()
		w.dropped++
		n := w.dropped
		w.mu.Unlock()
		if n%1000 == 1 {
			w.logger.Warn("Request log buffer full, dropping entries", "dropped", n)
		}
		return false
	}
}

// Dropped reports how many entries have been discarded since start.
func (w *Worker) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Start runs the flush loop until Stop is called.
func (w *Worker) Start() {
	go w.run()
}

// Stop drains the buffer, flushes what remains and waits for the loop to
// exit.
func (w *Worker) Stop() {
	w.once.Do(func() {
		close(w.entries)
		<-w.done
	})
}

func (w *Worker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]models.RequestLog, 0, w.config.BatchSize)

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= w.config.BatchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// flush writes one batch. A failed batch is logged and dropped; the audit
// trail is best-effort and must never back-pressure admission.
func (w *Worker) flush(batch []models.RequestLog) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.store.InsertBatch(ctx, batch); err != nil {
		w.logger.Error("Failed to persist request log batch", "size", len(batch), "error", err)
	}
}
