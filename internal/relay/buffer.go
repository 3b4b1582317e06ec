package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kojihq/relay/internal/metrics"
	"github.com/kojihq/relay/internal/model"
	"github.com/kojihq/relay/internal/store"
)

// flushTimeout bounds the bulk-insert call so a stalled store cannot pin a
// batch forever.
const flushTimeout = 10 * time.Second

// Buffer accumulates general-room messages and flushes them to the store in
// bulk, either when the size threshold is reached or on a fixed timer,
// whichever comes first. Persistence here is best-effort history: the
// messages were already delivered live, so a failed flush drops the batch.
type Buffer struct {
	log       zerolog.Logger
	store     store.MessageStore
	threshold int
	interval  time.Duration

	mu       sync.Mutex
	items    []model.ChatMessage
	inFlight bool
}

// NewBuffer creates a batch buffer flushing to st.
func NewBuffer(st store.MessageStore, threshold int, interval time.Duration, log zerolog.Logger) *Buffer {
	if threshold <= 0 {
		threshold = 5
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Buffer{
		log:       log.With().Str("component", "buffer").Logger(),
		store:     st,
		threshold: threshold,
		interval:  interval,
	}
}

// Enqueue appends a message and flushes synchronously once the threshold is
// reached.
func (b *Buffer) Enqueue(msg model.ChatMessage) {
	b.mu.Lock()
	b.items = append(b.items, msg)
	full := len(b.items) >= b.threshold
	b.mu.Unlock()

	metrics.MessagesBuffered.Inc()

	if full {
		b.Flush()
	}
}

// Run flushes on a fixed timer until ctx is canceled, then performs a final
// flush so shutdown does not strand buffered messages.
func (b *Buffer) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// Flush drains the current buffer contents by snapshot swap and performs one
// bulk insert outside the lock. Flushes are single-flight: a trigger that
// arrives while an insert is in progress is a no-op, and messages enqueued
// during the insert stay buffered for the next flush.
func (b *Buffer) Flush() {
	b.mu.Lock()
	if b.inFlight || len(b.items) == 0 {
		b.mu.Unlock()
		return
	}
	b.inFlight = true
	batch := b.items
	b.items = nil
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := b.store.InsertMessages(ctx, batch); err != nil {
		// Best-effort history: log and drop, no retry.
		b.log.Error().Err(err).Int("count", len(batch)).Msg("failed to persist batch; dropping")
		metrics.BatchesDropped.Inc()
	} else {
		b.log.Debug().Int("count", len(batch)).Msg("batch persisted")
		metrics.BatchesFlushed.Inc()
	}

	b.mu.Lock()
	b.inFlight = false
	b.mu.Unlock()
}

// Len returns the number of messages currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
