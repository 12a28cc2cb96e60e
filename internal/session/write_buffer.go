package session

import (
	"context"
	"sync"
	"time"

	"github.com/example/wordsrs/internal/metrics"
	"github.com/example/wordsrs/pkg/models"
)

// ReviewSink persists card states and review logs as one unit
type ReviewSink interface {
	SaveReviews(ctx context.Context, states []models.CardState, logs []models.ReviewLog) error
}

type bufferedState struct {
	state models.CardState
	seq   uint64
}

// WriteBuffer is a write-ahead buffer of review results. Only the latest
// state per word is kept while every review log is kept. Entries leave the
// buffer only after a flush confirmed they were written.
type WriteBuffer struct {
	mu     sync.Mutex
	seq    uint64
	order  []string
	states map[string]bufferedState
	logs   []models.ReviewLog

	// serializes flushes so two of them never remove the same entries
	flushMu sync.Mutex
}

// NewWriteBuffer creates an empty buffer
func NewWriteBuffer() *WriteBuffer {
	return &WriteBuffer{states: make(map[string]bufferedState)}
}

// Add buffers a rating result
func (b *WriteBuffer) Add(state models.CardState, log models.ReviewLog) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	if _, ok := b.states[state.WordID]; !ok {
		b.order = append(b.order, state.WordID)
	}
	b.states[state.WordID] = bufferedState{state: state, seq: b.seq}
	b.logs = append(b.logs, log)
	metrics.AddPendingReviews(1)
}

// Pending returns the number of buffered states and logs
func (b *WriteBuffer) Pending() (states, logs int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.states), len(b.logs)
}

// Empty reports whether nothing waits to be written
func (b *WriteBuffer) Empty() bool {
	states, logs := b.Pending()
	return states == 0 && logs == 0
}

// Flush writes everything buffered so far. On failure the buffer is left
// intact so a later flush writes the same entries again. Flushing an empty
// buffer is a no-op.
func (b *WriteBuffer) Flush(ctx context.Context, sink ReviewSink) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	upTo := b.seq
	states := make([]models.CardState, 0, len(b.order))
	for _, id := range b.order {
		states = append(states, b.states[id].state)
	}
	logs := make([]models.ReviewLog, len(b.logs))
	copy(logs, b.logs)
	b.mu.Unlock()

	if len(states) == 0 && len(logs) == 0 {
		return nil
	}

	start := time.Now()
	err := sink.SaveReviews(ctx, states, logs)
	metrics.RecordFlush(err, time.Since(start))
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order := b.order[:0]
	for _, id := range b.order {
		if b.states[id].seq <= upTo {
			delete(b.states, id)
			continue
		}
		order = append(order, id)
	}
	b.order = order
	b.logs = append([]models.ReviewLog(nil), b.logs[len(logs):]...)
	metrics.AddPendingReviews(-len(logs))

	return nil
}
