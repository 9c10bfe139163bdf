// Package outbox is the deferred delivery queue: locally produced payloads
// wait here, keyed by queue, until a sync trigger drains them to the remote
// collector. Items leave the queue only after confirmed delivery.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/sonyflake"
	"go.uber.org/zap"

	"github.com/lzyats/offagent/internal/metrics"
)

// ErrDrain aborts a drain at the first undeliverable item. Everything from
// that item on stays queued for the next trigger.
var ErrDrain = errors.New("outbox: drain failed")

// Item is the stored envelope around one deferred payload.
type Item struct {
	ID         uint64          `json:"id"`
	QueueKey   string          `json:"queue_key"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt int64           `json:"enqueued_at"` // unix seconds
}

// Store persists per-queue FIFO lists of encoded items.
type Store interface {
	// Push appends raw to the tail of the queue.
	Push(ctx context.Context, queueKey string, raw []byte) error
	// Peek returns the head without removing it; ok=false on empty.
	Peek(ctx context.Context, queueKey string) (raw []byte, ok bool, err error)
	// Confirm removes the head after successful delivery.
	Confirm(ctx context.Context, queueKey string) error
	// Len reports the queue depth.
	Len(ctx context.Context, queueKey string) (int64, error)
}

// Sender delivers one payload to the remote endpoint.
type Sender interface {
	Deliver(ctx context.Context, queueKey string, payload []byte) error
}

type Queue struct {
	store  Store
	sender Sender
	flake  *sonyflake.Sonyflake
	log    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // serializes drains per queueKey
}

func New(store Store, sender Sender, log *zap.Logger) *Queue {
	return &Queue{
		store:  store,
		sender: sender,
		flake:  sonyflake.NewSonyflake(sonyflake.Settings{}),
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (q *Queue) Enqueue(ctx context.Context, queueKey string, payload []byte) error {
	if queueKey == "" {
		return errors.New("outbox: empty queue key")
	}
	id := uint64(time.Now().UnixNano())
	if q.flake != nil {
		// Sonyflake refuses to initialize without a derivable machine ID;
		// the timestamp fallback keeps IDs usable there.
		if fid, err := q.flake.NextID(); err == nil {
			id = fid
		}
	}
	raw, err := json.Marshal(Item{
		ID:         id,
		QueueKey:   queueKey,
		Payload:    payload,
		EnqueuedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("outbox: encode: %w", err)
	}
	return q.store.Push(ctx, queueKey, raw)
}

// Drain attempts delivery of every queued item for queueKey in FIFO order.
// Each item is removed only after its delivery succeeds; the first failure
// aborts the drain with ErrDrain and preserves the rest of the queue.
// Draining an empty queue is a no-op. Different keys may drain concurrently;
// the same key never drains twice at once.
func (q *Queue) Drain(ctx context.Context, queueKey string) (delivered int, err error) {
	lock := q.keyLock(queueKey)
	lock.Lock()
	defer lock.Unlock()

	for {
		raw, ok, err := q.store.Peek(ctx, queueKey)
		if err != nil {
			return delivered, fmt.Errorf("%w: queue %q: peek: %v", ErrDrain, queueKey, err)
		}
		if !ok {
			return delivered, nil
		}

		payload := raw
		var item Item
		if err := json.Unmarshal(raw, &item); err == nil {
			payload = item.Payload
		} else {
			q.log.Warn("undecodable deferred item, delivering raw",
				zap.String("queue", queueKey), zap.Error(err))
		}

		if err := q.sender.Deliver(ctx, queueKey, payload); err != nil {
			metrics.SyncFailures.Inc()
			return delivered, fmt.Errorf("%w: queue %q: %v", ErrDrain, queueKey, err)
		}
		if err := q.store.Confirm(ctx, queueKey); err != nil {
			// The item was delivered but not removed; keeping it queued
			// means at-least-once on the next trigger.
			metrics.SyncFailures.Inc()
			return delivered, fmt.Errorf("%w: queue %q: confirm: %v", ErrDrain, queueKey, err)
		}
		delivered++
		metrics.SyncDelivered.Inc()
	}
}

func (q *Queue) Len(ctx context.Context, queueKey string) (int64, error) {
	return q.store.Len(ctx, queueKey)
}

func (q *Queue) keyLock(queueKey string) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.locks[queueKey]
	if !ok {
		l = &sync.Mutex{}
		q.locks[queueKey] = l
	}
	return l
}
