package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dealflow/internal/models"
)

// PartitionAll subscribes to every partition.
const PartitionAll = "*"

// Log is the persisted event sequence the hub replays from.
type Log interface {
	ListChangeEventsAfter(ctx context.Context, partition string, afterSeq uint64, limit int) ([]models.ChangeEvent, error)
}

// Hub fans committed events out to subscribers keyed by partition.
// Delivery is non-blocking: a subscriber that cannot keep up loses live
// events and is expected to re-converge through Replay.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[uint64]chan Event
	next uint64

	log     Log
	logger  *zap.Logger
	buf     int
	dropped uint64
}

func NewHub(log Log, logger *zap.Logger, subscriberBuf int) *Hub {
	if subscriberBuf <= 0 {
		subscriberBuf = 64
	}
	return &Hub{
		subs:   map[string]map[uint64]chan Event{},
		log:    log,
		logger: logger,
		buf:    subscriberBuf,
	}
}

// Subscribe registers a live subscriber for one partition (or
// PartitionAll). The returned cancel func must be called to release the
// channel.
func (h *Hub) Subscribe(partition string) (<-chan Event, func()) {
	ch := make(chan Event, h.buf)
	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[partition] == nil {
		h.subs[partition] = map[uint64]chan Event{}
	}
	h.subs[partition][id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if m := h.subs[partition]; m != nil {
			delete(m, id)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans out events already committed to the log. Call only after
// the owning transaction has committed.
func (h *Hub) Publish(events ...Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ev := range events {
		h.send(h.subs[ev.Partition], ev)
		h.send(h.subs[PartitionAll], ev)
	}
}

func (h *Hub) send(subs map[uint64]chan Event, ev Event) {
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Never block the publisher on a slow consumer.
			atomic.AddUint64(&h.dropped, 1)
		}
	}
}

// Replay returns committed events after afterSeq for a partition, in
// sequence order. Pass PartitionAll (or "") for the full log.
func (h *Hub) Replay(ctx context.Context, partition string, afterSeq uint64, limit int) ([]Event, error) {
	if h.log == nil {
		return nil, nil
	}
	p := partition
	if p == PartitionAll {
		p = ""
	}
	rows, err := h.log.ListChangeEventsAfter(ctx, p, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromModel(r))
	}
	return out, nil
}

// Run logs drop counters until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := atomic.LoadUint64(&h.dropped); n > 0 && h.logger != nil {
				h.logger.Info("feed hub stats", zap.Uint64("dropped_fanout", n))
			}
		}
	}
}
