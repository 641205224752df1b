package events

import (
	"context"
	"sync/atomic"

	"finsight/internal/log"
	"finsight/internal/store"
)

// Publisher sends one message. *Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// Bridge forwards store events to a Publisher. Subscribers run inside the
// store's notify path, so enqueueing never blocks: when the buffer is full
// the event is counted and dropped.
type Bridge struct {
	pub    Publisher
	queue  chan *Message
	logger *log.Logger

	dropped atomic.Int64
	sent    atomic.Int64
}

const defaultBuffer = 256

func NewBridge(pub Publisher, size int, logger *log.Logger) *Bridge {
	if size <= 0 {
		size = defaultBuffer
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Bridge{
		pub:    pub,
		queue:  make(chan *Message, size),
		logger: logger.WithComponent(log.ComponentEvents),
	}
}

// Attach subscribes the bridge to s and returns the unsubscribe func.
func (b *Bridge) Attach(s *store.Store) func() {
	return s.Subscribe(b.Enqueue)
}

// Enqueue queues ev for publishing without blocking.
func (b *Bridge) Enqueue(ev store.Event) {
	select {
	case b.queue <- NewMessage(ev):
	default:
		n := b.dropped.Add(1)
		b.logger.Warn("Event buffer full, dropping event",
			log.FieldOperation, string(ev.Op),
			log.FieldVersion, ev.Snapshot.Version,
			"dropped_total", n)
	}
}

// Run publishes queued messages until ctx is done. Publish failures are
// logged; the feed is a notification channel and the worker reconciles on
// its own schedule.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.queue:
			if err := b.pub.Publish(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.LogError(ctx, b.logger, "Failed to publish transaction event", err, log.OpPublish,
					log.LogFields{log.FieldVersion: msg.Version, log.FieldTransactionID: msg.TransactionID})
				continue
			}
			b.sent.Add(1)
		}
	}
}

// Stats reports how many messages were published and dropped.
func (b *Bridge) Stats() (sent, dropped int64) {
	return b.sent.Load(), b.dropped.Load()
}
