package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config sizes the queue between the Manager and the sink.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard the event instead of waiting when the
	// queue is full, so a slow sink never delays a login or logout.
	DropIfFull bool
}

// Dispatcher takes session events from the Manager and hands them to a sink
// on one relay goroutine, in the order they were queued. A nil Dispatcher
// is valid and ignores every call.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	clock func() time.Time

	// mu is held for reading while an event is queued and for writing while
	// the queue is closed, so no send can race the close.
	mu     sync.RWMutex
	closed bool
	queue  chan Event

	relayDone chan struct{}
	dropped   atomic.Uint64
}

// NewDispatcher starts the relay. A disabled cfg yields a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		cfg:       cfg,
		sink:      sink,
		clock:     time.Now,
		queue:     make(chan Event, max(cfg.BufferSize, 1)),
		relayDone: make(chan struct{}),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.relayDone)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event, stamping it when Timestamp is zero. Without DropIfFull
// it waits for room until ctx ends; an event given up on counts as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.clock()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and returns once every queued event has
// reached the sink. Emitters already waiting for room finish first.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.relayDone
}

// Dropped reports how many events never reached the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
