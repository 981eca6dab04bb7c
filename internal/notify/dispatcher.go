package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher delivers one event to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Dispatcher buffers events in a channel and publishes them from a single worker.
type Dispatcher struct {
	publisher Publisher
	timeout   time.Duration
	log       zerolog.Logger

	events chan Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewDispatcher(publisher Publisher, bufferSize int, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Dispatcher{
		publisher: publisher,
		timeout:   timeout,
		log:       log.With().Str("component", "notify").Logger(),
		events:    make(chan Event, bufferSize),
		done:      make(chan struct{}),
	}
}

// Start launches the worker. Call it once.
func (d *Dispatcher) Start() {
	go d.run()
}

// Emit queues an event without blocking. When the buffer is full or the dispatcher
// is closed the event is dropped with a warning.
func (d *Dispatcher) Emit(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn().Str("type", string(event.Type)).Str("pickup_id", event.PickupID.String()).Msg("dispatcher closed, event dropped")
		return
	}
	select {
	case d.events <- event:
	default:
		d.log.Warn().Str("type", string(event.Type)).Str("pickup_id", event.PickupID.String()).Msg("event buffer full, event dropped")
	}
}

// Close stops accepting events, drains the buffer and closes the publisher.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.publisher.Close()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.events {
		d.publish(event)
	}
}

func (d *Dispatcher) publish(event Event) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.log.Error().
			Err(err).
			Str("type", string(event.Type)).
			Str("pickup_id", event.PickupID.String()).
			Msg("publish event failed")
		return
	}
	d.log.Debug().Str("type", string(event.Type)).Str("pickup_id", event.PickupID.String()).Msg("event published")
}
