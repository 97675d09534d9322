// Package cancelbus broadcasts pipeline cancellation across executor
// processes that share a Redis deployment, so a CancelPipeline call
// received by one host reaches every other host that might be running the
// same runId. Within a single process, runstate.Store and
// dispatch.Dispatcher.Cancel already suffice; this package only matters
// once executors are horizontally scaled.
package cancelbus

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Bus publishes and subscribes to cancellation notices for one Redis
// channel. The zero value is not usable; construct via New.
type Bus struct {
	client  *redis.Client
	channel string

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

// New returns a Bus backed by client, broadcasting on channel.
func New(client *redis.Client, channel string) *Bus {
	return &Bus{client: client, channel: channel}
}

// Publish announces that runID has been cancelled.
func (b *Bus) Publish(ctx context.Context, runID string) error {
	return b.client.Publish(ctx, b.channel, runID).Err()
}

// Listen subscribes to the bus's channel and invokes onCancel with each
// runId received, until ctx is cancelled or Close is called. Intended to be
// run in its own goroutine for the lifetime of the executor process.
func (b *Bus) Listen(ctx context.Context, onCancel func(runID string)) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return
	}
	b.cancel = cancel
	b.mu.Unlock()

	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			onCancel(msg.Payload)
		}
	}
}

// Close stops any in-flight Listen call.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}
