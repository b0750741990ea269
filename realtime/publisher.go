package realtime

import (
	"context"
	"sync"

	viamutils "go.viam.com/utils"
)

// Publisher hands values from the control cycle to a sink running on a
// background goroutine. It holds at most one pending value: TryPublish
// never blocks, so a slow sink costs the cycle nothing beyond a failed
// channel send.
type Publisher[T any] struct {
	slot   chan T
	cancel func()

	activeBackgroundWorkers sync.WaitGroup
}

// NewPublisher starts the drain worker for sink and returns the publisher.
func NewPublisher[T any](sink func(T)) *Publisher[T] {
	cancelCtx, cancel := context.WithCancel(context.Background())
	p := &Publisher[T]{
		slot:   make(chan T, 1),
		cancel: cancel,
	}
	p.activeBackgroundWorkers.Add(1)
	viamutils.ManagedGo(func() {
		p.drain(cancelCtx, sink)
	}, p.activeBackgroundWorkers.Done)
	return p
}

func (p *Publisher[T]) drain(ctx context.Context, sink func(T)) {
	for {
		select {
		case <-ctx.Done():
			// Deliver a value that raced with cancellation so nothing
			// accepted by TryPublish is dropped on Close.
			select {
			case v := <-p.slot:
				sink(v)
			default:
			}
			return
		case v := <-p.slot:
			sink(v)
		}
	}
}

// TryPublish offers v to the sink without blocking. It reports false when
// the slot is still occupied by an undelivered value.
func (p *Publisher[T]) TryPublish(v T) bool {
	select {
	case p.slot <- v:
		return true
	default:
		return false
	}
}

// Close stops the drain worker after it has delivered any queued value.
func (p *Publisher[T]) Close() {
	p.cancel()
	p.activeBackgroundWorkers.Wait()
}
