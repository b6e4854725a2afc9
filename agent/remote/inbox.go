package remote

import (
	"context"
	"sync"
)

// inbox queues user input for one session. push never blocks the socket read loop,
// which must stay free to deliver rpc responses; a single worker drains it in
// arrival order.
type inbox struct {
	mu    sync.Mutex
	items []string
	wake  chan struct{}
}

func newInbox() *inbox {
	return &inbox{wake: make(chan struct{}, 1)}
}

func (b *inbox) push(text string) {
	b.mu.Lock()
	b.items = append(b.items, text)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *inbox) pop() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return "", false
	}
	text := b.items[0]
	b.items[0] = ""
	b.items = b.items[1:]
	return text, true
}

// drain hands queued input to fn one at a time until ctx is done.
func (b *inbox) drain(ctx context.Context, fn func(text string)) {
	for {
		for {
			if ctx.Err() != nil {
				return
			}
			text, ok := b.pop()
			if !ok {
				break
			}
			fn(text)
		}
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}
	}
}
