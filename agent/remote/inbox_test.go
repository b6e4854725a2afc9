package remote

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInboxDrainsInArrivalOrder(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	box := newInbox()
	gate := make(chan struct{})
	done := make(chan struct{})

	var (
		mu  sync.Mutex
		got []string
	)
	go box.drain(ctx, func(text string) {
		if text == "m0" {
			<-gate
		}
		mu.Lock()
		got = append(got, text)
		n := len(got)
		mu.Unlock()
		if n == 21 {
			close(done)
		}
	})

	box.push("m0")
	for i := 1; i <= 20; i++ {
		box.push(fmt.Sprintf("m%d", i))
	}
	close(gate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("inbox never drained")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, text := range got {
		if want := fmt.Sprintf("m%d", i); text != want {
			t.Fatalf("input %d = %q, want %q (order %v)", i, text, want, got)
		}
	}
}

func TestInboxStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	box := newInbox()
	stopped := make(chan struct{})
	go func() {
		box.drain(ctx, func(string) {})
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not return after cancel")
	}
}
