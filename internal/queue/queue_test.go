package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/favmirror/internal/domain"
)

func TestQueue_FIFO(t *testing.T) {
	q := New()
	ctx := context.Background()

	if err := q.Push(3, 1, 2); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}

	for _, want := range []domain.ExternalID{3, 1, 2} {
		got, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if got != want {
			t.Errorf("Pop() = %d, want %d", got, want)
		}
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New()
	got := make(chan domain.ExternalID, 1)

	go func() {
		id, err := q.Pop(context.Background())
		if err == nil {
			got <- id
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop should block on an empty queue")
	case <-time.After(50 * time.Millisecond):
	}

	if err := q.Push(42); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	select {
	case id := <-got:
		if id != 42 {
			t.Errorf("Pop() = %d, want 42", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueue_PopCancelled(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not observe cancellation")
	}
}

func TestQueue_PopCancelledWithItems(t *testing.T) {
	q := New()
	_ = q.Push(1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Pop(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, cancelled Pop must not consume items", q.Len())
	}
}

func TestQueue_CloseDrains(t *testing.T) {
	q := New()
	ctx := context.Background()

	_ = q.Push(7)
	q.Close()

	if err := q.Push(8); !errors.Is(err, domain.ErrQueueClosed) {
		t.Errorf("Push after Close: expected ErrQueueClosed, got %v", err)
	}

	id, err := q.Pop(ctx)
	if err != nil || id != 7 {
		t.Fatalf("Pop() = %d, %v; want 7, nil", id, err)
	}

	if _, err := q.Pop(ctx); !errors.Is(err, domain.ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed on drained queue, got %v", err)
	}
}

func TestQueue_CloseWakesWaiters(t *testing.T) {
	q := New()
	done := make(chan error, 1)

	go func() {
		_, err := q.Pop(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()
	q.Close() // idempotent

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrQueueClosed) {
			t.Errorf("expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake waiter")
	}
}

func TestQueue_ConcurrentConsumersReceiveEachIDOnce(t *testing.T) {
	q := New()
	const total = 500
	const consumers = 8

	var (
		mu   sync.Mutex
		seen = make(map[domain.ExternalID]int)
		wg   sync.WaitGroup
	)

	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, err := q.Pop(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := 0; p < 4; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < total/4; i++ {
				_ = q.Push(domain.ExternalID(p*total + i + 1))
			}
		}(p)
	}
	pwg.Wait()
	q.Close()
	wg.Wait()

	if len(seen) != total {
		t.Errorf("received %d distinct ids, want %d", len(seen), total)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %d received %d times", id, n)
		}
	}
}
