package command

import (
	"testing"
	"time"
)

type countingData struct {
	disposed *int
}

func (d *countingData) Dispose() { *d.disposed++ }

func TestMessageDisposesClientDataExactlyOnce(t *testing.T) {
	disposed := 0
	msg := NewMessage([]byte(`{}`), &countingData{disposed: &disposed})

	if msg.ClientData() == nil {
		t.Fatal("ClientData nil before dispose")
	}
	msg.Dispose()
	msg.Dispose()
	if disposed != 1 {
		t.Fatalf("disposed %d times, want 1", disposed)
	}
	if msg.ClientData() != nil {
		t.Fatal("ClientData still reachable after dispose")
	}
}

func TestQueueDisposalAccounting(t *testing.T) {
	disposed := 0
	q := NewQueue(4)

	put := func(n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			if err := q.Put(NewMessage([]byte(`{}`), &countingData{disposed: &disposed})); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
	}

	put(3)
	msg, ok := q.TryGet()
	if !ok {
		t.Fatal("TryGet on non-empty queue")
	}
	msg.Dispose()
	if disposed != 1 {
		t.Fatalf("after first drain: disposed = %d, want 1", disposed)
	}

	put(5)
	msg, _ = q.TryGet()
	msg.Dispose()
	if disposed != 2 {
		t.Fatalf("after second drain: disposed = %d, want 2", disposed)
	}

	remaining := q.Len()
	q.Dispose()
	if want := 2 + remaining; disposed != want {
		t.Fatalf("after queue dispose: disposed = %d, want %d", disposed, want)
	}
}

func TestPutAfterDisposeReleasesPayload(t *testing.T) {
	disposed := 0
	q := NewQueue(1)
	q.Dispose()

	err := q.Put(NewMessage(nil, &countingData{disposed: &disposed}))
	if err != ErrQueueDisposed {
		t.Fatalf("Put = %v, want ErrQueueDisposed", err)
	}
	if disposed != 1 {
		t.Fatalf("payload disposed %d times, want 1", disposed)
	}
}

func TestGetBlocksUntilPut(t *testing.T) {
	q := NewQueue(1)
	done := make(chan []byte, 1)
	go func() {
		msg, _ := q.Get()
		done <- msg.Payload()
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.Put(NewMessage([]byte("wake"), nil)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	select {
	case payload := <-done:
		if string(payload) != "wake" {
			t.Fatalf("payload = %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not wake")
	}
}

func TestTryGetPreservesFIFOOrder(t *testing.T) {
	q := NewQueue(2)
	for _, p := range []string{"a", "b", "c"} {
		q.Put(NewMessage([]byte(p), nil))
	}
	for _, want := range []string{"a", "b", "c"} {
		msg, ok := q.TryGet()
		if !ok || string(msg.Payload()) != want {
			t.Fatalf("TryGet = %v, %v, want %q", msg, ok, want)
		}
	}
	if _, ok := q.TryGet(); ok {
		t.Fatal("TryGet on empty queue returned a message")
	}
	if !q.IsEmpty() {
		t.Fatal("queue not empty")
	}
}

func TestReadySignalsArrival(t *testing.T) {
	q := NewQueue(1)
	q.Put(NewMessage([]byte("x"), nil))
	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready did not fire after Put")
	}
}
