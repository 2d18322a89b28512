// Package command provides the thread-safe mailbox carrying debugger
// commands from control threads to the execution thread.
package command

import (
	"errors"
	"sync"
)

// ErrQueueDisposed is returned when putting to or getting from a disposed
// queue.
var ErrQueueDisposed = errors.New("command queue is disposed")

// ClientData is an opaque payload a client attaches to a command. Ownership
// transfers to the queue on enqueue: Dispose is called exactly once, either
// after the command is processed or when an undrained queue is disposed.
type ClientData interface {
	Dispose()
}

// Message is one queued command: the serialized request plus optional client
// data.
type Message struct {
	payload []byte
	data    ClientData

	mu       sync.Mutex
	disposed bool
}

// NewMessage creates a message, taking ownership of data.
func NewMessage(payload []byte, data ClientData) *Message {
	return &Message{payload: payload, data: data}
}

// Payload returns the serialized request bytes.
func (m *Message) Payload() []byte { return m.payload }

// ClientData returns the attached client data, nil once disposed.
func (m *Message) ClientData() ClientData {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return nil
	}
	return m.data
}

// Dispose releases the client data. Safe to call more than once; the data's
// Dispose runs exactly once.
func (m *Message) Dispose() {
	m.mu.Lock()
	data := m.data
	disposed := m.disposed
	m.disposed = true
	m.data = nil
	m.mu.Unlock()

	if !disposed && data != nil {
		data.Dispose()
	}
}

// Queue is a growable FIFO of messages. Any thread may Put; the execution
// thread drains it at safe points. Disposing the queue disposes every still
// queued message.
type Queue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	ready    chan struct{}
	items    []*Message
	disposed bool
}

// NewQueue creates a queue with an initial capacity hint.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{
		items: make([]*Message, 0, capacity),
		ready: make(chan struct{}, 1),
	}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Ready returns a channel that receives a tick when a message arrives,
// allowing select-based waits alongside cancellation.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Put appends a message. If the queue is already disposed the message's
// client data is released immediately and ErrQueueDisposed is returned.
func (q *Queue) Put(m *Message) error {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		m.Dispose()
		return ErrQueueDisposed
	}
	q.items = append(q.items, m)
	q.mu.Unlock()
	q.nonEmpty.Signal()
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Get removes and returns the oldest message, blocking until one is
// available or the queue is disposed. The caller takes ownership and must
// Dispose the message after processing it.
func (q *Queue) Get() (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.disposed {
			return nil, ErrQueueDisposed
		}
		q.nonEmpty.Wait()
	}
	return q.popLocked(), nil
}

// TryGet removes and returns the oldest message without blocking.
func (q *Queue) TryGet() (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return q.popLocked(), true
}

func (q *Queue) popLocked() *Message {
	m := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return m
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue holds no messages.
func (q *Queue) IsEmpty() bool { return q.Len() == 0 }

// Dispose drains the queue, releasing every still queued client payload
// exactly once, and wakes blocked getters. Further Puts fail.
func (q *Queue) Dispose() {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	q.disposed = true
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, m := range items {
		m.Dispose()
	}
	q.nonEmpty.Broadcast()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
