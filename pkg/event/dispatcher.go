package event

import (
	"errors"
	"log"
	"sync"
)

// ErrNoBreakID is returned when a Break or Exception event is dispatched
// without an active break id. That is a caller error: the interceptor must
// allocate a break id before dispatching.
var ErrNoBreakID = errors.New("dispatch without active break id")

// Listener receives debug events synchronously on the execution thread.
type Listener func(e *Event)

// Message is one outbound protocol message: the JSON body plus the client
// data of the command it responds to, if any.
type Message struct {
	Body       []byte
	ClientData interface{}
}

// MessageHandler receives outbound protocol messages (responses and events)
// on the execution thread.
type MessageHandler func(m *Message)

// Dispatcher holds at most one event listener and at most one message
// handler. Setting a new one atomically replaces the old. Dispatch runs the
// listener synchronously on the calling (execution) thread; the listener is
// never invoked concurrently with itself, and it may clear or replace the
// registration from inside the callback.
type Dispatcher struct {
	debug bool

	mu       sync.Mutex
	listener Listener
	handler  MessageHandler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(debug bool) *Dispatcher {
	return &Dispatcher{debug: debug}
}

// SetListener installs the event listener, replacing any previous one.
// A nil listener clears the slot.
func (d *Dispatcher) SetListener(l Listener) {
	d.mu.Lock()
	d.listener = l
	d.mu.Unlock()
}

// HasListener reports whether a listener is installed.
func (d *Dispatcher) HasListener() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listener != nil
}

// SetMessageHandler installs the message handler, replacing any previous
// one. A nil handler clears the slot.
func (d *Dispatcher) SetMessageHandler(h MessageHandler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

// HasMessageHandler reports whether a message handler is installed.
func (d *Dispatcher) HasMessageHandler() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler != nil
}

// Dispatch delivers an event to the listener, if any. Break and Exception
// events require an active break id.
func (d *Dispatcher) Dispatch(e *Event) error {
	if (e.Type == Break || e.Type == Exception) && e.BreakID == 0 {
		return ErrNoBreakID
	}

	d.mu.Lock()
	l := d.listener
	d.mu.Unlock()

	if l == nil {
		return nil
	}
	if d.debug {
		log.Printf("[QuarkScript Debug] Dispatching %s event (break id %d)", e.Type, e.BreakID)
	}
	// Invoked without the lock so the listener can clear or replace itself.
	l(e)
	return nil
}

// Deliver hands an outbound protocol message to the message handler.
// It reports whether a handler consumed the message.
func (d *Dispatcher) Deliver(m *Message) bool {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()

	if h == nil {
		return false
	}
	h(m)
	return true
}
