// Package event defines debugger events and the single-listener dispatcher.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/quarkscript/debug-go/pkg/script"
)

// Type classifies a debug event.
type Type int

const (
	// Break is dispatched when execution halts at a breakpoint, a step
	// target, a debugger statement or a forced break.
	Break Type = iota + 1
	// Exception is dispatched when a thrown exception matches the armed
	// break-on-exception policy.
	Exception
	// AfterCompile is dispatched when a script compiles successfully.
	AfterCompile
	// CompileError is dispatched when a compilation fails.
	CompileError
)

// String returns the protocol name of the event type.
func (t Type) String() string {
	switch t {
	case Break:
		return "break"
	case Exception:
		return "exception"
	case AfterCompile:
		return "afterCompile"
	case CompileError:
		return "compileError"
	default:
		return "unknown"
	}
}

// Frame is a transient view over one activation record of the execution
// stack. Frames are valid only for the duration of the event callback they
// were handed out with; listeners must not retain them.
type Frame struct {
	// Function is the name of the executing function, "" at top level.
	Function string
	// Location is the current position inside the frame.
	Location script.Location
	// Locals is a read-only view of the frame's local variables.
	Locals map[string]interface{}
}

// ExceptionDetails carries the thrown value and its break classification.
type ExceptionDetails struct {
	Value  interface{}
	Caught bool
}

// Event is one debugger notification. Break and Exception events always
// carry a nonzero BreakID and the frame chain at the halt point.
type Event struct {
	ID   string
	Time time.Time
	Type Type

	BreakID int64
	Frames  []*Frame

	// Breakpoints holds the ids of genuinely hit breakpoints (Break only).
	Breakpoints []int
	// Forced is set when the halt came from a debugger statement or an
	// asynchronous break request rather than a breakpoint or step.
	Forced bool

	Exception *ExceptionDetails

	// Script is set on AfterCompile events; CompileErr on CompileError.
	Script     *script.Record
	CompileErr error
}

// New creates an event with fresh metadata.
func New(t Type) *Event {
	return &Event{
		ID:   uuid.New().String(),
		Time: time.Now(),
		Type: t,
	}
}

// TopFrame returns the innermost frame, nil when the chain is empty.
func (e *Event) TopFrame() *Frame {
	if len(e.Frames) == 0 {
		return nil
	}
	return e.Frames[0]
}
