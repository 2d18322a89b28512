package debug

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/quarkscript/debug-go/pkg/breakpoint"
	"github.com/quarkscript/debug-go/pkg/command"
	"github.com/quarkscript/debug-go/pkg/event"
	"github.com/quarkscript/debug-go/pkg/script"
)

// ErrTerminated is returned from interceptor entry points once execution
// termination has been requested. The host must unwind script execution; the
// session itself stays usable.
var ErrTerminated = errors.New("script execution terminated")

// HandlerKind describes the nearest exception handler enclosing a throw
// site, as reported by the host.
type HandlerKind int

const (
	// HandlerNone: the exception propagates out of script code.
	HandlerNone HandlerKind = iota
	// HandlerCatch: a catch clause will receive the exception.
	HandlerCatch
	// HandlerFinally: only finally clauses stand between the throw and the
	// script boundary. For break decisions this classifies as uncaught,
	// matching the policy of breaking at the first throw because a finally
	// implicitly rethrows, even when it ends up swallowing the exception.
	HandlerFinally
)

// Host is the interface the embedding script runtime provides to the
// debugger core.
type Host interface {
	// Evaluate evaluates an expression in the lexical scope of the given
	// frame. A nil frame means global scope.
	Evaluate(frame *event.Frame, expression string) (interface{}, error)
}

// Session owns all debugger state for one script runtime: the breakpoint
// registry, script table, step state, event dispatcher and command queue.
// There are no package-level globals; every counter and registration lives
// here.
//
// All interceptor entry points and dispatches run on the execution thread.
// Control threads are limited to SendCommand, RequestBreak,
// CancelBreakRequest, TerminateExecution and breakpoint mutations.
type Session struct {
	cfg  *Config
	id   string
	host Host

	scripts     *script.Table
	breakpoints *breakpoint.Registry
	dispatcher  *event.Dispatcher
	queue       *command.Queue

	breakRequested atomic.Bool
	terminated     atomic.Bool

	mu                sync.Mutex // guards the policy flags below
	breakOnCaught     bool
	breakOnUncaught   bool
	breakpointsActive bool

	// Execution-thread state. Never touched by control threads.
	step        stepState
	nextBreakID int64
	curBreakID  int64
	curFrames   []*event.Frame
	curDepth    int
	breakDepth  int
	suppress    int
	runLevel    int
	resume      bool
	outSeq      int64
}

// NewSession creates a session for the given host runtime.
func NewSession(host Host, options ...ConfigOption) *Session {
	cfg := NewConfig(options...)
	s := &Session{
		cfg:               cfg,
		id:                uuid.New().String(),
		host:              host,
		scripts:           script.NewTable(),
		breakpoints:       breakpoint.NewRegistry(cfg.Debug),
		dispatcher:        event.NewDispatcher(cfg.Debug),
		queue:             command.NewQueue(cfg.CommandQueueSize),
		nextBreakID:       1,
		breakOnCaught:     cfg.BreakOnCaught,
		breakOnUncaught:   cfg.BreakOnUncaught,
		breakpointsActive: true,
	}
	if cfg.Debug {
		log.Printf("[QuarkScript Debug] Session %s created", s.id)
	}
	return s
}

// ID returns the session token.
func (s *Session) ID() string { return s.id }

// Config returns the session configuration.
func (s *Session) Config() *Config { return s.cfg }

// Scripts returns the table of loaded scripts.
func (s *Session) Scripts() *script.Table { return s.scripts }

// Breakpoints returns the breakpoint registry.
func (s *Session) Breakpoints() *breakpoint.Registry { return s.breakpoints }

// BreakID returns the active break id, 0 outside of a break.
func (s *Session) BreakID() int64 { return s.curBreakID }

// Close disposes the command queue, releasing any undrained client
// payloads, and clears listener registrations.
func (s *Session) Close() {
	s.queue.Dispose()
	s.dispatcher.SetListener(nil)
	s.dispatcher.SetMessageHandler(nil)
	if s.cfg.Debug {
		log.Printf("[QuarkScript Debug] Session %s closed", s.id)
	}
}

// SetEventListener installs the debug event listener, replacing any
// previous registration. Nil clears it.
func (s *Session) SetEventListener(l event.Listener) {
	s.dispatcher.SetListener(l)
}

// SetMessageHandler installs the protocol message handler, replacing any
// previous registration. Nil clears it.
func (s *Session) SetMessageHandler(h event.MessageHandler) {
	s.dispatcher.SetMessageHandler(h)
}

// SendCommand enqueues a serialized command from any thread. Ownership of
// data transfers to the queue.
func (s *Session) SendCommand(payload []byte, data command.ClientData) error {
	msg := command.NewMessage(payload, data)
	return s.queue.Put(msg)
}

// RequestBreak arms the asynchronous break flag, checked by the interceptor
// at the next safe point. Callable from any thread.
func (s *Session) RequestBreak() {
	s.breakRequested.Store(true)
}

// CancelBreakRequest clears a pending break request.
func (s *Session) CancelBreakRequest() {
	s.breakRequested.Store(false)
}

// BreakRequested reports whether an asynchronous break is pending.
func (s *Session) BreakRequested() bool {
	return s.breakRequested.Load()
}

// TerminateExecution requests that script execution unwind at the next safe
// point. Callable from any thread.
func (s *Session) TerminateExecution() {
	s.terminated.Store(true)
}

// Terminated reports whether a termination request is pending.
func (s *Session) Terminated() bool {
	return s.terminated.Load()
}

// ChangeBreakOnException arms the exception break policy.
func (s *Session) ChangeBreakOnException(caught, uncaught bool) {
	s.mu.Lock()
	s.breakOnCaught = caught
	s.breakOnUncaught = uncaught
	s.mu.Unlock()
}

// SetBreakpointsActive toggles all breakpoints and debugger statements at
// once without touching individual enabled flags.
func (s *Session) SetBreakpointsActive(active bool) {
	s.mu.Lock()
	s.breakpointsActive = active
	s.mu.Unlock()
}

// SetBreakpoint registers a breakpoint and returns its id. Targets naming a
// script that is not loaded yet stay provisional and resolve on compile.
func (s *Session) SetBreakpoint(target breakpoint.Target, condition string) int {
	var rec *script.Record
	if target.ScriptID != 0 {
		rec, _ = s.scripts.Lookup(target.ScriptID)
	} else if target.ScriptName != "" {
		rec, _ = s.scripts.ByName(target.ScriptName)
	}
	return s.breakpoints.Set(target, condition, rec)
}

// SetFunctionBreakpoint registers a breakpoint inside a named function of a
// loaded script, offset lines below the function's first line. When several
// nested function literals share the line, the innermost one owns the
// location.
func (s *Session) SetFunctionBreakpoint(scriptID int64, function string, offset int, condition string) (int, error) {
	rec, ok := s.scripts.Lookup(scriptID)
	if !ok {
		return 0, errors.New("unknown script")
	}
	fn, ok := rec.Function(function)
	if !ok {
		return 0, errors.New("unknown function " + function)
	}
	line := fn.StartLine + offset
	if inner, ok := rec.InnermostFunction(line); ok {
		fn = inner
	}
	if line > fn.EndLine {
		line = fn.EndLine
	}
	id := s.breakpoints.Set(breakpoint.Target{ScriptID: scriptID, Line: line}, condition, rec)
	return id, nil
}

// ClearBreakpoint removes a breakpoint; unknown ids are ignored.
func (s *Session) ClearBreakpoint(id int) {
	s.breakpoints.Clear(id)
}

// ChangeCondition replaces a breakpoint's condition expression.
func (s *Session) ChangeCondition(id int, expr string) bool {
	return s.breakpoints.SetCondition(id, expr)
}

// ChangeIgnoreCount sets how many further genuine hits fire silently.
func (s *Session) ChangeIgnoreCount(id, n int) bool {
	return s.breakpoints.SetIgnoreCount(id, n)
}

// EnableBreakpoint re-enables a disabled breakpoint.
func (s *Session) EnableBreakpoint(id int) bool {
	return s.breakpoints.SetEnabled(id, true)
}

// DisableBreakpoint disables a breakpoint without clearing it.
func (s *Session) DisableBreakpoint(id int) bool {
	return s.breakpoints.SetEnabled(id, false)
}

// PrepareStep arms a step action. Inside a break the step is relative to the
// halted frame; the action persists across interceptions until changed or
// cleared.
func (s *Session) PrepareStep(action StepAction) {
	s.PrepareStepCount(action, 1)
}

// PrepareStepCount arms a step action that repeats count times before
// intercepting. Intermediate stops run through without dispatching. Counts
// below one step once.
func (s *Session) PrepareStepCount(action StepAction, count int) {
	if action == StepNone {
		s.ClearStepping()
		return
	}
	s.step.arm(action, s.curDepth, count, s.curBreakID)
	if s.cfg.Debug {
		log.Printf("[QuarkScript Debug] Step %s armed at depth %d (count %d)", action, s.curDepth, count)
	}
}

// ClearStepping resets the step controller to plain continuation.
func (s *Session) ClearStepping() {
	s.step.clear()
}

// WithoutBreaks runs fn with all interception suppressed. Used internally
// for condition evaluation and available to embedders that must run script
// code invisibly to the debugger.
func (s *Session) WithoutBreaks(fn func()) {
	s.suppress++
	defer func() { s.suppress-- }()
	fn()
}

func (s *Session) exceptionPolicy() (caught, uncaught bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breakOnCaught, s.breakOnUncaught
}

func (s *Session) breaksActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breakpointsActive
}

func (s *Session) nextSeq() int64 {
	s.outSeq++
	return s.outSeq
}
