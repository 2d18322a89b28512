package debug

import (
	"log"

	"github.com/quarkscript/debug-go/pkg/event"
	"github.com/quarkscript/debug-go/pkg/mirror"
	"github.com/quarkscript/debug-go/pkg/protocol"
	"github.com/quarkscript/debug-go/pkg/script"
)

// BeginExecution marks a new top-level entry into script code. Any step
// armed during an earlier activation, or while no script was running, is
// invalidated here.
func (s *Session) BeginExecution() {
	if s.runLevel == 0 {
		s.step.clear()
	}
	s.runLevel++
}

// EndExecution marks the end of a top-level activation. A pending
// termination request is consumed once the stack has fully unwound.
func (s *Session) EndExecution() {
	s.runLevel--
	if s.runLevel == 0 {
		s.curBreakID = 0
		s.curFrames = nil
		s.curDepth = 0
		s.terminated.Store(false)
	}
}

// OnReachedLocation is the interceptor choke point: the host calls it from
// the execution thread whenever it reaches a breakable location. frames is
// the current frame chain, innermost first; the views are valid only for
// the duration of the call.
//
// The returned error is ErrTerminated when the host must unwind.
func (s *Session) OnReachedLocation(loc script.Location, frames []*event.Frame) error {
	if s.terminated.Load() {
		return ErrTerminated
	}
	if s.suppress > 0 {
		return nil
	}

	depth := len(frames)
	var hits []int
	if s.breaksActive() {
		for _, id := range s.breakpoints.ResolveForLocation(loc) {
			bp, ok := s.breakpoints.Get(id)
			if !ok || !bp.Enabled() {
				continue
			}
			if cond := bp.Condition(); cond != "" && !s.evalCondition(cond, topFrame(frames)) {
				continue
			}
			if s.breakpoints.ConsumeHit(id) {
				hits = append(hits, id)
			}
		}
	}

	stepHit := s.step.shouldStop(depth)
	forced := s.breakRequested.Load()
	if stepHit && len(hits) == 0 && !forced && s.step.count > 1 {
		// An intermediate stop of a multi-count step runs through.
		s.step.count--
		s.step.targetDepth = depth
		return nil
	}
	if len(hits) == 0 && !stepHit && !forced {
		return nil
	}
	if forced {
		s.breakRequested.Store(false)
	}

	ev := event.New(event.Break)
	ev.Breakpoints = hits
	ev.Forced = forced && len(hits) == 0 && !stepHit
	return s.enterBreak(ev, loc, frames)
}

// OnDebuggerStatement reports an explicit debugger statement. It always
// breaks while breakpoints are active, independent of registered
// breakpoints.
func (s *Session) OnDebuggerStatement(loc script.Location, frames []*event.Frame) error {
	if s.terminated.Load() {
		return ErrTerminated
	}
	if s.suppress > 0 || !s.breaksActive() {
		return nil
	}
	s.breakRequested.Store(false)
	ev := event.New(event.Break)
	ev.Forced = true
	return s.enterBreak(ev, loc, frames)
}

// OnException reports a thrown exception together with the nearest
// enclosing handler kind. Only a catch clause classifies the exception as
// caught; a finally does not, even when it ends up swallowing the
// exception, so break-on-uncaught fires at the first throw.
func (s *Session) OnException(value interface{}, handler HandlerKind, loc script.Location, frames []*event.Frame) error {
	if s.terminated.Load() {
		return ErrTerminated
	}
	if s.suppress > 0 {
		return nil
	}

	caught := handler == HandlerCatch
	breakOnCaught, breakOnUncaught := s.exceptionPolicy()
	if (caught && !breakOnCaught) || (!caught && !breakOnUncaught) {
		return nil
	}

	ev := event.New(event.Exception)
	ev.Exception = &event.ExceptionDetails{Value: value, Caught: caught}
	return s.enterBreak(ev, loc, frames)
}

// BeginCompile marks the start of a top-level compilation: a safe point at
// which pending commands drain before any new code runs.
func (s *Session) BeginCompile() {
	s.drainCommands()
}

// ScriptCompiled announces a successful compilation. Provisional
// breakpoints matching the script resolve before the event fires.
func (s *Session) ScriptCompiled(rec *script.Record) {
	s.breakpoints.BindScript(rec)

	ev := event.New(event.AfterCompile)
	ev.Script = rec
	if err := s.dispatcher.Dispatch(ev); err != nil {
		log.Printf("[QuarkScript Debug] afterCompile dispatch: %v", err)
	}
	s.dispatcher.Deliver(&event.Message{
		Body: protocol.AfterCompileEvent(s.nextSeq(), rec),
	})
}

// CompileFailed announces a failed compilation.
func (s *Session) CompileFailed(name string, compileErr error) {
	ev := event.New(event.CompileError)
	ev.CompileErr = compileErr
	if err := s.dispatcher.Dispatch(ev); err != nil {
		log.Printf("[QuarkScript Debug] compileError dispatch: %v", err)
	}
	s.dispatcher.Deliver(&event.Message{
		Body: protocol.CompileErrorEvent(s.nextSeq(), name, compileErr),
	})
}

// ProcessPendingCommands drains and executes queued commands immediately.
// Embedders call this from the execution thread when idle; during execution
// the interceptor drains at safe points on its own.
func (s *Session) ProcessPendingCommands() {
	s.drainCommands()
}

// enterBreak allocates a break id, dispatches the event synchronously, and
// drains commands once the listener returns. Nested breaks (a listener
// evaluating code that breaks again) are bounded by MaxNestedBreaks.
func (s *Session) enterBreak(ev *event.Event, loc script.Location, frames []*event.Frame) error {
	if s.breakDepth >= s.cfg.MaxNestedBreaks {
		if s.cfg.Debug {
			log.Printf("[QuarkScript Debug] Nested break depth %d reached, suppressing", s.breakDepth)
		}
		return nil
	}

	s.breakDepth++
	prevID, prevFrames, prevDepth := s.curBreakID, s.curFrames, s.curDepth
	s.curBreakID = s.nextBreakID
	s.nextBreakID++
	s.curFrames = frames
	s.curDepth = len(frames)

	ev.BreakID = s.curBreakID
	ev.Frames = frames

	if err := s.dispatcher.Dispatch(ev); err != nil {
		log.Printf("[QuarkScript Debug] %s dispatch: %v", ev.Type, err)
	}
	s.deliverBreakMessage(ev, loc, frames)

	// Safe point: the listener has returned control.
	s.drainCommands()

	// A persisting action retargets to the halted depth. A step armed
	// during this break keeps its own depth and count.
	if s.step.action != StepNone && s.step.armedAt != ev.BreakID {
		s.step.targetDepth = len(frames)
		s.step.count = 1
	}

	s.curBreakID, s.curFrames, s.curDepth = prevID, prevFrames, prevDepth
	s.breakDepth--

	if s.terminated.Load() {
		return ErrTerminated
	}
	return nil
}

func (s *Session) deliverBreakMessage(ev *event.Event, loc script.Location, frames []*event.Frame) {
	if !s.dispatcher.HasMessageHandler() {
		return
	}
	var body []byte
	switch ev.Type {
	case event.Break:
		name := ""
		rec, ok := s.scripts.Lookup(loc.ScriptID)
		if ok {
			name = rec.Name()
		}
		body = protocol.BreakEvent(s.nextSeq(), loc, name, ev.Breakpoints)
		if ok {
			if src, line, col, mapped := rec.OriginalPosition(loc.Line, loc.Column); mapped {
				body = protocol.WithOriginalPosition(body, src, line, col)
			}
		}
		if f := topFrame(frames); f != nil && len(f.Locals) > 0 {
			body = protocol.WithBody(body, "locals",
				mirror.CaptureLocals(f.Locals, s.cfg.MaxMirrorDepth))
		}
	case event.Exception:
		body = protocol.ExceptionEvent(s.nextSeq(), ev.Exception.Value, !ev.Exception.Caught, loc)
	default:
		return
	}
	s.dispatcher.Deliver(&event.Message{Body: body})
}

// evalCondition evaluates a breakpoint condition in the top frame's scope.
// Interception is suppressed for the duration so a condition that itself
// reaches breakable locations cannot recurse into the interceptor. An
// evaluation error counts as a false condition.
func (s *Session) evalCondition(expr string, frame *event.Frame) bool {
	var result interface{}
	var err error
	s.WithoutBreaks(func() {
		result, err = s.host.Evaluate(frame, expr)
	})
	if err != nil {
		if s.cfg.Debug {
			log.Printf("[QuarkScript Debug] Condition %q failed: %v", expr, err)
		}
		return false
	}
	return Truthy(result)
}

// Truthy maps a host value to the condition outcome: nil, false, zero
// numbers and empty strings do not count as hits.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func topFrame(frames []*event.Frame) *event.Frame {
	if len(frames) == 0 {
		return nil
	}
	return frames[0]
}
