// Package minihost implements a minimal scripted host runtime around the
// debugger core. Programs are defined as Go data rather than parsed text;
// the interpreter reports every statement to the execution interceptor the
// way a real script VM would, which makes it the reference embedding and the
// vehicle for the behavioral test-suite.
package minihost

import (
	"errors"
	"fmt"

	"github.com/quarkscript/debug-go/pkg/debug"
	"github.com/quarkscript/debug-go/pkg/event"
	"github.com/quarkscript/debug-go/pkg/script"
)

// Value is a host scripting value.
type Value = interface{}

type stmtKind int

const (
	stmtNop stmtKind = iota
	stmtLet
	stmtLetExpr
	stmtCall
	stmtThrow
	stmtIf
	stmtWhile
	stmtTryCatch
	stmtTryFinally
	stmtDebugger
)

// Stmt is one statement of a minihost program. Every statement occupies one
// source line and is a breakable location.
type Stmt struct {
	line    int
	kind    stmtKind
	name    string // Let target / Call target
	expr    string // LetExpr, If, While condition
	value   Value  // Let value / Throw value
	args    []Value
	body    []Stmt
	handler []Stmt // catch or finally block
	swallow bool   // TryFinally: drop the exception after the finally
}

// Nop is a statement with no effect beyond being a breakable location.
func Nop(line int) Stmt { return Stmt{line: line, kind: stmtNop} }

// Let assigns a literal value to a local variable.
func Let(line int, name string, v Value) Stmt {
	return Stmt{line: line, kind: stmtLet, name: name, value: v}
}

// LetExpr assigns the result of an expression evaluated in the current
// frame's scope.
func LetExpr(line int, name, expr string) Stmt {
	return Stmt{line: line, kind: stmtLetExpr, name: name, expr: expr}
}

// Call invokes a script function or a registered native.
func Call(line int, fn string, args ...Value) Stmt {
	return Stmt{line: line, kind: stmtCall, name: fn, args: args}
}

// Throw raises an exception carrying the given value.
func Throw(line int, v Value) Stmt { return Stmt{line: line, kind: stmtThrow, value: v} }

// If executes body when the condition expression is truthy.
func If(line int, cond string, body ...Stmt) Stmt {
	return Stmt{line: line, kind: stmtIf, expr: cond, body: body}
}

// While executes body as long as the condition expression is truthy.
func While(line int, cond string, body ...Stmt) Stmt {
	return Stmt{line: line, kind: stmtWhile, expr: cond, body: body}
}

// TryCatch executes body; a thrown exception binds to the local "err" and
// runs the catch block.
func TryCatch(line int, body, catch []Stmt) Stmt {
	return Stmt{line: line, kind: stmtTryCatch, body: body, handler: catch}
}

// TryFinally executes body, then the finally block. When swallow is set the
// exception stops propagating after the finally, mirroring a finally that
// branches out instead of rethrowing.
func TryFinally(line int, body, finally []Stmt, swallow bool) Stmt {
	return Stmt{line: line, kind: stmtTryFinally, body: body, handler: finally, swallow: swallow}
}

// Debugger is an explicit debugger statement.
func Debugger(line int) Stmt { return Stmt{line: line, kind: stmtDebugger} }

// Function is one function literal of a program. The line after the last
// statement is the implicit return location.
type Function struct {
	Name      string
	Params    []string
	StartLine int
	EndLine   int
	Body      []Stmt
}

// Program is one compilation unit.
type Program struct {
	Name       string
	Source     string
	LineOffset int
	Functions  []Function
	Main       []Stmt

	// SourceMap, when set, maps program lines back to an authored source.
	SourceMapURL string
	SourceMap    []byte
}

// Script is a compiled program bound to a script record.
type Script struct {
	rec   *script.Record
	funcs map[string]*Function
	main  []Stmt
}

// Record returns the script record of this compilation.
func (s *Script) Record() *script.Record { return s.rec }

type frame struct {
	fn     string
	sc     *Script
	line   int
	locals map[string]Value
}

// Host is the reference embedding of the debugger session.
type Host struct {
	session *debug.Session
	globals map[string]Value
	natives map[string]func(h *Host)

	frames   []*frame
	handlers []debug.HandlerKind
}

// New creates a host with its own debugger session.
func New(options ...debug.ConfigOption) *Host {
	h := &Host{
		globals: make(map[string]Value),
		natives: make(map[string]func(h *Host)),
	}
	h.session = debug.NewSession(h, options...)
	return h
}

// Session returns the host's debugger session.
func (h *Host) Session() *debug.Session { return h.session }

// SetGlobal sets a global scripting variable.
func (h *Host) SetGlobal(name string, v Value) { h.globals[name] = v }

// Global reads a global scripting variable.
func (h *Host) Global(name string) Value { return h.globals[name] }

// RegisterNative installs a native function. Natives execute atomically
// from the debugger's point of view: no locations are reported inside them,
// so stepping never descends into a native.
func (h *Host) RegisterNative(name string, fn func(h *Host)) {
	h.natives[name] = fn
}

// Compile turns a program into a script, announcing the compilation to the
// debugger. Pending debugger commands drain before compilation starts;
// validation failures dispatch a compile-error event.
func (h *Host) Compile(p Program) (*Script, error) {
	h.session.BeginCompile()

	if err := validate(p); err != nil {
		h.session.CompileFailed(p.Name, err)
		return nil, err
	}

	rec := h.session.Scripts().Compile(p.Name, p.Source, p.LineOffset)
	if len(p.SourceMap) > 0 {
		if err := rec.AttachSourceMap(p.SourceMapURL, p.SourceMap); err != nil {
			h.session.Scripts().Remove(rec.ID())
			h.session.CompileFailed(p.Name, err)
			return nil, err
		}
	}
	sc := &Script{rec: rec, funcs: make(map[string]*Function), main: p.Main}
	for i := range p.Functions {
		fn := &p.Functions[i]
		sc.funcs[fn.Name] = fn
		rec.AddFunction(script.FunctionRange{Name: fn.Name, StartLine: fn.StartLine, EndLine: fn.EndLine})
		markBreakable(rec, fn.Body)
		rec.MarkBreakable(fn.EndLine, 0)
	}
	markBreakable(rec, p.Main)
	rec.Seal()

	h.session.ScriptCompiled(rec)
	return sc, nil
}

func markBreakable(rec *script.Record, stmts []Stmt) {
	for _, st := range stmts {
		rec.MarkBreakable(st.line, 0)
		markBreakable(rec, st.body)
		markBreakable(rec, st.handler)
	}
}

func validate(p Program) error {
	seen := make(map[string]bool)
	for _, fn := range p.Functions {
		if fn.Name == "" {
			return errors.New("function literal without a name")
		}
		if seen[fn.Name] {
			return fmt.Errorf("duplicate function %q", fn.Name)
		}
		seen[fn.Name] = true
		if fn.EndLine < fn.StartLine {
			return fmt.Errorf("function %q: end line precedes start line", fn.Name)
		}
		if err := validateBlock(fn, fn.Body); err != nil {
			return err
		}
	}
	return nil
}

func validateBlock(fn Function, stmts []Stmt) error {
	for _, st := range stmts {
		if st.line < fn.StartLine || st.line > fn.EndLine {
			return fmt.Errorf("function %q: statement at line %d outside range %d..%d",
				fn.Name, st.line, fn.StartLine, fn.EndLine)
		}
		if err := validateBlock(fn, st.body); err != nil {
			return err
		}
		if err := validateBlock(fn, st.handler); err != nil {
			return err
		}
	}
	return nil
}

// thrownError carries a script exception through Go error returns. Only
// thrownError unwinds into catch clauses; debugger errors such as
// termination pass straight through.
type thrownError struct {
	value Value
}

func (e *thrownError) Error() string { return fmt.Sprintf("script exception: %v", e.value) }

// ThrownValue unwraps the script value of an exception error returned by
// Invoke or Run.
func ThrownValue(err error) (Value, bool) {
	var te *thrownError
	if errors.As(err, &te) {
		return te.value, true
	}
	return nil, false
}

// Invoke runs a named function as a fresh top-level activation.
func (h *Host) Invoke(sc *Script, fn string, args ...Value) error {
	h.session.BeginExecution()
	defer h.session.EndExecution()
	return h.call(sc, fn, args)
}

// Run executes the program's top-level statements.
func (h *Host) Run(sc *Script) error {
	h.session.BeginExecution()
	defer h.session.EndExecution()

	h.pushFrame(&frame{fn: "", sc: sc, locals: make(map[string]Value)})
	defer h.popFrame()
	return h.execBlock(sc, sc.main)
}

func (h *Host) call(sc *Script, name string, args []Value) error {
	if native, ok := h.natives[name]; ok {
		// Natives run without interception.
		native(h)
		return nil
	}
	fn, ok := sc.funcs[name]
	if !ok {
		return h.throw(sc, h.currentLine(), fmt.Sprintf("undefined function %q", name))
	}

	f := &frame{fn: name, sc: sc, locals: make(map[string]Value)}
	for i, p := range fn.Params {
		if i < len(args) {
			f.locals[p] = args[i]
		} else {
			f.locals[p] = nil
		}
	}
	h.pushFrame(f)
	defer h.popFrame()

	if err := h.execBlock(sc, fn.Body); err != nil {
		return err
	}
	// Implicit return location.
	return h.at(sc, fn.EndLine)
}

func (h *Host) execBlock(sc *Script, stmts []Stmt) error {
	for i := range stmts {
		if err := h.execStmt(sc, &stmts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) execStmt(sc *Script, st *Stmt) error {
	if err := h.at(sc, st.line); err != nil {
		return err
	}

	switch st.kind {
	case stmtNop:
		return nil

	case stmtLet:
		h.assign(st.name, st.value)
		return nil

	case stmtLetExpr:
		v, err := h.Evaluate(h.topFrameView(), st.expr)
		if err != nil {
			return h.throw(sc, st.line, err.Error())
		}
		h.assign(st.name, v)
		return nil

	case stmtCall:
		return h.call(sc, st.name, st.args)

	case stmtThrow:
		return h.throw(sc, st.line, st.value)

	case stmtIf:
		ok, err := h.cond(sc, st)
		if err != nil {
			return err
		}
		if ok {
			return h.execBlock(sc, st.body)
		}
		return nil

	case stmtWhile:
		for {
			ok, err := h.cond(sc, st)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := h.execBlock(sc, st.body); err != nil {
				return err
			}
			// The loop head is a backward-branch safe point.
			if err := h.at(sc, st.line); err != nil {
				return err
			}
		}

	case stmtTryCatch:
		h.pushHandler(debug.HandlerCatch)
		err := h.execBlock(sc, st.body)
		h.popHandler()
		var te *thrownError
		if errors.As(err, &te) {
			h.assign("err", te.value)
			return h.execBlock(sc, st.handler)
		}
		return err

	case stmtTryFinally:
		h.pushHandler(debug.HandlerFinally)
		err := h.execBlock(sc, st.body)
		h.popHandler()
		if finErr := h.execBlock(sc, st.handler); finErr != nil {
			return finErr
		}
		if err == nil {
			return nil
		}
		if _, thrown := ThrownValue(err); thrown && st.swallow {
			return nil
		}
		return err

	case stmtDebugger:
		return h.session.OnDebuggerStatement(h.location(sc, st.line), h.captureFrames())

	default:
		return fmt.Errorf("minihost: unknown statement kind %d", st.kind)
	}
}

func (h *Host) cond(sc *Script, st *Stmt) (bool, error) {
	v, err := h.Evaluate(h.topFrameView(), st.expr)
	if err != nil {
		return false, h.throw(sc, st.line, err.Error())
	}
	return debug.Truthy(v), nil
}

// throw reports the exception to the interceptor with the nearest enclosing
// handler kind, then unwinds. Termination requested from a break inside the
// exception event preempts the unwind.
func (h *Host) throw(sc *Script, line int, value Value) error {
	if err := h.session.OnException(value, h.currentHandler(), h.location(sc, line), h.captureFrames()); err != nil {
		return err
	}
	return &thrownError{value: value}
}

// at reports one breakable location to the interceptor.
func (h *Host) at(sc *Script, line int) error {
	if top := h.topFrame(); top != nil {
		top.line = line
	}
	return h.session.OnReachedLocation(h.location(sc, line), h.captureFrames())
}

func (h *Host) location(sc *Script, line int) script.Location {
	return script.Location{ScriptID: sc.rec.ID(), Line: line}
}

// assign resolves like the evaluator reads: an existing local wins, then an
// existing global, and an unknown name becomes a local of the current frame.
// Top-level code has no locals, so everything it assigns is global.
func (h *Host) assign(name string, v Value) {
	top := h.topFrame()
	if top == nil || top.fn == "" {
		h.globals[name] = v
		return
	}
	if _, ok := top.locals[name]; ok {
		top.locals[name] = v
		return
	}
	if _, ok := h.globals[name]; ok {
		h.globals[name] = v
		return
	}
	top.locals[name] = v
}

func (h *Host) pushFrame(f *frame) { h.frames = append(h.frames, f) }
func (h *Host) popFrame()          { h.frames = h.frames[:len(h.frames)-1] }

func (h *Host) topFrame() *frame {
	if len(h.frames) == 0 {
		return nil
	}
	return h.frames[len(h.frames)-1]
}

func (h *Host) currentLine() int {
	if top := h.topFrame(); top != nil {
		return top.line
	}
	return 0
}

func (h *Host) pushHandler(k debug.HandlerKind) { h.handlers = append(h.handlers, k) }
func (h *Host) popHandler()                     { h.handlers = h.handlers[:len(h.handlers)-1] }

func (h *Host) currentHandler() debug.HandlerKind {
	if len(h.handlers) == 0 {
		return debug.HandlerNone
	}
	return h.handlers[len(h.handlers)-1]
}

// captureFrames builds the transient frame-chain view, innermost first.
func (h *Host) captureFrames() []*event.Frame {
	out := make([]*event.Frame, 0, len(h.frames))
	for i := len(h.frames) - 1; i >= 0; i-- {
		f := h.frames[i]
		out = append(out, &event.Frame{
			Function: f.fn,
			Location: script.Location{ScriptID: f.sc.rec.ID(), Line: f.line},
			Locals:   f.locals,
		})
	}
	return out
}

func (h *Host) topFrameView() *event.Frame {
	frames := h.captureFrames()
	if len(frames) == 0 {
		return nil
	}
	return frames[0]
}
