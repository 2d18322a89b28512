package minihost

import (
	"testing"

	"github.com/quarkscript/debug-go/pkg/breakpoint"
	"github.com/quarkscript/debug-go/pkg/debug"
	"github.com/quarkscript/debug-go/pkg/event"
)

// stepProgram is three nested calls: a calls b then c, b calls c. Every
// function's closing line is a breakable return location.
func stepProgram() Program {
	return Program{
		Name: "steps.qs",
		Functions: []Function{
			{Name: "c", StartLine: 1, EndLine: 1},
			{Name: "b", StartLine: 2, EndLine: 3, Body: []Stmt{
				Call(2, "c"),
			}},
			{Name: "a", StartLine: 4, EndLine: 6, Body: []Stmt{
				Call(4, "b"),
				Call(5, "c"),
			}},
		},
	}
}

// branchProgram takes the false branch in b, so c is never called from b.
func branchProgram() Program {
	return Program{
		Name: "branch.qs",
		Functions: []Function{
			{Name: "b", Params: []string{"x"}, StartLine: 1, EndLine: 2, Body: []Stmt{
				If(1, "x", Call(1, "c")),
			}},
			{Name: "a", StartLine: 3, EndLine: 5, Body: []Stmt{
				Call(3, "b", false),
				Call(4, "c"),
			}},
			{Name: "c", StartLine: 6, EndLine: 6},
		},
	}
}

// stepThrough breaks at the first line of a, arms the action there, and
// records the function paused in at every break.
func stepThrough(t *testing.T, p Program, entry string, entryLine int, action debug.StepAction) string {
	t.Helper()
	h := New()
	s := h.Session()
	defer s.Close()

	sc, err := h.Compile(p)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s.SetBreakpoint(breakpoint.TargetByID(sc.Record().ID(), entryLine, 0), "")

	trace := ""
	s.SetEventListener(func(e *event.Event) {
		if e.Type != event.Break {
			return
		}
		trace += e.TopFrame().Function
		if len(trace) == 1 {
			s.PrepareStep(action)
		}
	})

	if err := h.Invoke(sc, entry); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	return trace
}

func TestStepInVisitsEveryFrame(t *testing.T) {
	if got := stepThrough(t, stepProgram(), "a", 4, debug.StepIn); got != "abcbaca" {
		t.Fatalf("step in trace = %q, want abcbaca", got)
	}
}

func TestStepNextStaysInFrame(t *testing.T) {
	if got := stepThrough(t, stepProgram(), "a", 4, debug.StepNext); got != "aaa" {
		t.Fatalf("step next trace = %q, want aaa", got)
	}
}

func TestStepOutRunsToCompletion(t *testing.T) {
	if got := stepThrough(t, stepProgram(), "a", 4, debug.StepOut); got != "a" {
		t.Fatalf("step out trace = %q, want a", got)
	}
}

func TestStepInSkipsUntakenBranch(t *testing.T) {
	if got := stepThrough(t, branchProgram(), "a", 3, debug.StepIn); got != "abbaca" {
		t.Fatalf("branch trace = %q, want abbaca", got)
	}
}

func TestStepOutStopsInCaller(t *testing.T) {
	// Breaking inside b, step out pauses back in a. The retargeted action
	// would fire again only on leaving a, which exits script code entirely.
	if got := stepThrough(t, stepProgram(), "a", 2, debug.StepOut); got != "ba" {
		t.Fatalf("step out from callee trace = %q, want ba", got)
	}
}

func TestStepInDoesNotEnterNatives(t *testing.T) {
	h := New()
	s := h.Session()
	defer s.Close()

	called := false
	h.RegisterNative("tick", func(h *Host) { called = true })

	sc, err := h.Compile(Program{
		Name: "native.qs",
		Functions: []Function{
			{Name: "a", StartLine: 1, EndLine: 3, Body: []Stmt{
				Call(1, "tick"),
				Nop(2),
			}},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s.SetBreakpoint(breakpoint.TargetByID(sc.Record().ID(), 1, 0), "")

	trace := ""
	s.SetEventListener(func(e *event.Event) {
		if e.Type != event.Break {
			return
		}
		trace += e.TopFrame().Function
		if len(trace) == 1 {
			s.PrepareStep(debug.StepIn)
		}
	})

	if err := h.Invoke(sc, "a"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !called {
		t.Fatal("native not called")
	}
	if trace != "aaa" {
		t.Fatalf("trace = %q, want aaa (native is atomic)", trace)
	}
}

func TestStepArmedInPreviousActivationIsInvalidated(t *testing.T) {
	h := New()
	s := h.Session()
	defer s.Close()

	sc, err := h.Compile(stepProgram())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	id := s.SetBreakpoint(breakpoint.TargetByID(sc.Record().ID(), 4, 0), "")

	breaks := 0
	s.SetEventListener(func(e *event.Event) {
		if e.Type != event.Break {
			return
		}
		breaks++
		if breaks == 1 {
			s.PrepareStep(debug.StepIn)
			// The breakpoint is gone; only the armed step could still fire.
			s.ClearBreakpoint(id)
		}
	})

	if err := h.Invoke(sc, "a"); err != nil {
		t.Fatalf("first Invoke: %v", err)
	}
	armed := breaks
	if armed < 2 {
		t.Fatalf("step never fired in first activation (%d breaks)", armed)
	}

	// A fresh top-level entry drops the leftover step state.
	if err := h.Invoke(sc, "a"); err != nil {
		t.Fatalf("second Invoke: %v", err)
	}
	if breaks != armed {
		t.Fatalf("stale step fired in new activation: %d breaks, want %d", breaks, armed)
	}
}

func TestStepInWithCountRunsThroughIntermediateStops(t *testing.T) {
	h := New()
	s := h.Session()
	defer s.Close()

	sc, err := h.Compile(stepProgram())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s.SetBreakpoint(breakpoint.TargetByID(sc.Record().ID(), 4, 0), "")

	trace := ""
	s.SetEventListener(func(e *event.Event) {
		if e.Type != event.Break {
			return
		}
		trace += e.TopFrame().Function
		s.PrepareStepCount(debug.StepIn, 2)
	})

	if err := h.Invoke(sc, "a"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	// Every other location of the full step-in trace abcbaca.
	if trace != "acaa" {
		t.Fatalf("trace = %q, want acaa", trace)
	}
}

func TestStepArmedWhileIdleNeverFires(t *testing.T) {
	h := New()
	s := h.Session()
	defer s.Close()

	sc, err := h.Compile(stepProgram())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s.PrepareStep(debug.StepIn)

	n := countBreaks(s)
	if err := h.Invoke(sc, "a"); err != nil {
		t.Fatalf("first Invoke: %v", err)
	}
	if err := h.Invoke(sc, "a"); err != nil {
		t.Fatalf("second Invoke: %v", err)
	}
	if *n != 0 {
		t.Fatalf("idle-armed step fired %d times", *n)
	}
}
