package event

import "testing"

func TestDispatchRequiresBreakID(t *testing.T) {
	d := NewDispatcher(false)
	called := false
	d.SetListener(func(e *Event) { called = true })

	for _, typ := range []Type{Break, Exception} {
		ev := New(typ)
		if err := d.Dispatch(ev); err != ErrNoBreakID {
			t.Fatalf("%s without break id: err = %v, want ErrNoBreakID", typ, err)
		}
	}
	if called {
		t.Fatal("listener invoked for rejected event")
	}

	ev := New(Break)
	ev.BreakID = 7
	if err := d.Dispatch(ev); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !called {
		t.Fatal("listener not invoked")
	}
}

func TestCompileEventsNeedNoBreakID(t *testing.T) {
	d := NewDispatcher(false)
	var got []Type
	d.SetListener(func(e *Event) { got = append(got, e.Type) })

	if err := d.Dispatch(New(AfterCompile)); err != nil {
		t.Fatalf("afterCompile: %v", err)
	}
	if err := d.Dispatch(New(CompileError)); err != nil {
		t.Fatalf("compileError: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listener saw %v", got)
	}
}

func TestListenerMayClearItselfMidDispatch(t *testing.T) {
	d := NewDispatcher(false)
	calls := 0
	d.SetListener(func(e *Event) {
		calls++
		d.SetListener(nil)
	})

	ev := New(Break)
	ev.BreakID = 1
	d.Dispatch(ev)
	d.Dispatch(ev)

	if calls != 1 {
		t.Fatalf("listener called %d times, want 1", calls)
	}
	if d.HasListener() {
		t.Fatal("listener still registered")
	}
}

func TestSetListenerReplacesPrevious(t *testing.T) {
	d := NewDispatcher(false)
	var order []string
	d.SetListener(func(e *Event) { order = append(order, "first") })
	d.SetListener(func(e *Event) { order = append(order, "second") })

	ev := New(Break)
	ev.BreakID = 1
	d.Dispatch(ev)

	if len(order) != 1 || order[0] != "second" {
		t.Fatalf("order = %v, want [second]", order)
	}
}

func TestDeliverReportsHandlerPresence(t *testing.T) {
	d := NewDispatcher(false)
	if d.Deliver(&Message{Body: []byte("x")}) {
		t.Fatal("Deliver without handler reported consumption")
	}

	var got *Message
	d.SetMessageHandler(func(m *Message) { got = m })
	if !d.Deliver(&Message{Body: []byte("y"), ClientData: 42}) {
		t.Fatal("Deliver with handler reported no consumption")
	}
	if string(got.Body) != "y" || got.ClientData != 42 {
		t.Fatalf("handler saw %+v", got)
	}
}
