package protocol

import (
	"errors"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/quarkscript/debug-go/pkg/script"
)

func TestDecodeEvaluate(t *testing.T) {
	req, err := Decode([]byte(`{"seq":12,"type":"request","command":"evaluate","arguments":{"expression":"x + 1","frame":2}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if req.Kind != KindEvaluate || req.Seq != 12 {
		t.Fatalf("req = %+v", req)
	}
	if req.Evaluate.Expression != "x + 1" || req.Evaluate.FrameIndex != 2 {
		t.Fatalf("args = %+v", req.Evaluate)
	}

	req, err = Decode([]byte(`{"seq":13,"type":"request","command":"evaluate","arguments":{"expression":"x"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if req.Evaluate.FrameIndex != -1 {
		t.Fatalf("omitted frame decoded to %d, want -1", req.Evaluate.FrameIndex)
	}
}

func TestDecodeContinueWithStep(t *testing.T) {
	req, err := Decode([]byte(`{"seq":1,"type":"request","command":"continue","arguments":{"stepaction":"in","stepcount":3}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if req.Kind != KindContinue || req.Continue.StepAction != "in" || req.Continue.StepCount != 3 {
		t.Fatalf("args = %+v", req.Continue)
	}
}

func TestDecodeChangeBreakpointTracksPresence(t *testing.T) {
	req, err := Decode([]byte(`{"seq":4,"type":"request","command":"changebreakpoint","arguments":{"breakpoint":7,"enabled":false}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cb := req.Breakpoint
	if cb.ID != 7 || !cb.HasEnabled || cb.Enabled {
		t.Fatalf("args = %+v", cb)
	}
	if cb.HasCond || cb.HasIgnore {
		t.Fatalf("absent fields marked present: %+v", cb)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		`{"seq":1,"type":`, // truncated JSON
		`{"seq":1,"type":"response","command":"evaluate"}`, // wrong type
		`[1,2,3]`, // not an object request
	}
	for _, c := range cases {
		if _, err := Decode([]byte(c)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q) err = %v, want ErrMalformed", c, err)
		}
	}
}

func TestDecodeUnknownCommandKeepsSeq(t *testing.T) {
	req, err := Decode([]byte(`{"seq":99,"type":"request","command":"teleport"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if req.Kind != KindUnknown || req.Seq != 99 || req.Command != "teleport" {
		t.Fatalf("req = %+v", req)
	}
}

func TestCommandName(t *testing.T) {
	if got := CommandName([]byte(`{"type":"request","command":"suspend"}`)); got != CmdSuspend {
		t.Fatalf("CommandName = %q", got)
	}
	if got := CommandName([]byte(`garbage`)); got != "" {
		t.Fatalf("CommandName on garbage = %q", got)
	}
}

func TestResponsePairsBySeq(t *testing.T) {
	b := Response(5, 12, CmdEvaluate, true, false)
	r := gjson.ParseBytes(b)
	if r.Get("type").String() != "response" ||
		r.Get("seq").Int() != 5 ||
		r.Get("request_seq").Int() != 12 ||
		!r.Get("success").Bool() ||
		r.Get("running").Bool() {
		t.Fatalf("response = %s", b)
	}

	b = WithBody(b, "value", map[string]interface{}{"name": "x"})
	if gjson.GetBytes(b, "body.value.name").String() != "x" {
		t.Fatalf("body = %s", b)
	}
}

func TestErrorResponseCarriesMessage(t *testing.T) {
	b := ErrorResponse(1, 9, "teleport", "unknown command: teleport")
	r := gjson.ParseBytes(b)
	if r.Get("success").Bool() || r.Get("message").String() != "unknown command: teleport" {
		t.Fatalf("error response = %s", b)
	}
}

func TestBreakEventBody(t *testing.T) {
	loc := script.Location{ScriptID: 3, Line: 14, Column: 2}
	b := BreakEvent(8, loc, "demo.qs", []int{1, 4})
	r := gjson.ParseBytes(b)
	if r.Get("type").String() != "event" || r.Get("event").String() != "break" {
		t.Fatalf("envelope = %s", b)
	}
	if r.Get("body.sourceLine").Int() != 14 ||
		r.Get("body.script.name").String() != "demo.qs" ||
		len(r.Get("body.breakpoints").Array()) != 2 {
		t.Fatalf("body = %s", b)
	}

	// A forced break carries no breakpoint list.
	b = BreakEvent(9, loc, "demo.qs", nil)
	if gjson.GetBytes(b, "body.breakpoints").Exists() {
		t.Fatalf("forced break body = %s", b)
	}
}

func TestExceptionEventBody(t *testing.T) {
	b := ExceptionEvent(2, "boom", true, script.Location{ScriptID: 1, Line: 3})
	r := gjson.ParseBytes(b)
	if !r.Get("body.uncaught").Bool() || r.Get("body.exception.text").String() != "boom" {
		t.Fatalf("body = %s", b)
	}
}

func TestWithOriginalPosition(t *testing.T) {
	loc := script.Location{ScriptID: 3, Line: 14, Column: 2}
	b := BreakEvent(8, loc, "demo.qs", nil)
	b = WithOriginalPosition(b, "demo.ts", 7, 4)
	r := gjson.ParseBytes(b)
	if r.Get("body.originalSource").String() != "demo.ts" ||
		r.Get("body.originalLine").Int() != 7 ||
		r.Get("body.originalColumn").Int() != 4 {
		t.Fatalf("body = %s", b)
	}
	if r.Get("body.sourceLine").Int() != 14 {
		t.Fatalf("generated position clobbered: %s", b)
	}
}
