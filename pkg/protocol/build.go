package protocol

import (
	"github.com/tidwall/sjson"

	"github.com/quarkscript/debug-go/pkg/script"
)

func set(b []byte, path string, v interface{}) []byte {
	out, err := sjson.SetBytes(b, path, v)
	if err != nil {
		// sjson only fails on invalid paths, which are all literals here
		return b
	}
	return out
}

// Response builds a response body paired to a request by request_seq.
func Response(seq, requestSeq int64, command string, success, running bool) []byte {
	b := []byte(`{}`)
	b = set(b, "seq", seq)
	b = set(b, "type", "response")
	b = set(b, "request_seq", requestSeq)
	b = set(b, "command", command)
	b = set(b, "success", success)
	b = set(b, "running", running)
	return b
}

// ErrorResponse builds a failed response carrying a message. Malformed and
// unknown commands are reported this way, never fatally.
func ErrorResponse(seq, requestSeq int64, command, message string) []byte {
	b := Response(seq, requestSeq, command, false, true)
	return set(b, "message", message)
}

// WithBody sets one field under the response body.
func WithBody(b []byte, field string, v interface{}) []byte {
	return set(b, "body."+field, v)
}

// Event builds the envelope shared by all event messages.
func Event(seq int64, name string) []byte {
	b := []byte(`{}`)
	b = set(b, "seq", seq)
	b = set(b, "type", "event")
	b = set(b, "event", name)
	return b
}

// BreakEvent builds a break event body.
func BreakEvent(seq int64, loc script.Location, scriptName string, breakpoints []int) []byte {
	b := Event(seq, "break")
	b = set(b, "body.sourceLine", loc.Line)
	b = set(b, "body.sourceColumn", loc.Column)
	b = set(b, "body.script.id", loc.ScriptID)
	b = set(b, "body.script.name", scriptName)
	if len(breakpoints) > 0 {
		b = set(b, "body.breakpoints", breakpoints)
	}
	return b
}

// WithOriginalPosition annotates a break event body with the authored
// position the script's source map reports for the break location.
func WithOriginalPosition(b []byte, source string, line, column int) []byte {
	b = set(b, "body.originalSource", source)
	b = set(b, "body.originalLine", line)
	b = set(b, "body.originalColumn", column)
	return b
}

// ExceptionEvent builds an exception event body.
func ExceptionEvent(seq int64, value interface{}, uncaught bool, loc script.Location) []byte {
	b := Event(seq, "exception")
	b = set(b, "body.uncaught", uncaught)
	b = set(b, "body.exception.text", stringify(value))
	b = set(b, "body.sourceLine", loc.Line)
	b = set(b, "body.script.id", loc.ScriptID)
	return b
}

// AfterCompileEvent builds an afterCompile event body.
func AfterCompileEvent(seq int64, rec *script.Record) []byte {
	b := Event(seq, "afterCompile")
	b = set(b, "body.script.id", rec.ID())
	b = set(b, "body.script.name", rec.Name())
	b = set(b, "body.script.lineOffset", rec.LineOffset())
	return b
}

// CompileErrorEvent builds a compileError event body.
func CompileErrorEvent(seq int64, name string, err error) []byte {
	b := Event(seq, "compileError")
	b = set(b, "body.script.name", name)
	if err != nil {
		b = set(b, "body.message", err.Error())
	}
	return b
}
