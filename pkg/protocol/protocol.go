// Package protocol implements the JSON wire format for remote debugging.
//
// Requests are {"seq":N,"type":"request","command":C,"arguments":{...}};
// responses pair by seq ({"type":"response","request_seq":N}); events carry
// {"type":"event","event":"break"|"exception"|"afterCompile"|"compileError"}.
//
// Inbound payloads are decoded once at this boundary into a tagged Request
// variant; handlers never re-parse JSON.
package protocol

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Command names understood by the session.
const (
	CmdEvaluate          = "evaluate"
	CmdContinue          = "continue"
	CmdSuspend           = "suspend"
	CmdSetBreakpoint     = "setbreakpoint"
	CmdClearBreakpoint   = "clearbreakpoint"
	CmdChangeBreakpoint  = "changebreakpoint"
	CmdSetExceptionBreak = "setexceptionbreak"
	CmdScripts           = "scripts"
)

// Kind tags the decoded command variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindEvaluate
	KindContinue
	KindSuspend
	KindSetBreakpoint
	KindClearBreakpoint
	KindChangeBreakpoint
	KindSetExceptionBreak
	KindScripts
)

// ErrMalformed is returned for unparsable or non-request payloads.
var ErrMalformed = errors.New("malformed request")

// EvaluateArgs are the arguments of an evaluate request.
type EvaluateArgs struct {
	Expression string
	FrameIndex int // -1: current frame if halted, else global scope
}

// ContinueArgs are the arguments of a continue request.
type ContinueArgs struct {
	StepAction string // "", "in", "next", "out"
	StepCount  int
}

// SetBreakpointArgs are the arguments of a setbreakpoint request.
type SetBreakpointArgs struct {
	TargetType  string // "script", "scriptName" or "function"
	ScriptID    int64
	ScriptName  string
	Function    string
	Line        int
	Column      int
	Offset      int
	Condition   string
	IgnoreCount int
}

// ChangeBreakpointArgs are the arguments of changebreakpoint and the id of
// clearbreakpoint.
type ChangeBreakpointArgs struct {
	ID          int
	HasEnabled  bool
	Enabled     bool
	HasCond     bool
	Condition   string
	HasIgnore   bool
	IgnoreCount int
}

// SetExceptionBreakArgs are the arguments of a setexceptionbreak request.
type SetExceptionBreakArgs struct {
	Type    string // "caught", "uncaught" or "all"
	Enabled bool
}

// Request is one decoded debugger command.
type Request struct {
	Seq     int64
	Command string
	Kind    Kind

	Evaluate       *EvaluateArgs
	Continue       *ContinueArgs
	SetBreakpoint  *SetBreakpointArgs
	Breakpoint     *ChangeBreakpointArgs
	ExceptionBreak *SetExceptionBreakArgs
}

// Decode parses a request payload. Unknown commands decode to KindUnknown
// with the seq preserved, so the session can answer with an error response
// rather than dropping the message.
func Decode(data []byte) (*Request, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if root.Get("type").String() != "request" {
		return nil, fmt.Errorf("%w: type %q is not a request", ErrMalformed, root.Get("type").String())
	}

	req := &Request{
		Seq:     root.Get("seq").Int(),
		Command: root.Get("command").String(),
	}
	args := root.Get("arguments")

	switch req.Command {
	case CmdEvaluate:
		req.Kind = KindEvaluate
		frame := -1
		if f := args.Get("frame"); f.Exists() {
			frame = int(f.Int())
		}
		req.Evaluate = &EvaluateArgs{
			Expression: args.Get("expression").String(),
			FrameIndex: frame,
		}
	case CmdContinue:
		req.Kind = KindContinue
		req.Continue = &ContinueArgs{
			StepAction: args.Get("stepaction").String(),
			StepCount:  int(args.Get("stepcount").Int()),
		}
	case CmdSuspend:
		req.Kind = KindSuspend
	case CmdSetBreakpoint:
		req.Kind = KindSetBreakpoint
		req.SetBreakpoint = &SetBreakpointArgs{
			TargetType:  args.Get("type").String(),
			ScriptID:    args.Get("target").Int(),
			ScriptName:  args.Get("target").String(),
			Function:    args.Get("function").String(),
			Line:        int(args.Get("line").Int()),
			Column:      int(args.Get("column").Int()),
			Offset:      int(args.Get("offset").Int()),
			Condition:   args.Get("condition").String(),
			IgnoreCount: int(args.Get("ignoreCount").Int()),
		}
	case CmdClearBreakpoint:
		req.Kind = KindClearBreakpoint
		req.Breakpoint = &ChangeBreakpointArgs{ID: int(args.Get("breakpoint").Int())}
	case CmdChangeBreakpoint:
		req.Kind = KindChangeBreakpoint
		cb := &ChangeBreakpointArgs{ID: int(args.Get("breakpoint").Int())}
		if v := args.Get("enabled"); v.Exists() {
			cb.HasEnabled = true
			cb.Enabled = v.Bool()
		}
		if v := args.Get("condition"); v.Exists() {
			cb.HasCond = true
			cb.Condition = v.String()
		}
		if v := args.Get("ignoreCount"); v.Exists() {
			cb.HasIgnore = true
			cb.IgnoreCount = int(v.Int())
		}
		req.Breakpoint = cb
	case CmdSetExceptionBreak:
		req.Kind = KindSetExceptionBreak
		req.ExceptionBreak = &SetExceptionBreakArgs{
			Type:    args.Get("type").String(),
			Enabled: args.Get("enabled").Bool(),
		}
	case CmdScripts:
		req.Kind = KindScripts
	default:
		req.Kind = KindUnknown
	}
	return req, nil
}

// CommandName extracts the command of a raw request without a full decode.
// Used by transports to spot commands that must act immediately (suspend)
// rather than wait for a safe point.
func CommandName(data []byte) string {
	return gjson.GetBytes(data, "command").String()
}
