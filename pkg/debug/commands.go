package debug

import (
	"context"
	"log"

	"github.com/quarkscript/debug-go/pkg/breakpoint"
	"github.com/quarkscript/debug-go/pkg/command"
	"github.com/quarkscript/debug-go/pkg/event"
	"github.com/quarkscript/debug-go/pkg/mirror"
	"github.com/quarkscript/debug-go/pkg/protocol"
)

// drainCommands executes every queued command in enqueue order. Runs on the
// execution thread at safe points only.
func (s *Session) drainCommands() {
	for {
		msg, ok := s.queue.TryGet()
		if !ok {
			return
		}
		s.processMessage(msg)
	}
}

// PumpCommands blocks on the command queue, executing commands as they
// arrive, until a continue command resumes execution, the context is done,
// or termination is requested. A listener uses this to hold execution paused
// while a remote debugger drives the session.
func (s *Session) PumpCommands(ctx context.Context) error {
	s.resume = false
	for {
		for {
			msg, ok := s.queue.TryGet()
			if !ok {
				break
			}
			s.processMessage(msg)
			if s.resume {
				return nil
			}
		}
		if s.terminated.Load() {
			return ErrTerminated
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.Ready():
		}
	}
}

// processMessage decodes and executes one command, delivers the response to
// the message handler with the command's client data, and disposes the
// message.
func (s *Session) processMessage(msg *command.Message) {
	body := s.executeCommand(msg.Payload())
	s.dispatcher.Deliver(&event.Message{Body: body, ClientData: msg.ClientData()})
	msg.Dispose()
}

// executeCommand runs one decoded command and builds its response. Errors
// are reported in the response, never propagated: a malformed command must
// not take down the session.
func (s *Session) executeCommand(payload []byte) []byte {
	req, err := protocol.Decode(payload)
	if err != nil {
		if s.cfg.Debug {
			log.Printf("[QuarkScript Debug] Dropping malformed command: %v", err)
		}
		return protocol.ErrorResponse(s.nextSeq(), 0, "", err.Error())
	}

	switch req.Kind {
	case protocol.KindEvaluate:
		return s.cmdEvaluate(req)
	case protocol.KindContinue:
		return s.cmdContinue(req)
	case protocol.KindSuspend:
		s.RequestBreak()
		return protocol.Response(s.nextSeq(), req.Seq, req.Command, true, true)
	case protocol.KindSetBreakpoint:
		return s.cmdSetBreakpoint(req)
	case protocol.KindClearBreakpoint:
		s.ClearBreakpoint(req.Breakpoint.ID)
		return protocol.Response(s.nextSeq(), req.Seq, req.Command, true, s.curBreakID == 0)
	case protocol.KindChangeBreakpoint:
		return s.cmdChangeBreakpoint(req)
	case protocol.KindSetExceptionBreak:
		return s.cmdSetExceptionBreak(req)
	case protocol.KindScripts:
		return s.cmdScripts(req)
	default:
		return protocol.ErrorResponse(s.nextSeq(), req.Seq, req.Command,
			"unknown command: "+req.Command)
	}
}

func (s *Session) cmdEvaluate(req *protocol.Request) []byte {
	var frame *event.Frame
	if idx := req.Evaluate.FrameIndex; idx >= 0 && idx < len(s.curFrames) {
		frame = s.curFrames[idx]
	} else {
		frame = topFrame(s.curFrames)
	}

	var result interface{}
	var err error
	s.WithoutBreaks(func() {
		result, err = s.host.Evaluate(frame, req.Evaluate.Expression)
	})
	if err != nil {
		return protocol.ErrorResponse(s.nextSeq(), req.Seq, req.Command, err.Error())
	}

	resp := protocol.Response(s.nextSeq(), req.Seq, req.Command, true, s.curBreakID == 0)
	return protocol.WithBody(resp, "value",
		mirror.Capture("result", result, s.cfg.MaxMirrorDepth))
}

func (s *Session) cmdContinue(req *protocol.Request) []byte {
	action := ParseStepAction(req.Continue.StepAction)
	if action == StepNone {
		s.ClearStepping()
	} else {
		s.PrepareStepCount(action, req.Continue.StepCount)
	}
	s.resume = true
	return protocol.Response(s.nextSeq(), req.Seq, req.Command, true, true)
}

func (s *Session) cmdSetBreakpoint(req *protocol.Request) []byte {
	args := req.SetBreakpoint
	var id int
	switch args.TargetType {
	case "function":
		var err error
		id, err = s.SetFunctionBreakpoint(args.ScriptID, args.Function, args.Offset, args.Condition)
		if err != nil {
			return protocol.ErrorResponse(s.nextSeq(), req.Seq, req.Command, err.Error())
		}
	case "scriptName":
		id = s.SetBreakpoint(breakpoint.TargetByName(args.ScriptName, args.Line, args.Column), args.Condition)
	default:
		id = s.SetBreakpoint(breakpoint.TargetByID(args.ScriptID, args.Line, args.Column), args.Condition)
	}
	if args.IgnoreCount > 0 {
		s.ChangeIgnoreCount(id, args.IgnoreCount)
	}
	resp := protocol.Response(s.nextSeq(), req.Seq, req.Command, true, s.curBreakID == 0)
	return protocol.WithBody(resp, "breakpoint", id)
}

func (s *Session) cmdChangeBreakpoint(req *protocol.Request) []byte {
	args := req.Breakpoint
	ok := true
	if args.HasEnabled {
		ok = s.breakpoints.SetEnabled(args.ID, args.Enabled) && ok
	}
	if args.HasCond {
		ok = s.ChangeCondition(args.ID, args.Condition) && ok
	}
	if args.HasIgnore {
		ok = s.ChangeIgnoreCount(args.ID, args.IgnoreCount) && ok
	}
	if !ok {
		return protocol.ErrorResponse(s.nextSeq(), req.Seq, req.Command, "unknown breakpoint")
	}
	return protocol.Response(s.nextSeq(), req.Seq, req.Command, true, s.curBreakID == 0)
}

func (s *Session) cmdSetExceptionBreak(req *protocol.Request) []byte {
	caught, uncaught := s.exceptionPolicy()
	switch req.ExceptionBreak.Type {
	case "caught":
		caught = req.ExceptionBreak.Enabled
	case "uncaught":
		uncaught = req.ExceptionBreak.Enabled
	case "all":
		caught = req.ExceptionBreak.Enabled
		uncaught = req.ExceptionBreak.Enabled
	default:
		return protocol.ErrorResponse(s.nextSeq(), req.Seq, req.Command,
			"unknown exception break type: "+req.ExceptionBreak.Type)
	}
	s.ChangeBreakOnException(caught, uncaught)
	return protocol.Response(s.nextSeq(), req.Seq, req.Command, true, s.curBreakID == 0)
}

func (s *Session) cmdScripts(req *protocol.Request) []byte {
	type scriptInfo struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		LineOffset int    `json:"lineOffset"`
	}
	all := s.scripts.All()
	infos := make([]scriptInfo, 0, len(all))
	for _, rec := range all {
		infos = append(infos, scriptInfo{ID: rec.ID(), Name: rec.Name(), LineOffset: rec.LineOffset()})
	}
	resp := protocol.Response(s.nextSeq(), req.Seq, req.Command, true, s.curBreakID == 0)
	return protocol.WithBody(resp, "scripts", infos)
}
