package minihost

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/quarkscript/debug-go/pkg/event"
)

// Evaluate runs an expression in the scope of a paused frame. Globals are
// visible everywhere; frame locals shadow them. The session wraps calls in
// a suppression scope, so breakpoints inside evaluation never re-enter the
// debugger.
func (h *Host) Evaluate(frame *event.Frame, expression string) (interface{}, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	for name, v := range h.globals {
		L.SetGlobal(name, toLua(L, v))
	}
	if frame != nil {
		for name, v := range frame.Locals {
			L.SetGlobal(name, toLua(L, v))
		}
	}

	if err := L.DoString("return (" + expression + ")"); err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return fromLua(ret), nil
}

func toLua(L *lua.LState, v interface{}) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	default:
		return lua.LString(fmt.Sprintf("%v", x))
	}
}

func fromLua(v lua.LValue) interface{} {
	switch x := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	default:
		return v.String()
	}
}
