package lua

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/axscript/internal/event"
	"github.com/dshills/axscript/internal/handler"
)

// luaHandler is one Lua function bound to a class and event type. self is
// the table the function was declared in.
type luaHandler struct {
	exec *Executor
	name string
	fn   *lua.LFunction
	self *lua.LTable
}

// Handle implements handler.Handler by calling fn(self, event) on the
// script's executor.
func (h *luaHandler) Handle(ctx context.Context, ev *event.UIEvent) (handler.Outcome, error) {
	var outcome handler.Outcome
	err := h.exec.Execute(ctx, func(s *State) error {
		results, err := s.Call(ctx, h.fn, h.self, eventTable(s.L, ev))
		if err != nil {
			return err
		}
		outcome = outcomeOf(results)
		return nil
	})
	if err != nil {
		return handler.NotHandled, fmt.Errorf("%s: %w", h.name, err)
	}
	return outcome, nil
}

// outcomeOf maps a handler's return values to an Outcome. Only the first
// value counts.
func outcomeOf(results []lua.LValue) handler.Outcome {
	if len(results) == 0 || results[0] == lua.LNil {
		return handler.NoReturn
	}
	return handler.FromBool(lua.LVAsBool(results[0]))
}

// eventTable builds the table a handler receives. Payload map entries are
// copied in first so the identifying fields always win.
func eventTable(L *lua.LState, ev *event.UIEvent) *lua.LTable {
	t := L.NewTable()
	switch p := ev.Payload.(type) {
	case map[string]any:
		for k, v := range p {
			t.RawSetString(k, ToLuaValue(L, v))
		}
	case nil:
	default:
		t.RawSetString("payload", ToLuaValue(L, p))
	}
	t.RawSetString("id", lua.LString(ev.ID))
	t.RawSetString("package", lua.LString(ev.Package))
	t.RawSetString("class", lua.LString(ev.Class))
	t.RawSetString("type", lua.LString(ev.Type.String()))
	return t
}
