package lua

import (
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/axscript/internal/handler"
	"github.com/dshills/axscript/internal/prefs"
	"github.com/dshills/axscript/internal/script"
)

// api binds the script API globals of one script to its session.
type api struct {
	sess   *script.Session
	exec   *Executor
	logger *slog.Logger
}

// install sets the script API globals on L.
func (a *api) install(L *lua.LState) {
	for name, fn := range map[string]lua.LGFunction{
		"forPackage":               a.declarePackage,
		"declarePackage":           a.declarePackage,
		"forClass":                 a.registerClass,
		"registerClass":            a.registerClass,
		"speak":                    a.speak,
		"speakNotification":        a.speakNotification,
		"nextShouldNotInterrupt":   a.querySuppressed,
		"queryInterruptSuppressed": a.querySuppressed,
		"suppressNextInterrupt":    a.suppressNextInterrupt,
		"preference":               a.preference,
		"getPreference":            a.getPreference,
		"print":                    a.print,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

// declarePackage(name)
func (a *api) declarePackage(L *lua.LState) int {
	a.sess.DeclarePackage(L.CheckString(1))
	return 0
}

// registerClass(ref, table) returns true, or false and a message. A bad
// reference does not abort the script.
func (a *api) registerClass(L *lua.LState) int {
	ref := L.CheckString(1)
	tbl := L.CheckTable(2)

	events := make(map[string]handler.Handler)
	tbl.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok {
			return
		}
		fn, ok := v.(*lua.LFunction)
		if !ok {
			// Plain fields are handler state.
			return
		}
		events[string(name)] = &luaHandler{
			exec: a.exec,
			name: ref + "." + string(name),
			fn:   fn,
			self: tbl,
		}
	})

	if _, err := a.sess.RegisterClass(ref, events); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// speak(text [, interrupt]). Without a second argument the coordinator
// decides whether to interrupt.
func (a *api) speak(L *lua.LState) int {
	text := L.CheckString(1)

	var err error
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		err = a.sess.SpeakInterrupt(text, lua.LVAsBool(L.Get(2)))
	} else {
		err = a.sess.Speak(text)
	}
	return a.pushSpeechResult(L, err)
}

// speakNotification(text)
func (a *api) speakNotification(L *lua.LState) int {
	return a.pushSpeechResult(L, a.sess.SpeakNotification(L.CheckString(1)))
}

func (a *api) pushSpeechResult(L *lua.LState, err error) int {
	if err != nil {
		a.logger.Warn("speech failed", slog.Any("error", err))
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LTrue)
	return 1
}

// nextShouldNotInterrupt() / queryInterruptSuppressed()
func (a *api) querySuppressed(L *lua.LState) int {
	L.Push(lua.LBool(a.sess.QueryInterruptSuppressed()))
	return 1
}

// suppressNextInterrupt()
func (a *api) suppressNextInterrupt(L *lua.LState) int {
	a.sess.SuppressNextInterrupt()
	return 0
}

// preference{name=, title=, summary=, default=} returns the effective value,
// or nil and a message.
func (a *api) preference(L *lua.LState) int {
	tbl := L.CheckTable(1)
	def := prefs.Definition{
		Name:    tableString(tbl, "name"),
		Title:   tableString(tbl, "title"),
		Summary: tableString(tbl, "summary"),
		Default: ToGoValue(tbl.RawGetString("default")),
	}

	v, err := a.sess.DefinePreference(def)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(ToLuaValue(L, v))
	return 1
}

// getPreference(name)
func (a *api) getPreference(L *lua.LState) int {
	v, ok := a.sess.Preference(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(ToLuaValue(L, v))
	return 1
}

// print(...) goes to the script's logger.
func (a *api) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	a.logger.Info(strings.Join(parts, "\t"))
	return 0
}

func tableString(t *lua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}
