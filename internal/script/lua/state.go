package lua

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// DefaultCallStackSize bounds Lua call depth per script.
const DefaultCallStackSize = 256

// State is a sandboxed gopher-lua state.
//
// State is not goroutine-safe. It is only touched from its script's
// Executor goroutine.
type State struct {
	L      *lua.LState
	closed bool
}

// StateOption configures a State.
type StateOption func(*lua.Options)

// WithCallStackSize sets the maximum Lua call depth.
func WithCallStackSize(n int) StateOption {
	return func(o *lua.Options) {
		if n > 0 {
			o.CallStackSize = n
		}
	}
}

// NewState creates a state with only the safe standard libraries opened.
func NewState(opts ...StateOption) *State {
	options := lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: DefaultCallStackSize,
	}
	for _, opt := range opts {
		opt(&options)
	}

	L := lua.NewState(options)
	openSafeLibraries(L)
	removeUnsafeGlobals(L)
	return &State{L: L}
}

// openSafeLibraries opens base, table, string and math. io, os, debug,
// channel, coroutine and package are left closed.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// removeUnsafeGlobals strips base functions that load code from disk or
// from strings.
func removeUnsafeGlobals(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// DoString runs a chunk under ctx. If ctx is cancelled the VM stops.
func (s *State) DoString(ctx context.Context, name, code string) (err error) {
	if s.closed {
		return ErrStateClosed
	}

	fn, err := s.Compile(name, code)
	if err != nil {
		return err
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()
	defer recoverLua(&err)

	s.L.Push(fn)
	return s.L.PCall(0, lua.MultRet, nil)
}

// Compile parses code into a function without running it.
func (s *State) Compile(name, code string) (*lua.LFunction, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	fn, err := s.L.Load(strings.NewReader(code), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompile, name, err)
	}
	return fn, nil
}

// Call calls fn with args under ctx and returns every value it returned.
// The returned slice is empty, not nil, when fn returns nothing.
func (s *State) Call(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) (results []lua.LValue, err error) {
	if s.closed {
		return nil, ErrStateClosed
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()
	defer recoverLua(&err)

	top := s.L.GetTop()
	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}
	if err := s.L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, err
	}

	n := s.L.GetTop() - top
	results = make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = s.L.Get(top + i + 1)
	}
	s.L.Pop(n)
	return results, nil
}

// Close releases the Lua state.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}

func recoverLua(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("lua panic: %v", r)
	}
}
