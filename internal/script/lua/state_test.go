package lua

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func TestNewState_Sandbox(t *testing.T) {
	s := NewState()
	defer s.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "io", "os", "debug"} {
		if v := s.L.GetGlobal(name); v != lua.LNil {
			t.Errorf("global %q should be nil, got %s", name, v.Type())
		}
	}
	for _, name := range []string{"string", "table", "math", "pairs", "tostring"} {
		if v := s.L.GetGlobal(name); v == lua.LNil {
			t.Errorf("global %q should be available", name)
		}
	}
}

func TestState_DoString(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{name: "ok", code: `x = string.upper("a")`},
		{name: "syntax", code: `x = = 1`, wantErr: ErrCompile},
		{name: "runtime", code: `error("boom")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			defer s.Close()

			err := s.DoString(context.Background(), tt.name, tt.code)
			switch {
			case tt.name == "ok" && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case tt.name == "runtime" && err == nil:
				t.Fatal("expected runtime error")
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestState_CallReturnsValues(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(context.Background(), "def", `function pair(a) return a, a * 2 end
function none() end`); err != nil {
		t.Fatal(err)
	}

	results, err := s.Call(context.Background(), s.L.GetGlobal("pair").(*lua.LFunction), lua.LNumber(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0] != lua.LNumber(3) || results[1] != lua.LNumber(6) {
		t.Errorf("results = %v", results)
	}
	if top := s.L.GetTop(); top != 0 {
		t.Errorf("stack not balanced, top = %d", top)
	}

	results, err = s.Call(context.Background(), s.L.GetGlobal("none").(*lua.LFunction))
	if err != nil || results == nil || len(results) != 0 {
		t.Errorf("none() = %v, %v", results, err)
	}
}

func TestState_ContextAbortsLoop(t *testing.T) {
	s := NewState()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.DoString(ctx, "spin", `while true do end`)
	if err == nil {
		t.Fatal("expected the loop to be aborted")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("abort took %s", time.Since(start))
	}
}

func TestState_Closed(t *testing.T) {
	s := NewState()
	s.Close()
	s.Close()

	if err := s.DoString(context.Background(), "x", "x = 1"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString err = %v", err)
	}
	if _, err := s.Compile("x", "x = 1"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Compile err = %v", err)
	}
}

func TestState_CallStackSize(t *testing.T) {
	s := NewState(WithCallStackSize(16))
	defer s.Close()

	err := s.DoString(context.Background(), "deep", `local function f(n) return 1 + f(n + 1) end f(1)`)
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "stack") {
		t.Errorf("expected stack overflow, got %v", err)
	}
}
