package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/axscript/internal/report"
)

func isLua(name string) bool {
	return strings.HasSuffix(name, ".lua")
}

func newWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{0, "NONE"},
		{OpCreate, "CREATE"},
		{OpCreate | OpWrite, "CREATE|WRITE"},
		{OpRemove | OpRename, "REMOVE|RENAME"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestWatcher_Watch(t *testing.T) {
	w := newWatcher(t)
	dir := t.TempDir()

	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(dir); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("second Watch() = %v, want ErrAlreadyWatching", err)
	}
	if err := w.Watch(filepath.Join(dir, "missing")); !errors.Is(err, ErrPathNotExist) {
		t.Errorf("Watch(missing) = %v, want ErrPathNotExist", err)
	}

	file := filepath.Join(dir, "f.lua")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(file); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Watch(file) = %v, want ErrNotDirectory", err)
	}

	if paths := w.WatchedPaths(); len(paths) != 1 {
		t.Errorf("WatchedPaths() = %v", paths)
	}
}

func TestWatcher_DebouncesAndFilters(t *testing.T) {
	w := newWatcher(t, WithDebounce(50*time.Millisecond), WithFilter(isLua))
	dir := t.TempDir()
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "new.lua")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(strings.Repeat("-", i)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ev := waitEvent(t, w)
	if ev.Path != path {
		t.Errorf("Path = %q, want %q", ev.Path, path)
	}
	if !ev.Op.Has(OpCreate) {
		t.Errorf("Op = %v, want CREATE", ev.Op)
	}

	select {
	case extra := <-w.Events():
		t.Errorf("burst should coalesce, got extra event %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Flush(t *testing.T) {
	w := newWatcher(t, WithDebounce(time.Hour))
	dir := t.TempDir()
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.lua"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		w.Flush()
		select {
		case ev := <-w.Events():
			if filepath.Base(ev.Path) != "a.lua" {
				t.Errorf("Path = %q", ev.Path)
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("Flush did not deliver the pending event")
}

func TestWatcher_Close(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel should be closed")
	}
	if err := w.Watch(t.TempDir()); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Watch after Close = %v, want ErrWatcherClosed", err)
	}
}

// fakeLoader records load calls.
type fakeLoader struct {
	mu     sync.Mutex
	loaded map[string]bool
	calls  []string
	err    error
}

func newFakeLoader(ids ...string) *fakeLoader {
	f := &fakeLoader{loaded: make(map[string]bool)}
	for _, id := range ids {
		f.loaded[id] = true
	}
	return f
}

func (f *fakeLoader) IsLoaded(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded[id]
}

func (f *fakeLoader) LoadFile(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filepath.Base(path))
	if f.err != nil {
		return f.err
	}
	f.loaded[filepath.Base(path)] = true
	return nil
}

func (f *fakeLoader) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestScripts_Handle(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.lua")
	fresh := filepath.Join(dir, "new.lua")
	for _, p := range []string{existing, fresh} {
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name      string
		ev        Event
		wantCalls int
		wantWarn  bool
	}{
		{"new file", Event{Path: fresh, Op: OpCreate}, 1, false},
		{"renamed in", Event{Path: fresh, Op: OpRename}, 1, false},
		{"renamed away", Event{Path: filepath.Join(dir, "gone.lua"), Op: OpRename}, 0, false},
		{"removed", Event{Path: fresh, Op: OpRemove}, 0, false},
		{"loaded script edited", Event{Path: existing, Op: OpWrite}, 0, true},
		{"loaded script removed", Event{Path: existing, Op: OpRemove}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newFakeLoader("old.lua")
			rep := &report.Collector{}
			s := NewScripts(nil, loader, WithReporter(rep))

			s.Handle(context.Background(), tt.ev)

			if got := len(loader.Calls()); got != tt.wantCalls {
				t.Errorf("load calls = %d, want %d", got, tt.wantCalls)
			}
			warned := rep.Len() == 1 && errors.Is(rep.Entries()[0].Err, ErrScriptChanged)
			if warned != tt.wantWarn {
				t.Errorf("reports = %+v", rep.Entries())
			}
		})
	}
}

func TestScripts_RunLoadsNewFiles(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, WithDebounce(20*time.Millisecond), WithFilter(isLua))
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}

	loader := newFakeLoader()
	s := NewScripts(w, loader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(dir, "late.lua"), []byte(`forPackage("x")`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !loader.IsLoaded("late.lua") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if calls := loader.Calls(); len(calls) != 1 || calls[0] != "late.lua" {
		t.Errorf("calls = %v", calls)
	}
}

func TestLoaderFuncs(t *testing.T) {
	var loaded string
	l := LoaderFuncs{
		Loaded: func(id string) bool { return id == "a.lua" },
		Load: func(_ context.Context, path string) error {
			loaded = path
			return nil
		},
	}
	if !l.IsLoaded("a.lua") || l.IsLoaded("b.lua") {
		t.Error("IsLoaded not forwarded")
	}
	if err := l.LoadFile(context.Background(), "/x/b.lua"); err != nil || loaded != "/x/b.lua" {
		t.Errorf("LoadFile not forwarded: %q, %v", loaded, err)
	}
}
