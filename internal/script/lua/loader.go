package lua

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/axscript/internal/script"
)

// Extension is the file extension of Lua scripts.
const Extension = ".lua"

// DefaultLoadTimeout bounds how long a script's top-level chunk may run.
const DefaultLoadTimeout = 5 * time.Second

// Script is one loaded Lua script.
type Script struct {
	id      string
	path    string
	state   *State
	exec    *Executor
	session *script.Session
}

// ID returns the script identifier, the file's base name for files.
func (s *Script) ID() string {
	return s.id
}

// Path returns the file the script was loaded from, or "" for LoadString.
func (s *Script) Path() string {
	return s.path
}

// Session returns the script's API session.
func (s *Script) Session() *script.Session {
	return s.session
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoadTimeout bounds the top-level execution of each script.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.loadTimeout = d
		}
	}
}

// WithQueueSize sets the executor queue size of each script.
func WithQueueSize(n int) LoaderOption {
	return func(l *Loader) {
		l.queueSize = n
	}
}

// WithStateOptions sets options for every script state.
func WithStateOptions(opts ...StateOption) LoaderOption {
	return func(l *Loader) {
		l.stateOpts = append(l.stateOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// Loader loads Lua scripts into a script host. Registrations made by a
// script are permanent, so a loaded script stays resident until Close.
//
// Loader is safe for concurrent use.
type Loader struct {
	host        *script.Host
	logger      *slog.Logger
	loadTimeout time.Duration
	queueSize   int
	stateOpts   []StateOption

	mu      sync.Mutex
	scripts map[string]*Script
	order   []string
	closed  bool
}

// NewLoader creates a loader registering into host.
func NewLoader(host *script.Host, opts ...LoaderOption) *Loader {
	l := &Loader{
		host:        host,
		logger:      logger,
		loadTimeout: DefaultLoadTimeout,
		queueSize:   64,
		scripts:     make(map[string]*Script),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads the script at path. Its ID is the file's base name.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("read script: %w", err)
		l.host.Reporter().Report(filepath.Base(path), err)
		return nil, err
	}
	return l.load(ctx, filepath.Base(path), path, string(src))
}

// LoadString loads src under id.
func (l *Loader) LoadString(ctx context.Context, id, src string) (*Script, error) {
	return l.load(ctx, id, "", src)
}

// LoadDir loads every *.lua file in dir in file name order. Scripts already
// loaded are skipped. Load failures are reported and joined into the
// returned error; the remaining files are still loaded.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]*Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read script dir: %w", err)
	}

	var (
		loaded []*Script
		errs   []error
	)
	for _, entry := range entries {
		if entry.IsDir() || !IsScript(entry.Name()) {
			continue
		}
		if l.IsLoaded(entry.Name()) {
			continue
		}
		s, err := l.LoadFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			if s == nil {
				continue
			}
		}
		loaded = append(loaded, s)
	}
	return loaded, errors.Join(errs...)
}

// IsScript reports whether name looks like a Lua script.
func IsScript(name string) bool {
	return strings.EqualFold(filepath.Ext(name), Extension) && !strings.HasPrefix(filepath.Base(name), ".")
}

// load runs src as script id. A script that fails to compile is discarded.
// A script whose chunk raises an error after it started is kept, because
// anything it registered before the error stays bound; the error is
// reported and returned together with the script.
func (l *Loader) load(ctx context.Context, id, path, src string) (*Script, error) {
	ctx, span := tracer.Start(ctx, "lua.Load", trace.WithAttributes(attribute.String("script", id)))
	defer span.End()

	s, err := l.reserve(id, path)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	loadCtx, cancel := context.WithTimeout(ctx, l.loadTimeout)
	defer cancel()

	start := time.Now()
	err = s.exec.Execute(loadCtx, func(st *State) error {
		fn, err := st.Compile(id, src)
		if err != nil {
			return err
		}
		_, err = st.Call(loadCtx, fn)
		return err
	})
	if err == nil {
		l.logger.Debug("loaded script",
			slog.String("script", id),
			slog.Duration("duration", time.Since(start)),
		)
		return s, nil
	}

	err = fmt.Errorf("load %s: %w", id, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	l.host.Reporter().Report(id, err)

	if errors.Is(err, ErrCompile) {
		l.discard(s)
		return nil, err
	}
	return s, err
}

func (l *Loader) reserve(id, path string) (*Script, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoaderClosed
	}
	if _, ok := l.scripts[id]; ok {
		return nil, fmt.Errorf("%s: %w", id, ErrAlreadyLoaded)
	}

	s := &Script{
		id:      id,
		path:    path,
		state:   NewState(l.stateOpts...),
		session: l.host.NewSession(id),
	}
	s.exec = NewExecutor(s.state, l.queueSize)

	a := &api{sess: s.session, exec: s.exec, logger: l.logger.With(slog.String("script", id))}
	a.install(s.state.L)
	go s.exec.Run()

	l.scripts[id] = s
	l.order = append(l.order, id)
	return s, nil
}

func (l *Loader) discard(s *Script) {
	l.mu.Lock()
	if l.scripts[s.id] == s {
		delete(l.scripts, s.id)
		for i, id := range l.order {
			if id == s.id {
				l.order = append(l.order[:i], l.order[i+1:]...)
				break
			}
		}
	}
	l.mu.Unlock()
	s.exec.Close()
}

// IsLoaded reports whether a script with id is resident.
func (l *Loader) IsLoaded(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.scripts[id]
	return ok
}

// Script returns the resident script with id.
func (l *Loader) Script(id string) (*Script, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.scripts[id]
	return s, ok
}

// Loaded returns the IDs of resident scripts in load order.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Close stops every script executor. Bindings registered by the scripts
// remain in the registry but fail with ErrExecutorClosed when dispatched.
func (l *Loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	scripts := make([]*Script, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		scripts = append(scripts, l.scripts[l.order[i]])
	}
	l.mu.Unlock()

	for _, s := range scripts {
		s.exec.Close()
	}
	return nil
}
