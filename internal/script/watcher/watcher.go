package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op describes a set of file operations.
type Op uint8

// File operations.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// Has reports whether o contains x.
func (o Op) Has(x Op) bool {
	return o&x != 0
}

// String returns a string representation of the operation set.
func (o Op) String() string {
	var parts []string
	for _, p := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
	} {
		if o.Has(p.op) {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Event is a coalesced change to one file.
type Event struct {
	// Path is the file that changed.
	Path string

	// Op holds every operation seen during the debounce window.
	Op Op

	// Time is when the last operation was seen.
	Time time.Time
}

// DefaultDebounce is how long a file must be quiet before its event fires.
const DefaultDebounce = 100 * time.Millisecond

type config struct {
	debounce   time.Duration
	bufferSize int
	filter     func(name string) bool
}

// Option configures a Watcher.
type Option func(*config)

// WithDebounce sets the quiet period before an event fires.
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithBufferSize sets the event channel capacity.
func WithBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithFilter limits events to files whose base name passes fn.
func WithFilter(fn func(name string) bool) Option {
	return func(c *config) {
		c.filter = fn
	}
}

type pendingEvent struct {
	event Event
	timer *time.Timer
}

// Watcher watches directories with fsnotify and debounces events per file.
// Subdirectories are not watched.
type Watcher struct {
	fsw *fsnotify.Watcher
	cfg config

	mu      sync.Mutex
	paths   map[string]bool
	pending map[string]*pendingEvent
	closed  bool

	events  chan Event
	errors  chan error
	closeCh chan struct{}
	wg      sync.WaitGroup

	totalEvents atomic.Int64
	dropped     atomic.Int64
}

// New creates a watcher and starts its event loop.
func New(opts ...Option) (*Watcher, error) {
	cfg := config{debounce: DefaultDebounce, bufferSize: 100}
	for _, opt := range opts {
		opt(&cfg)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		cfg:     cfg,
		paths:   make(map[string]bool),
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, cfg.bufferSize),
		errors:  make(chan error, cfg.bufferSize),
		closeCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Watch starts watching dir.
func (w *Watcher) Watch(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[abs] {
		return ErrAlreadyWatching
	}
	if err := w.fsw.Add(abs); err != nil {
		return err
	}
	w.paths[abs] = true
	return nil
}

// WatchedPaths returns the watched directories in sorted order.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Events returns the debounced event channel. It is closed by Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel. It is closed by Close.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher. Pending events are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()

	// Timers that already fired hold the lock while sending.
	w.mu.Lock()
	close(w.events)
	close(w.errors)
	w.mu.Unlock()
	return err
}

// Stats reports how many events were delivered and dropped.
func (w *Watcher) Stats() (delivered, dropped int64) {
	return w.totalEvents.Load(), w.dropped.Load()
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	var o Op
	if op.Has(fsnotify.Create) {
		o |= OpCreate
	}
	if op.Has(fsnotify.Write) {
		o |= OpWrite
	}
	if op.Has(fsnotify.Remove) {
		o |= OpRemove
	}
	if op.Has(fsnotify.Rename) {
		o |= OpRename
	}
	return o
}

func (w *Watcher) handle(fsev fsnotify.Event) {
	op := convertOp(fsev.Op)
	if op == 0 {
		return
	}
	if w.cfg.filter != nil && !w.cfg.filter(filepath.Base(fsev.Name)) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	now := time.Now()
	if p, ok := w.pending[fsev.Name]; ok {
		p.event.Op |= op
		p.event.Time = now
		p.timer.Reset(w.cfg.debounce)
		return
	}

	path := fsev.Name
	p := &pendingEvent{event: Event{Path: path, Op: op, Time: now}}
	p.timer = time.AfterFunc(w.cfg.debounce, func() { w.fire(path) })
	w.pending[path] = p
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[path]
	if !ok || w.closed {
		return
	}
	delete(w.pending, path)

	select {
	case w.events <- p.event:
		w.totalEvents.Add(1)
	default:
		w.dropped.Add(1)
	}
}

// Flush fires every pending event immediately.
func (w *Watcher) Flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path, p := range w.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	w.mu.Unlock()

	for _, path := range paths {
		w.fire(path)
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}
