// Package app wires the axscript runtime together and runs it.
//
// An Application owns the handler registry, the speech coordinator, the
// dispatch engine, the Lua loader and the host link. Events arrive as JSON
// lines on stdin, or as WebSocket frames when a listen address is
// configured. Speech leaves on the same channel.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dshills/axscript/internal/config"
	"github.com/dshills/axscript/internal/dispatch"
	"github.com/dshills/axscript/internal/event"
	"github.com/dshills/axscript/internal/hostlink"
	"github.com/dshills/axscript/internal/prefs"
	"github.com/dshills/axscript/internal/registry"
	"github.com/dshills/axscript/internal/report"
	"github.com/dshills/axscript/internal/script"
	"github.com/dshills/axscript/internal/script/lua"
	"github.com/dshills/axscript/internal/script/watcher"
	"github.com/dshills/axscript/internal/speech"
)

const scopeName = "github.com/dshills/axscript/internal/app"

// Options configures the application.
type Options struct {
	// Stdin and Stdout carry JSON-line frames when no listen address is
	// configured. They default to os.Stdin and os.Stdout.
	Stdin  io.Reader
	Stdout io.Writer

	// Logger receives runtime logs. Defaults to the OpenTelemetry bridge.
	Logger *slog.Logger

	// Preferences backs script preferences. Defaults to an in-memory store.
	Preferences prefs.Store

	// Reporter receives script errors. Defaults to a log reporter on
	// Logger.
	Reporter report.Reporter

	// Sink overrides where speech goes. By default speech is sent to the
	// host as frames.
	Sink speech.Sink
}

// Application is the running accessibility script runtime.
type Application struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	registry    *registry.Registry
	coordinator *speech.Coordinator
	speaker     *speech.Speaker
	reporter    report.Reporter
	limited     *report.Limited
	engine      *dispatch.Engine
	host        *script.Host
	loader      *lua.Loader

	// Exactly one of server and encoder is set.
	server  *hostlink.Server
	encoder *hostlink.Encoder

	running atomic.Bool
}

// New creates an Application from cfg. Nothing runs until Run.
func New(cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = otelslog.NewLogger(scopeName)
	}
	if opts.Preferences == nil {
		opts.Preferences = prefs.NewMemory()
	}

	app := &Application{
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger,
	}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap builds the components in dependency order.
func (app *Application) bootstrap() error {
	types, err := app.cfg.SpeechEventTypes()
	if err != nil {
		return &InitError{Component: "speech coordinator", Err: err}
	}

	// 1. Registry and coordinator
	app.registry = registry.New()
	app.coordinator = speech.NewCoordinator(speech.WithSpeechEvents(types...))

	// 2. Error reporting
	rep := app.opts.Reporter
	if rep == nil {
		rep = report.NewLogReporter(app.logger)
	}
	if app.cfg.Report.Rate > 0 {
		app.limited = report.NewLimited(rep, rate.Limit(app.cfg.Report.Rate), app.cfg.Report.Burst)
		rep = app.limited
	}
	app.reporter = rep

	// 3. Dispatch engine
	app.engine = dispatch.NewEngine(app.registry,
		dispatch.WithHandlerTimeout(app.cfg.Dispatch.HandlerTimeout.Std()),
		dispatch.WithSpeechObserver(app.coordinator),
		dispatch.WithReporter(app.reporter),
		dispatch.WithLogger(app.logger),
	)

	// 4. Host link, which is also the speech sink
	var sink speech.Sink
	if app.cfg.Host.Listen != "" {
		app.server = hostlink.NewServer(app.engine, hostlink.WithLogger(app.logger))
		sink = app.server
	} else {
		app.encoder = hostlink.NewEncoder(app.opts.Stdout)
		sink = app.encoder
	}
	if app.opts.Sink != nil {
		sink = app.opts.Sink
	}
	app.speaker = speech.NewSpeaker(sink, app.coordinator)

	// 5. Script host and loader
	app.host = script.NewHost(app.registry, app.speaker,
		script.WithReporter(app.reporter),
		script.WithPreferences(app.opts.Preferences),
		script.WithLogger(app.logger),
	)
	app.loader = lua.NewLoader(app.host,
		lua.WithLoadTimeout(app.cfg.Scripts.LoadTimeout.Std()),
		lua.WithLogger(app.logger),
	)
	return nil
}

// Registry returns the handler registry.
func (app *Application) Registry() *registry.Registry {
	return app.registry
}

// Coordinator returns the speech coordinator.
func (app *Application) Coordinator() *speech.Coordinator {
	return app.coordinator
}

// Loader returns the Lua script loader.
func (app *Application) Loader() *lua.Loader {
	return app.loader
}

// DroppedReports returns the number of script reports suppressed by the
// report rate limit. It is zero when limiting is off.
func (app *Application) DroppedReports() uint64 {
	if app.limited == nil {
		return 0
	}
	return app.limited.Dropped()
}

// Dispatch routes one event through the engine.
func (app *Application) Dispatch(ctx context.Context, ev *event.UIEvent) dispatch.Result {
	return app.engine.Dispatch(ctx, ev)
}

// LoadScripts loads every configured script directory in order. Script
// failures are reported and do not stop loading. It returns the number of
// scripts loaded.
func (app *Application) LoadScripts(ctx context.Context) int {
	before := len(app.loader.Loaded())
	for _, dir := range app.cfg.Scripts.Dirs {
		if _, err := app.loader.LoadDir(ctx, dir); err != nil {
			app.logger.Warn("script directory", slog.String("dir", dir), slog.Any("error", err))
		}
	}
	n := len(app.loader.Loaded()) - before
	app.logger.Info("scripts loaded",
		slog.Int("count", n),
		slog.Int("bindings", app.registry.Len()),
	)
	return n
}

// errInputClosed ends Run when stdin reaches EOF.
var errInputClosed = errors.New("input closed")

// Run loads the configured scripts and serves events until ctx ends, the
// host link fails, or stdin reaches end of input. It returns nil on a
// normal shutdown.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.loader.Close()

	app.LoadScripts(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if app.cfg.Scripts.Watch {
		if err := app.startWatcher(gctx, g); err != nil {
			return err
		}
	}

	if app.server != nil {
		g.Go(func() error {
			return app.server.ListenAndServe(gctx, app.cfg.Host.Listen)
		})
	} else {
		g.Go(func() error {
			return app.serveLines(gctx)
		})
	}

	err := g.Wait()
	if app.limited != nil && app.limited.Dropped() > 0 {
		app.logger.Warn("script reports dropped by rate limit", slog.Uint64("dropped", app.limited.Dropped()))
	}
	if errors.Is(err, errInputClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startWatcher watches the script directories and loads scripts added to
// them while running.
func (app *Application) startWatcher(ctx context.Context, g *errgroup.Group) error {
	w, err := watcher.New(watcher.WithFilter(lua.IsScript))
	if err != nil {
		return &InitError{Component: "script watcher", Err: err}
	}
	for _, dir := range app.cfg.Scripts.Dirs {
		if err := w.Watch(dir); err != nil {
			app.logger.Warn("not watching script directory", slog.String("dir", dir), slog.Any("error", err))
		}
	}

	scripts := watcher.NewScripts(w, watcher.LoaderFuncs{
		Loaded: app.loader.IsLoaded,
		Load: func(ctx context.Context, path string) error {
			_, err := app.loader.LoadFile(ctx, path)
			return err
		},
	}, watcher.WithReporter(app.reporter), watcher.WithLogger(app.logger))

	g.Go(func() error {
		return scripts.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return w.Close()
	})
	return nil
}

// serveLines dispatches JSON-line events from stdin in arrival order and
// writes one result frame per event. Malformed lines get an error frame.
func (app *Application) serveLines(ctx context.Context) error {
	type next struct {
		ev  *event.UIEvent
		err error
	}

	// Reads from stdin cannot be interrupted, so the reader runs outside
	// the group and is abandoned on shutdown.
	dec := hostlink.NewDecoder(app.opts.Stdin)
	frames := make(chan next)
	go func() {
		for {
			ev, err := dec.Next()
			select {
			case frames <- next{ev, err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !isFrameError(err) {
				return
			}
		}
	}()

	for {
		var n next
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n = <-frames:
		}

		switch {
		case errors.Is(n.err, io.EOF):
			return errInputClosed
		case isFrameError(n.err):
			app.logger.Warn("rejected frame", slog.Any("error", n.err))
			if err := app.encoder.Encode(hostlink.ErrorFrame("", n.err)); err != nil {
				return fmt.Errorf("writing error frame: %w", err)
			}
			continue
		case n.err != nil:
			return fmt.Errorf("reading input: %w", n.err)
		}

		result := app.engine.Dispatch(ctx, n.ev)
		if err := app.encoder.Result(n.ev.ID, result); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
}

func isFrameError(err error) bool {
	var ferr *hostlink.FrameError
	return errors.As(err, &ferr)
}
