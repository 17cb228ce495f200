package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/dshills/axscript/internal/report"
)

const scopeName = "github.com/dshills/axscript/internal/script/watcher"

// Loader loads a script file. Script IDs are file base names.
type Loader interface {
	IsLoaded(id string) bool
	LoadFile(ctx context.Context, path string) error
}

// LoaderFuncs adapts a pair of functions to Loader.
type LoaderFuncs struct {
	Loaded func(id string) bool
	Load   func(ctx context.Context, path string) error
}

// IsLoaded implements Loader.
func (f LoaderFuncs) IsLoaded(id string) bool {
	return f.Loaded(id)
}

// LoadFile implements Loader.
func (f LoaderFuncs) LoadFile(ctx context.Context, path string) error {
	return f.Load(ctx, path)
}

// Scripts loads scripts that appear in watched directories.
type Scripts struct {
	watcher  *Watcher
	loader   Loader
	reporter report.Reporter
	logger   *slog.Logger
}

// ScriptsOption configures Scripts.
type ScriptsOption func(*Scripts)

// WithReporter sets where load failures and changed scripts are reported.
func WithReporter(r report.Reporter) ScriptsOption {
	return func(s *Scripts) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ScriptsOption {
	return func(s *Scripts) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScripts creates a script loader fed by w.
func NewScripts(w *Watcher, loader Loader, opts ...ScriptsOption) *Scripts {
	s := &Scripts{
		watcher:  w,
		loader:   loader,
		reporter: report.Discard,
		logger:   otelslog.NewLogger(scopeName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run handles watcher events until ctx ends or the watcher is closed.
func (s *Scripts) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-s.watcher.Events():
			if !ok {
				return nil
			}
			s.Handle(ctx, ev)

		case err, ok := <-s.watcher.Errors():
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", slog.Any("error", err))
		}
	}
}

// Handle reacts to one event. New files are loaded; changes to a loaded
// script are reported.
func (s *Scripts) Handle(ctx context.Context, ev Event) {
	id := filepath.Base(ev.Path)

	if s.loader.IsLoaded(id) {
		if ev.Op.Has(OpWrite) || ev.Op.Has(OpCreate) {
			s.reporter.Report(id, report.Warning(fmt.Errorf("%s: %w", ev.Path, ErrScriptChanged)))
		}
		return
	}

	if !ev.Op.Has(OpCreate) && !ev.Op.Has(OpWrite) && !ev.Op.Has(OpRename) {
		return
	}
	// Renames fire for the old name too.
	if info, err := os.Stat(ev.Path); err != nil || info.IsDir() {
		return
	}

	if err := s.loader.LoadFile(ctx, ev.Path); err != nil {
		// The loader reports its own failures.
		s.logger.Debug("load failed", slog.String("path", ev.Path), slog.Any("error", err))
		return
	}
	s.logger.Info("loaded new script", slog.String("script", id), slog.String("op", ev.Op.String()))
}
