// Package main is the entry point for the axscript runtime.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/axscript/internal/app"
	"github.com/dshills/axscript/internal/config"
	"github.com/dshills/axscript/internal/speech"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// flags holds command line overrides. Only flags given on the command line
// replace configured values.
type flags struct {
	configPath string
	scripts    string
	listen     string
	logLevel   string
	watch      bool
	dryRun     bool
	set        map[string]bool
}

func main() {
	os.Exit(run())
}

func run() int {
	f := parseFlags(os.Args[1:])

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := newLogger(os.Stderr, cfg)
	slog.SetDefault(logger)

	opts := app.Options{Logger: logger}
	if f.dryRun {
		opts.Sink = speech.NewWriterSink(os.Stderr)
	}
	application, err := app.New(cfg, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string) flags {
	var f flags
	var showVersion bool
	var showHelp bool

	fs := flag.NewFlagSet("axscript", flag.ExitOnError)
	fs.StringVar(&f.configPath, "config", "axscript.toml", "Path to configuration file")
	fs.StringVar(&f.configPath, "c", "axscript.toml", "Path to configuration file (shorthand)")
	fs.StringVar(&f.scripts, "scripts", "", "Comma-separated script directories")
	fs.StringVar(&f.scripts, "s", "", "Comma-separated script directories (shorthand)")
	fs.StringVar(&f.listen, "listen", "", "WebSocket listen address (default: JSON lines on stdin/stdout)")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolVar(&f.watch, "watch", false, "Load scripts added to the script directories while running")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Print speech to stderr instead of sending it to the host")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	fs.BoolVar(&showHelp, "help", false, "Show help message")
	fs.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "axscript - accessibility script runtime\n\n")
		fmt.Fprintf(os.Stderr, "Usage: axscript [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  axscript -s ./scripts              Read events from stdin\n")
		fmt.Fprintf(os.Stderr, "  axscript -listen 127.0.0.1:7700    Serve hosts over WebSocket\n")
		fmt.Fprintf(os.Stderr, "  axscript -c /etc/axscript.toml -watch\n")
	}

	_ = fs.Parse(args)

	if showHelp {
		fs.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("axscript %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f
}

// apply overlays the flags given on the command line onto cfg.
func (f flags) apply(cfg *config.Config) {
	if f.set["scripts"] || f.set["s"] {
		var dirs []string
		for _, dir := range strings.Split(f.scripts, ",") {
			if dir = strings.TrimSpace(dir); dir != "" {
				dirs = append(dirs, dir)
			}
		}
		cfg.Scripts.Dirs = dirs
	}
	if f.set["listen"] {
		cfg.Host.Listen = f.listen
	}
	if f.set["log-level"] {
		cfg.Logging.Level = f.logLevel
	}
	if f.set["watch"] {
		cfg.Scripts.Watch = f.watch
	}
}

// newLogger builds the process logger. Logs go to stderr so that stdout
// carries only frames.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
