// Package config loads runtime settings for axscript.
//
// Settings come from three layers, later layers overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. A TOML file (Load); a missing file is not an error
//  3. AXSCRIPT_* environment variables (ApplyEnv)
//
// Command line flags are applied by the caller on top of the result.
//
// Example file:
//
//	[dispatch]
//	handler_timeout = "250ms"
//	speech_events = ["WindowStateChanged", "ViewFocused", "ViewTextChanged"]
//
//	[scripts]
//	dirs = ["/etc/axscript/scripts"]
//	watch = true
//
//	[host]
//	listen = "127.0.0.1:7700"
//
//	[logging]
//	level = "debug"
//	format = "json"
//
//	[report]
//	rate = 1.0
//	burst = 5
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/axscript/internal/event"
)

// Config is the complete runtime configuration.
type Config struct {
	Dispatch DispatchConfig `toml:"dispatch"`
	Scripts  ScriptsConfig  `toml:"scripts"`
	Host     HostConfig     `toml:"host"`
	Logging  LoggingConfig  `toml:"logging"`
	Report   ReportConfig   `toml:"report"`
}

// DispatchConfig configures the dispatch engine.
type DispatchConfig struct {
	// HandlerTimeout bounds one handler call. Zero disables the bound.
	HandlerTimeout Duration `toml:"handler_timeout"`

	// SpeechEvents lists the event types whose handled outcome suppresses
	// the next speech interruption.
	SpeechEvents []string `toml:"speech_events"`
}

// ScriptsConfig configures script loading.
type ScriptsConfig struct {
	// Dirs are loaded in order at startup.
	Dirs []string `toml:"dirs"`

	// Watch loads scripts added to Dirs while running.
	Watch bool `toml:"watch"`

	// LoadTimeout bounds one script's top-level chunk.
	LoadTimeout Duration `toml:"load_timeout"`
}

// HostConfig configures the host link.
type HostConfig struct {
	// Listen is the WebSocket listen address. Empty means JSON lines on
	// stdin and stdout.
	Listen string `toml:"listen"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Format is text or json.
	Format string `toml:"format"`
}

// ReportConfig rate-limits script error reports.
type ReportConfig struct {
	// Rate is reports per second per script. Zero, the default, disables
	// limiting so every report is delivered.
	Rate float64 `toml:"rate"`

	// Burst is the number of reports allowed at once.
	Burst int `toml:"burst"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			HandlerTimeout: Duration(250 * time.Millisecond),
			SpeechEvents:   []string{"WindowStateChanged", "ViewFocused", "ViewTextChanged"},
		},
		Scripts: ScriptsConfig{
			Dirs:        []string{"scripts"},
			LoadTimeout: Duration(5 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Report: ReportConfig{
			Rate:  0,
			Burst: 5,
		},
	}
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	if c.Dispatch.HandlerTimeout < 0 {
		return &ValidationError{Field: "dispatch.handler_timeout", Message: "must not be negative"}
	}
	if _, err := c.SpeechEventTypes(); err != nil {
		return &ValidationError{Field: "dispatch.speech_events", Message: err.Error(), Err: err}
	}
	if c.Scripts.LoadTimeout < 0 {
		return &ValidationError{Field: "scripts.load_timeout", Message: "must not be negative"}
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return &ValidationError{Field: "logging.level", Message: err.Error(), Err: err}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return &ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	if c.Report.Rate < 0 {
		return &ValidationError{Field: "report.rate", Message: "must not be negative"}
	}
	if c.Report.Burst < 0 {
		return &ValidationError{Field: "report.burst", Message: "must not be negative"}
	}
	return nil
}

// SpeechEventTypes parses Dispatch.SpeechEvents.
func (c *Config) SpeechEventTypes() ([]event.Type, error) {
	types := make([]event.Type, 0, len(c.Dispatch.SpeechEvents))
	for _, name := range c.Dispatch.SpeechEvents {
		typ, err := event.ParseType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, typ)
	}
	return types, nil
}

// SlogLevel returns the configured log level, or info if it does not parse.
func (c *Config) SlogLevel() slog.Level {
	level, err := ParseLevel(c.Logging.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, err)
	}
	*d = Duration(v)
	return nil
}
