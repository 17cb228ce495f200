package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/axscript/internal/event"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Dispatch.HandlerTimeout.Std() != 250*time.Millisecond {
		t.Errorf("HandlerTimeout = %s", cfg.Dispatch.HandlerTimeout)
	}
	types, err := cfg.SpeechEventTypes()
	if err != nil {
		t.Fatal(err)
	}
	want := []event.Type{event.WindowStateChanged, event.ViewFocused, event.ViewTextChanged}
	if len(types) != len(want) {
		t.Fatalf("SpeechEventTypes() = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("SpeechEventTypes()[%d] = %v, want %v", i, types[i], want[i])
		}
	}
	if cfg.Report.Rate != 0 {
		t.Errorf("Report.Rate = %v, want limiting off by default", cfg.Report.Rate)
	}
	if cfg.Host.Listen != "" || cfg.Scripts.Watch {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestMerge(t *testing.T) {
	cfg := Default()
	err := cfg.Merge("/etc/axscript/axscript.toml", []byte(`
[dispatch]
handler_timeout = "1s"
speech_events = ["onViewFocused"]

[scripts]
dirs = ["scripts", "/opt/scripts"]
watch = true

[host]
listen = "127.0.0.1:7700"

[logging]
level = "debug"
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Dispatch.HandlerTimeout.Std() != time.Second {
		t.Errorf("HandlerTimeout = %s", cfg.Dispatch.HandlerTimeout)
	}
	if len(cfg.Dispatch.SpeechEvents) != 1 {
		t.Errorf("SpeechEvents = %v", cfg.Dispatch.SpeechEvents)
	}
	wantDirs := []string{filepath.Join("/etc/axscript", "scripts"), "/opt/scripts"}
	if len(cfg.Scripts.Dirs) != 2 || cfg.Scripts.Dirs[0] != wantDirs[0] || cfg.Scripts.Dirs[1] != wantDirs[1] {
		t.Errorf("Dirs = %v, want %v", cfg.Scripts.Dirs, wantDirs)
	}
	if !cfg.Scripts.Watch || cfg.Host.Listen != "127.0.0.1:7700" {
		t.Errorf("scripts/host = %+v %+v", cfg.Scripts, cfg.Host)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v", cfg.SlogLevel())
	}
	// Untouched sections keep their defaults.
	if cfg.Logging.Format != "text" || cfg.Report.Burst != 5 {
		t.Errorf("defaults lost: %+v %+v", cfg.Logging, cfg.Report)
	}
}

func TestMerge_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"syntax", "[dispatch\n", nil},
		{"unknown key", "[dispatch]\nhandler_timout = \"1s\"\n", nil},
		{"bad duration", "[dispatch]\nhandler_timeout = \"soon\"\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Default().Merge("test.toml", []byte(tt.in))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
			if pe.Path != "test.toml" {
				t.Errorf("Path = %q", pe.Path)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMerge_UnknownKeyMessage(t *testing.T) {
	err := Default().Merge("test.toml", []byte("[dispatch]\nhandler_timout = \"1s\"\n"))
	if err == nil || !strings.Contains(err.Error(), "handler_timout") {
		t.Errorf("err = %v, want the unknown key named", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"AXSCRIPT_HANDLER_TIMEOUT": "75ms",
		"AXSCRIPT_SPEECH_EVENTS":   "ViewFocused, WindowStateChanged",
		"AXSCRIPT_SCRIPTS_DIRS":    "a" + string(os.PathListSeparator) + "b",
		"AXSCRIPT_SCRIPTS_WATCH":   "true",
		"AXSCRIPT_LISTEN":          ":7700",
		"AXSCRIPT_LOG_LEVEL":       "warn",
		"AXSCRIPT_LOG_FORMAT":      "json",
		"AXSCRIPT_REPORT_RATE":     "0.5",
		"AXSCRIPT_REPORT_BURST":    "2",
	}))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Dispatch.HandlerTimeout.Std() != 75*time.Millisecond {
		t.Errorf("HandlerTimeout = %s", cfg.Dispatch.HandlerTimeout)
	}
	if len(cfg.Dispatch.SpeechEvents) != 2 || cfg.Dispatch.SpeechEvents[1] != "WindowStateChanged" {
		t.Errorf("SpeechEvents = %v", cfg.Dispatch.SpeechEvents)
	}
	if len(cfg.Scripts.Dirs) != 2 || !cfg.Scripts.Watch {
		t.Errorf("Scripts = %+v", cfg.Scripts)
	}
	if cfg.Host.Listen != ":7700" || cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("host/logging = %+v %+v", cfg.Host, cfg.Logging)
	}
	if cfg.Report.Rate != 0.5 || cfg.Report.Burst != 2 {
		t.Errorf("Report = %+v", cfg.Report)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestApplyEnv_BadValue(t *testing.T) {
	err := Default().ApplyEnv(envMap(map[string]string{"AXSCRIPT_REPORT_BURST": "many"}))
	var envErr *EnvError
	if !errors.As(err, &envErr) || envErr.Var != "AXSCRIPT_REPORT_BURST" {
		t.Errorf("err = %v, want EnvError for AXSCRIPT_REPORT_BURST", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"negative timeout", func(c *Config) { c.Dispatch.HandlerTimeout = -1 }, "dispatch.handler_timeout"},
		{"unknown event", func(c *Config) { c.Dispatch.SpeechEvents = []string{"ViewDanced"} }, "dispatch.speech_events"},
		{"negative load timeout", func(c *Config) { c.Scripts.LoadTimeout = -1 }, "scripts.load_timeout"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative rate", func(c *Config) { c.Report.Rate = -1 }, "report.rate"},
		{"negative burst", func(c *Config) { c.Report.Burst = -1 }, "report.burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			err := cfg.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("err = %v, want ValidationError for %s", err, tt.field)
			}
			if !errors.Is(err, ErrValidationFailed) {
				t.Error("expected ErrValidationFailed")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	for _, name := range EnvNames() {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}

	path := filepath.Join(t.TempDir(), "axscript.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AXSCRIPT_LOG_LEVEL", "error")

	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("environment should override the file, Level = %q", cfg.Logging.Level)
	}

	t.Setenv("AXSCRIPT_LOG_FORMAT", "yaml")
	if _, err := Load(path); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("err = %v, want ErrValidationFailed", err)
	}
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte(" 1m30s ")); err != nil {
		t.Fatal(err)
	}
	if d.Std() != 90*time.Second {
		t.Errorf("d = %s", d)
	}
	text, _ := d.MarshalText()
	if string(text) != "1m30s" {
		t.Errorf("MarshalText() = %q", text)
	}
	if err := d.UnmarshalText([]byte("x")); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("err = %v, want ErrInvalidDuration", err)
	}
}

func TestApplyEnv_NoVars(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(noEnv); err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}
