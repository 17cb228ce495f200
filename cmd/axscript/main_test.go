package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dshills/axscript/internal/config"
)

func TestFlags_Apply(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(*config.Config) bool
	}{
		{"no flags keep config", nil, func(c *config.Config) bool {
			return len(c.Scripts.Dirs) == 1 && c.Scripts.Dirs[0] == "scripts" && c.Host.Listen == ""
		}},
		{"scripts list", []string{"-s", "a, b"}, func(c *config.Config) bool {
			return len(c.Scripts.Dirs) == 2 && c.Scripts.Dirs[1] == "b"
		}},
		{"listen and watch", []string{"-listen", ":7700", "-watch"}, func(c *config.Config) bool {
			return c.Host.Listen == ":7700" && c.Scripts.Watch
		}},
		{"log level", []string{"-log-level", "debug"}, func(c *config.Config) bool {
			return c.Logging.Level == "debug"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			parseFlags(tt.args).apply(cfg)
			if !tt.check(cfg) {
				t.Errorf("config after %v = %+v", tt.args, cfg)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "warn"

	logger := newLogger(&buf, cfg)
	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, `"msg":"kept"`) {
		t.Errorf("log output = %q", out)
	}
}
