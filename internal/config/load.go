package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AXSCRIPT_"

// Load returns the defaults overlaid with the TOML file at path (if it
// exists) and the process environment, then validates the result. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.Merge(path, data); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
			// File doesn't exist, not an error
		default:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge decodes TOML data over c. Keys absent from data keep their current
// value. Unknown keys are an error. Relative script directories are
// resolved against the directory of source.
func (c *Config) Merge(source string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	before := append([]string(nil), c.Scripts.Dirs...)
	if err := dec.Decode(c); err != nil {
		return newParseError(source, err)
	}

	if source != "" && !sameStrings(before, c.Scripts.Dirs) {
		base := filepath.Dir(source)
		for i, dir := range c.Scripts.Dirs {
			if !filepath.IsAbs(dir) {
				c.Scripts.Dirs[i] = filepath.Join(base, dir)
			}
		}
	}
	return nil
}

func newParseError(source string, err error) error {
	pe := &ParseError{Path: source, Message: err.Error(), Err: err}

	var decErr *toml.DecodeError
	if errors.As(err, &decErr) {
		pe.Line, pe.Column = decErr.Position()
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) && len(strictErr.Errors) > 0 {
		first := strictErr.Errors[0]
		pe.Line, pe.Column = first.Position()
		pe.Message = "unknown key " + strings.Join(first.Key(), ".")
	}
	return pe
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// envVar describes one environment override.
type envVar struct {
	name  string
	apply func(c *Config, value string) error
}

var envVars = []envVar{
	{"HANDLER_TIMEOUT", func(c *Config, v string) error {
		return c.Dispatch.HandlerTimeout.UnmarshalText([]byte(v))
	}},
	{"SPEECH_EVENTS", func(c *Config, v string) error {
		c.Dispatch.SpeechEvents = splitList(v, ",")
		return nil
	}},
	{"SCRIPTS_DIRS", func(c *Config, v string) error {
		c.Scripts.Dirs = splitList(v, string(os.PathListSeparator))
		return nil
	}},
	{"SCRIPTS_WATCH", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.Scripts.Watch = b
		return err
	}},
	{"LOAD_TIMEOUT", func(c *Config, v string) error {
		return c.Scripts.LoadTimeout.UnmarshalText([]byte(v))
	}},
	{"LISTEN", func(c *Config, v string) error {
		c.Host.Listen = v
		return nil
	}},
	{"LOG_LEVEL", func(c *Config, v string) error {
		c.Logging.Level = v
		return nil
	}},
	{"LOG_FORMAT", func(c *Config, v string) error {
		c.Logging.Format = v
		return nil
	}},
	{"REPORT_RATE", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.Report.Rate = f
		return err
	}},
	{"REPORT_BURST", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Report.Burst = n
		return err
	}},
}

// EnvNames returns the environment variables ApplyEnv reads.
func EnvNames() []string {
	names := make([]string, len(envVars))
	for i, v := range envVars {
		names[i] = EnvPrefix + v.name
	}
	return names
}

// ApplyEnv overlays AXSCRIPT_* variables found by lookup onto c.
// Empty values are treated as set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, v := range envVars {
		name := EnvPrefix + v.name
		value, ok := lookup(name)
		if !ok {
			continue
		}
		if err := v.apply(c, strings.TrimSpace(value)); err != nil {
			return &EnvError{Var: name, Value: value, Err: err}
		}
	}
	return nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
