package script

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/dshills/axscript/internal/classkey"
	"github.com/dshills/axscript/internal/handler"
	"github.com/dshills/axscript/internal/prefs"
	"github.com/dshills/axscript/internal/registry"
	"github.com/dshills/axscript/internal/report"
	"github.com/dshills/axscript/internal/speech"
)

const scopeName = "github.com/dshills/axscript/internal/script"

// Host holds the collaborators every session shares.
type Host struct {
	registry *registry.Registry
	speaker  *speech.Speaker
	reporter report.Reporter
	prefs    prefs.Store
	logger   *slog.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithReporter sets the sink for registration errors and warnings.
func WithReporter(r report.Reporter) HostOption {
	return func(h *Host) {
		if r != nil {
			h.reporter = r
		}
	}
}

// WithPreferences sets the preference store.
func WithPreferences(s prefs.Store) HostOption {
	return func(h *Host) {
		if s != nil {
			h.prefs = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHost creates a host registering into reg and speaking through speaker.
func NewHost(reg *registry.Registry, speaker *speech.Speaker, opts ...HostOption) *Host {
	h := &Host{
		registry: reg,
		speaker:  speaker,
		reporter: report.Discard,
		prefs:    prefs.NewMemory(),
		logger:   otelslog.NewLogger(scopeName),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry returns the registry sessions register into.
func (h *Host) Registry() *registry.Registry {
	return h.registry
}

// Speaker returns the shared speaker.
func (h *Host) Speaker() *speech.Speaker {
	return h.speaker
}

// Reporter returns the error reporter.
func (h *Host) Reporter() report.Reporter {
	return h.reporter
}

// NewSession starts a session for the script identified by scriptID.
func (h *Host) NewSession(scriptID string) *Session {
	return &Session{
		host:   h,
		id:     scriptID,
		logger: h.logger.With(slog.String("script", scriptID)),
	}
}

// Session is the API one script calls while it loads and while its
// handlers run.
type Session struct {
	host   *Host
	id     string
	pkg    classkey.Context
	logger *slog.Logger
}

// ID returns the script identifier.
func (s *Session) ID() string {
	return s.id
}

// Package returns the declared package, or "".
func (s *Session) Package() string {
	return s.pkg.Package()
}

// DeclarePackage sets the package later relative class references resolve
// against.
func (s *Session) DeclarePackage(name string) {
	s.pkg.Declare(name)
	s.logger.Debug("declared package", slog.String("package", s.pkg.Package()))
}

// RegisterClass resolves ref and registers the named event map for it.
// An unresolvable reference is reported and returned. Unknown event names
// are reported as warnings; the other entries are still registered.
func (s *Session) RegisterClass(ref string, events map[string]handler.Handler) (classkey.Key, error) {
	key, err := s.resolve(ref)
	if err != nil {
		return classkey.Key{}, err
	}
	s.warn(s.host.registry.RegisterNamed(s.id, key, events))
	s.logger.Debug("registered class", slog.String("class", key.String()), slog.Int("events", len(events)))
	return key, nil
}

// RegisterClassTyped is RegisterClass for callers that already hold typed
// event types.
func (s *Session) RegisterClassTyped(ref string, events registry.EventMap) (classkey.Key, error) {
	key, err := s.resolve(ref)
	if err != nil {
		return classkey.Key{}, err
	}
	s.warn(s.host.registry.Register(s.id, key, events))
	return key, nil
}

func (s *Session) resolve(ref string) (classkey.Key, error) {
	key, err := classkey.Resolve(&s.pkg, ref)
	if err != nil {
		err = fmt.Errorf("register class: %w", err)
		s.host.reporter.Report(s.id, err)
		return classkey.Key{}, err
	}
	return key, nil
}

func (s *Session) warn(warnings []error) {
	for _, w := range warnings {
		s.host.reporter.Report(s.id, w)
	}
}

// Speak speaks text, interrupting current speech unless suppression is
// pending.
func (s *Session) Speak(text string) error {
	return s.host.speaker.Speak(text)
}

// SpeakInterrupt speaks text with an explicit interrupt choice.
func (s *Session) SpeakInterrupt(text string, interrupt bool) error {
	return s.host.speaker.SpeakInterrupt(text, interrupt)
}

// SpeakNotification speaks text on the notification channel.
func (s *Session) SpeakNotification(text string) error {
	return s.host.speaker.SpeakNotification(text)
}

// QueryInterruptSuppressed reports whether the next utterance will not
// interrupt. It does not consume the suppression.
func (s *Session) QueryInterruptSuppressed() bool {
	return s.host.speaker.Coordinator().QuerySuppression()
}

// SuppressNextInterrupt keeps the next utterance from interrupting.
func (s *Session) SuppressNextInterrupt() {
	s.host.speaker.Coordinator().SuppressNextInterrupt()
}

type definer interface {
	Define(ns string, def prefs.Definition) (any, error)
}

// DefinePreference declares a preference in the script's package namespace
// and returns its effective value.
func (s *Session) DefinePreference(def prefs.Definition) (any, error) {
	ns := s.pkg.Package()
	if ns == "" {
		return nil, fmt.Errorf("define preference %q: %w", def.Name, ErrNoPackage)
	}
	if d, ok := s.host.prefs.(definer); ok {
		return d.Define(ns, def)
	}
	return prefs.Define(s.host.prefs, ns, def)
}

// Preference returns the value of name in the script's package namespace.
func (s *Session) Preference(name string) (any, bool) {
	ns := s.pkg.Package()
	if ns == "" {
		return nil, false
	}
	return s.host.prefs.Get(ns, name)
}
