package speech

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/dshills/axscript/internal/event"
)

func TestCoordinator_InitialState(t *testing.T) {
	c := NewCoordinator()
	if c.State() != InterruptAllowed {
		t.Errorf("initial state = %v, want %v", c.State(), InterruptAllowed)
	}
	if c.QuerySuppression() {
		t.Error("QuerySuppression() should be false initially")
	}
}

func TestCoordinator_OneShotSuppression(t *testing.T) {
	c := NewCoordinator()
	c.SuppressNextInterrupt()

	if !c.QuerySuppression() {
		t.Fatal("expected suppression after SuppressNextInterrupt")
	}
	// Querying does not consume.
	if !c.QuerySuppression() {
		t.Fatal("QuerySuppression consumed the flag")
	}

	if c.OnSpeechIssued(nil) {
		t.Error("first utterance should not interrupt")
	}
	if !c.OnSpeechIssued(nil) {
		t.Error("second utterance should interrupt")
	}
	if c.State() != InterruptAllowed {
		t.Errorf("state = %v after consumption", c.State())
	}
}

func TestCoordinator_ExplicitInterrupt(t *testing.T) {
	tests := []struct {
		name       string
		suppressed bool
		explicit   bool
	}{
		{"explicit true while suppressed", true, true},
		{"explicit false while allowed", false, false},
		{"explicit true while allowed", false, true},
		{"explicit false while suppressed", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoordinator()
			if tt.suppressed {
				c.SuppressNextInterrupt()
			}
			explicit := tt.explicit
			if got := c.OnSpeechIssued(&explicit); got != tt.explicit {
				t.Errorf("OnSpeechIssued(&%v) = %v", tt.explicit, got)
			}
			if c.QuerySuppression() {
				t.Error("explicit speech should still reset suppression")
			}
		})
	}
}

func TestCoordinator_ObserveDispatch(t *testing.T) {
	tests := []struct {
		typ      event.Type
		handled  bool
		suppress bool
	}{
		{event.ViewFocused, true, true},
		{event.WindowStateChanged, true, true},
		{event.ViewTextChanged, true, true},
		{event.ViewFocused, false, false},
		{event.ViewClicked, true, false},
		{event.ViewSelected, true, false},
		{event.NotificationStateChanged, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			c := NewCoordinator()
			c.ObserveDispatch(tt.typ, tt.handled)
			if got := c.QuerySuppression(); got != tt.suppress {
				t.Errorf("ObserveDispatch(%v, %v) suppression = %v, want %v",
					tt.typ, tt.handled, got, tt.suppress)
			}
		})
	}
}

func TestCoordinator_WithSpeechEvents(t *testing.T) {
	c := NewCoordinator(WithSpeechEvents(event.ViewClicked, event.Type(77)))
	if !c.Influences(event.ViewClicked) {
		t.Error("ViewClicked should influence speech")
	}
	if c.Influences(event.ViewFocused) {
		t.Error("ViewFocused should no longer influence speech")
	}
	if c.Influences(event.Type(77)) {
		t.Error("invalid type should never influence speech")
	}
}

func TestCoordinator_ConcurrentSuppressAndSpeak(t *testing.T) {
	c := NewCoordinator()
	const n = 1000

	var wg sync.WaitGroup
	var mu sync.Mutex
	quiet := 0

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			c.SuppressNextInterrupt()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if !c.OnSpeechIssued(nil) {
				mu.Lock()
				quiet++
				mu.Unlock()
			}
		}
	}()
	wg.Wait()

	// Every suppressed utterance consumed at least one request.
	if quiet > n {
		t.Errorf("quiet utterances %d exceed suppression requests %d", quiet, n)
	}
}

func TestSpeaker_SuppressThenRevert(t *testing.T) {
	rec := &Recorder{}
	coord := NewCoordinator()
	speaker := NewSpeaker(rec, coord)

	coord.SuppressNextInterrupt()
	if err := speaker.Speak("first"); err != nil {
		t.Fatal(err)
	}
	if err := speaker.Speak("second"); err != nil {
		t.Fatal(err)
	}

	got := rec.Utterances()
	if len(got) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(got))
	}
	if got[0].Interrupt {
		t.Error("first utterance should not interrupt")
	}
	if !got[1].Interrupt {
		t.Error("second utterance should interrupt")
	}
}

func TestSpeaker_NotificationLeavesState(t *testing.T) {
	rec := &Recorder{}
	coord := NewCoordinator()
	speaker := NewSpeaker(rec, coord)

	coord.SuppressNextInterrupt()
	if err := speaker.SpeakNotification("new mail"); err != nil {
		t.Fatal(err)
	}
	if !coord.QuerySuppression() {
		t.Error("notification should not consume suppression")
	}

	got := rec.Utterances()
	if len(got) != 1 || !got[0].Notification || got[0].Text != "new mail" {
		t.Errorf("unexpected utterances: %+v", got)
	}
}

type failingSink struct{}

func (failingSink) Speak(string, bool) error { return errors.New("tts down") }
func (failingSink) SpeakNotification(string) error { return errors.New("tts down") }

func TestSpeaker_SinkError(t *testing.T) {
	coord := NewCoordinator()
	speaker := NewSpeaker(failingSink{}, coord)

	coord.SuppressNextInterrupt()
	if err := speaker.Speak("x"); err == nil {
		t.Error("expected sink error")
	}
	if coord.QuerySuppression() {
		t.Error("suppression should be consumed even when the sink fails")
	}
	if err := speaker.SpeakNotification("x"); err == nil {
		t.Error("expected sink error")
	}
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	_ = s.Speak("hello", true)
	_ = s.Speak("world", false)
	_ = s.SpeakNotification("ping")

	want := "[interrupt] hello\n[queue] world\n[notify] ping\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
