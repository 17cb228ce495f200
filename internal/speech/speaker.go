package speech

import (
	"fmt"
	"io"
	"sync"
)

// Sink is the host speech synthesizer.
type Sink interface {
	// Speak queues text, interrupting current speech if interrupt is true.
	Speak(text string, interrupt bool) error

	// SpeakNotification speaks text on the notification channel.
	SpeakNotification(text string) error
}

// Speaker routes utterances through the Coordinator to a Sink.
type Speaker struct {
	sink  Sink
	coord *Coordinator
}

// NewSpeaker creates a speaker.
func NewSpeaker(sink Sink, coord *Coordinator) *Speaker {
	return &Speaker{sink: sink, coord: coord}
}

// Coordinator returns the coordinator the speaker consults.
func (s *Speaker) Coordinator() *Coordinator {
	return s.coord
}

// Speak speaks text, interrupting unless suppression is pending.
func (s *Speaker) Speak(text string) error {
	return s.speak(text, nil)
}

// SpeakInterrupt speaks text with an explicit interrupt choice. Pending
// suppression is still consumed.
func (s *Speaker) SpeakInterrupt(text string, interrupt bool) error {
	return s.speak(text, &interrupt)
}

func (s *Speaker) speak(text string, explicit *bool) error {
	interrupt := s.coord.OnSpeechIssued(explicit)
	if err := s.sink.Speak(text, interrupt); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// SpeakNotification speaks text on the notification channel. It leaves the
// interrupt state untouched.
func (s *Speaker) SpeakNotification(text string) error {
	if err := s.sink.SpeakNotification(text); err != nil {
		return fmt.Errorf("speak notification: %w", err)
	}
	return nil
}

// Utterance is one recorded speech request.
type Utterance struct {
	Text         string
	Interrupt    bool
	Notification bool
}

// Recorder is a Sink that keeps every utterance in memory.
type Recorder struct {
	mu         sync.Mutex
	utterances []Utterance
}

// Speak implements Sink.
func (r *Recorder) Speak(text string, interrupt bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.utterances = append(r.utterances, Utterance{Text: text, Interrupt: interrupt})
	return nil
}

// SpeakNotification implements Sink.
func (r *Recorder) SpeakNotification(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.utterances = append(r.utterances, Utterance{Text: text, Notification: true})
	return nil
}

// Utterances returns a copy of everything recorded so far.
func (r *Recorder) Utterances() []Utterance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Utterance, len(r.utterances))
	copy(out, r.utterances)
	return out
}

// WriterSink prints utterances as lines, one per request.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Speak implements Sink.
func (s *WriterSink) Speak(text string, interrupt bool) error {
	mode := "queue"
	if interrupt {
		mode = "interrupt"
	}
	return s.write(mode, text)
}

// SpeakNotification implements Sink.
func (s *WriterSink) SpeakNotification(text string) error {
	return s.write("notify", text)
}

func (s *WriterSink) write(mode, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[%s] %s\n", mode, text)
	return err
}
