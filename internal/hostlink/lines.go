package hostlink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/dshills/axscript/internal/dispatch"
	"github.com/dshills/axscript/internal/event"
)

// MaxFrameSize bounds a single inbound frame.
const MaxFrameSize = 1 << 20

// Decoder reads event frames, one JSON object per line.
type Decoder struct {
	r    *bufio.Reader
	buf  []byte
	line int
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event. Blank lines are skipped. A bad line, including
// one longer than MaxFrameSize, yields a *FrameError and the following call
// continues with the next line. Next returns io.EOF at the end of input.
func (d *Decoder) Next() (*event.UIEvent, error) {
	for {
		data, tooLarge, err := d.readLine()
		if err != nil {
			return nil, err
		}
		d.line++
		if tooLarge {
			return nil, &FrameError{Line: d.line, Err: ErrFrameTooLarge}
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}

		f, err := DecodeFrame(data)
		if err != nil {
			return nil, &FrameError{Line: d.line, Err: err}
		}
		ev, err := f.Event()
		if err != nil {
			return nil, &FrameError{Line: d.line, Err: err}
		}
		return ev, nil
	}
}

// readLine returns the next line. A line over MaxFrameSize is read to its end
// and discarded. The returned slice is valid until the next call.
func (d *Decoder) readLine() (line []byte, tooLarge bool, err error) {
	d.buf = d.buf[:0]
	for {
		chunk, err := d.r.ReadSlice('\n')
		if !tooLarge {
			if len(d.buf)+len(chunk) > MaxFrameSize+1 {
				tooLarge = true
				d.buf = d.buf[:0]
			} else {
				d.buf = append(d.buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(d.buf) == 0 && !tooLarge {
				return nil, false, io.EOF
			}
		case err != nil:
			return nil, false, err
		}
		return d.buf, tooLarge, nil
	}
}

// Encoder writes frames as JSON lines. It implements speech.Sink so speech
// goes out on the same stream as dispatch results.
//
// Encoder is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes one frame.
func (e *Encoder) Encode(f Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(f)
}

// Speak implements speech.Sink.
func (e *Encoder) Speak(text string, interrupt bool) error {
	return e.Encode(SpeakFrame(text, interrupt))
}

// SpeakNotification implements speech.Sink.
func (e *Encoder) SpeakNotification(text string) error {
	return e.Encode(NotifyFrame(text))
}

// Result writes the result frame for a dispatched event.
func (e *Encoder) Result(id string, r dispatch.Result) error {
	return e.Encode(ResultFrame(id, r))
}
