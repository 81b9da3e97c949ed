package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxFrameSize bounds a single newline-delimited frame
const MaxFrameSize = 64 * 1024

// Encoder writes envelopes as newline-delimited JSON. It is safe for
// concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one envelope followed by a newline
func (e *Encoder) Encode(env Envelope) error {
	data, err := Marshal(env)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = e.w.Write(data)
	return err
}

// Decoder reads newline-delimited envelopes. A frame that fails to decode is
// consumed up to its newline and reported as ErrMalformed, leaving the
// decoder positioned at the next frame.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 4096)}
}

// Decode reads the next envelope. Blank lines are skipped. I/O errors are
// returned unwrapped; io.EOF means the stream ended cleanly between frames.
func (d *Decoder) Decode() (Envelope, error) {
	for {
		line, err := d.readFrame()
		if err != nil {
			return Envelope{}, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return Unmarshal(line)
	}
}

// readFrame returns the next line without its terminator
func (d *Decoder) readFrame() ([]byte, error) {
	var frame []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		if len(frame)+len(chunk) > MaxFrameSize {
			return nil, d.dropOversized(err)
		}
		frame = append(frame, chunk...)

		switch {
		case err == nil:
			return frame[:len(frame)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(bytes.TrimSpace(frame)) > 0:
			// Final frame without a trailing newline
			return frame, nil
		default:
			return nil, err
		}
	}
}

// dropOversized skips the rest of a frame that went past MaxFrameSize. last
// is the error of the read that overflowed.
func (d *Decoder) dropOversized(last error) error {
	for errors.Is(last, bufio.ErrBufferFull) {
		_, last = d.r.ReadSlice('\n')
	}
	if last != nil {
		return last
	}
	return fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformed, MaxFrameSize)
}
