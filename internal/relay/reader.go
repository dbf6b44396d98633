package relay

import (
	"io"
	"strings"
)

// ReadError wraps a failure while reading an already-open upstream stream.
// It is surfaced to the client as a single error signal; the turn performs
// no persistence after it.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "stream read failed: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// LineReader produces the decoded lines of an event stream one at a time.
// Network reads can split a line anywhere, so partial data is carried over
// between reads; a line is only emitted once its terminator has been seen.
// Any unterminated trailing data is flushed as a final line when the stream
// ends. The sequence is finite and non-restartable.
type LineReader struct {
	src     io.Reader
	carry   []byte
	pending []string
	eof     bool
	buf     []byte
}

func NewLineReader(src io.Reader) *LineReader {
	return &LineReader{
		src: src,
		buf: make([]byte, 4096),
	}
}

// Next returns the next complete line with its terminator stripped. It
// returns io.EOF once the stream is exhausted and a *ReadError if the
// underlying read fails; no retry is attempted.
func (r *LineReader) Next() (string, error) {
	for {
		if len(r.pending) > 0 {
			line := r.pending[0]
			r.pending = r.pending[1:]
			return line, nil
		}

		if r.eof {
			if len(r.carry) > 0 {
				line := strings.TrimSuffix(string(r.carry), "\r")
				r.carry = nil
				return line, nil
			}
			return "", io.EOF
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.carry = append(r.carry, r.buf[:n]...)
			r.splitCarry()
		}
		if err == io.EOF {
			r.eof = true
			continue
		}
		if err != nil {
			return "", &ReadError{Err: err}
		}
	}
}

// splitCarry moves every terminated line from the carry buffer to pending,
// leaving only the trailing partial line behind.
func (r *LineReader) splitCarry() {
	for {
		idx := -1
		for i, b := range r.carry {
			if b == '\n' {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		line := strings.TrimSuffix(string(r.carry[:idx]), "\r")
		r.pending = append(r.pending, line)
		r.carry = r.carry[idx+1:]
	}
}
