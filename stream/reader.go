// Package stream reads and writes JSON Lines: one document per line,
// newline-delimited, over plain io.Reader / io.Writer. It is a thin
// layer on the sigil codec; the core package itself never touches I/O.
package stream

import (
	"bufio"
	"bytes"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/Neumenon/sigil/sigil"
)

// Reader decodes successive JSON documents from line-delimited input.
type Reader struct {
	s       *bufio.Scanner
	opts    sigil.Options
	maxLine int
	line    int
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithMaxLine sets the maximum line length in bytes (default: 16 MiB).
func WithMaxLine(max int) ReaderOption {
	return func(r *Reader) {
		r.maxLine = max
	}
}

// WithDecodeOptions sets the codec options used for each document.
func WithDecodeOptions(opts sigil.Options) ReaderOption {
	return func(r *Reader) {
		r.opts = opts
	}
}

// DefaultMaxLine is the line length cap unless WithMaxLine overrides it.
const DefaultMaxLine = 16 << 20

// NewReader creates a JSON Lines reader.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	reader := &Reader{
		s:       bufio.NewScanner(r),
		maxLine: DefaultMaxLine,
	}
	for _, opt := range opts {
		opt(reader)
	}
	// The scanner allows tokens up to the larger of the cap and the
	// initial buffer, so the buffer must not exceed the cap.
	bufSize := 64 * 1024
	if bufSize > reader.maxLine {
		bufSize = reader.maxLine
	}
	reader.s.Buffer(make([]byte, 0, bufSize), reader.maxLine)
	return reader
}

// Next decodes the next document into v.
// Returns io.EOF when no more documents are available. Blank lines are
// skipped.
func (r *Reader) Next(v any) error {
	for r.s.Scan() {
		r.line++
		line := bytes.TrimSpace(r.s.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := sigil.UnmarshalWith(line, v, r.opts); err != nil {
			return errors.Wrapf(err, "line %d", r.line)
		}
		return nil
	}
	if err := r.s.Err(); err != nil {
		return errors.Wrap(err, "read line")
	}
	return io.EOF
}

// Line returns the 1-based number of the last line consumed.
func (r *Reader) Line() int { return r.line }

// ReadAll decodes every remaining document, calling fn with a fresh
// value each time. newValue must return a pointer.
func (r *Reader) ReadAll(newValue func() any, fn func(any) error) error {
	for {
		v := newValue()
		err := r.Next(v)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}
