package stream

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/Neumenon/sigil/sigil"
)

// Writer encodes documents one per line. Output is always compact; the
// pretty form would break the one-line-per-document framing.
type Writer struct {
	w   io.Writer
	buf []byte
	n   int
}

// NewWriter creates a JSON Lines writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes v and appends a newline.
func (w *Writer) Write(v any) error {
	out, err := sigil.Append(w.buf[:0], v)
	if err != nil {
		return err
	}
	w.buf = append(out, '\n')
	if _, werr := w.w.Write(w.buf); werr != nil {
		return errors.Wrap(werr, "write document")
	}
	w.n++
	return nil
}

// Count returns how many documents have been written.
func (w *Writer) Count() int { return w.n }

// WriteAll encodes each value in order.
func (w *Writer) WriteAll(vs ...any) error {
	for _, v := range vs {
		if err := w.Write(v); err != nil {
			return err
		}
	}
	return nil
}
