package sigil

import (
	"strconv"
	"strings"
)

// Span is a half-open byte range [Start, End) into the input document.
// Every token and every diagnostic carries one, so errors can point at
// the exact bytes that caused them.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (s Span) Len() int { return s.End - s.Start }

// String returns a compact byte-offset rendering like "12..17".
func (s Span) String() string {
	return strconv.Itoa(s.Start) + ".." + strconv.Itoa(s.End)
}

// spanAt returns a single-byte span at the given offset. Used for
// point diagnostics like an unexpected character.
func spanAt(off int) Span { return Span{Start: off, End: off + 1} }

// Segment is one step in a path from the document root: either an
// object key or an array/tuple index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path locates a value within the document, e.g. $.items[2].name.
type Path []Segment

// String renders the path in dotted/bracketed form rooted at "$".
func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range p {
		if seg.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		} else {
			b.WriteByte('.')
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}

func (p Path) key(k string) Path { return append(p[:len(p):len(p)], Segment{Key: k}) }
func (p Path) index(i int) Path  { return append(p[:len(p):len(p)], Segment{Index: i, IsIndex: true}) }
