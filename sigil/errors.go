package sigil

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrorKind classifies a codec diagnostic. Kinds group into classes
// (see Class) so callers can branch on broad category without matching
// every kind.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota

	// Syntax: the bytes do not form valid JSON.
	KindUnexpectedCharacter
	KindInvalidNumber
	KindInvalidEscape
	KindUnterminatedString
	KindUnexpectedEnd

	// Structural: valid tokens in an invalid arrangement.
	KindUnexpectedToken
	KindTrailingComma
	KindTrailingData

	// Schema: the document disagrees with the target shape.
	KindMissingField
	KindUnknownField
	KindUnknownVariant
	KindUnrepresentableKey

	// Value-level.
	KindTypeMismatch
	KindNumberOutOfRange

	// Encoding: byte-level text problems.
	KindInvalidUTF8
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindUnexpectedCharacter:
		return "unexpected character"
	case KindInvalidNumber:
		return "invalid number"
	case KindInvalidEscape:
		return "invalid escape"
	case KindUnterminatedString:
		return "unterminated string"
	case KindUnexpectedEnd:
		return "unexpected end of input"
	case KindUnexpectedToken:
		return "unexpected token"
	case KindTrailingComma:
		return "trailing comma"
	case KindTrailingData:
		return "trailing data"
	case KindMissingField:
		return "missing field"
	case KindUnknownField:
		return "unknown field"
	case KindUnknownVariant:
		return "unknown variant"
	case KindUnrepresentableKey:
		return "unrepresentable key"
	case KindTypeMismatch:
		return "type mismatch"
	case KindNumberOutOfRange:
		return "number out of range"
	case KindInvalidUTF8:
		return "invalid UTF-8"
	default:
		return "unknown error"
	}
}

// Class is the broad category of an ErrorKind.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassSyntax
	ClassStructural
	ClassSchema
	ClassValue
	ClassEncoding
)

// Class returns the category the kind belongs to.
func (k ErrorKind) Class() Class {
	switch k {
	case KindUnexpectedCharacter, KindInvalidNumber, KindInvalidEscape,
		KindUnterminatedString, KindUnexpectedEnd:
		return ClassSyntax
	case KindUnexpectedToken, KindTrailingComma, KindTrailingData:
		return ClassStructural
	case KindMissingField, KindUnknownField, KindUnknownVariant,
		KindUnrepresentableKey:
		return ClassSchema
	case KindTypeMismatch, KindNumberOutOfRange:
		return ClassValue
	case KindInvalidUTF8:
		return ClassEncoding
	default:
		return ClassUnknown
	}
}

// Error is a codec diagnostic. Decode-side errors carry the byte span
// of the offending input, the path from the document root, and enough
// of the source to render a readable excerpt. Encode-side errors have
// no input document and carry no span.
type Error struct {
	Kind   ErrorKind
	Span   Span
	Path   Path
	Detail string // kind-specific elaboration, may be empty

	src []byte // the document, for excerpt rendering
}

// excerptRadius bounds how many bytes of context appear on either side
// of the span in the rendered message.
const excerptRadius = 20

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.src != nil {
		fmt.Fprintf(&b, " at byte %d", e.Span.Start)
	}
	if len(e.Path) > 0 {
		b.WriteString(" (")
		b.WriteString(e.Path.String())
		b.WriteByte(')')
	}
	if ex := e.excerpt(); ex != "" {
		b.WriteString(" near ")
		b.WriteString(ex)
	}
	return b.String()
}

// excerpt renders a bounded window of the source around the span, with
// explicit markers when either side is truncated.
func (e *Error) excerpt() string {
	if len(e.src) == 0 || e.Span.Start > len(e.src) {
		return ""
	}
	lo := e.Span.Start - excerptRadius
	hi := e.Span.End + excerptRadius
	if hi > len(e.src) {
		hi = len(e.src)
	}
	truncLeft := lo > 0
	if lo < 0 {
		lo = 0
	}
	truncRight := hi < len(e.src)

	// Do not split a multi-byte rune at the window edges.
	for lo > 0 && lo < len(e.src) && !utf8.RuneStart(e.src[lo]) {
		lo++
	}
	for hi > lo && hi < len(e.src) && !utf8.RuneStart(e.src[hi]) {
		hi--
	}

	var b strings.Builder
	b.WriteByte('`')
	if truncLeft {
		b.WriteString("…")
	}
	b.Write(sanitize(e.src[lo:hi]))
	if truncRight {
		b.WriteString("…")
	}
	b.WriteByte('`')
	return b.String()
}

// sanitize replaces control bytes so the excerpt stays on one line.
func sanitize(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for _, c := range src {
		if c < 0x20 {
			out = append(out, ' ')
		} else {
			out = append(out, c)
		}
	}
	return out
}

// errAt builds a diagnostic anchored to a span within src.
func errAt(src []byte, kind ErrorKind, span Span, detail string) *Error {
	return &Error{Kind: kind, Span: span, Detail: detail, src: src}
}

// withPath attaches the decode path. Called once, at the point the
// decoder surfaces the error.
func (e *Error) withPath(p Path) *Error {
	if e.Path == nil {
		e.Path = p
	}
	return e
}
