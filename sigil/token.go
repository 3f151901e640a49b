package sigil

import "fmt"

// TokenKind identifies a lexical token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota

	// Literals
	TokenString
	TokenNumber
	TokenTrue
	TokenFalse
	TokenNull

	// Structural
	TokenObjectStart // {
	TokenObjectEnd   // }
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenColon       // :
	TokenComma       // ,
)

// String returns the token kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenTrue:
		return "true"
	case TokenFalse:
		return "false"
	case TokenNull:
		return "null"
	case TokenObjectStart:
		return "{"
	case TokenObjectEnd:
		return "}"
	case TokenArrayStart:
		return "["
	case TokenArrayEnd:
		return "]"
	case TokenColon:
		return ":"
	case TokenComma:
		return ","
	default:
		return "unknown"
	}
}

// Token is one lexical unit of the input. String tokens borrow their
// bytes from the input when the literal contains no escapes, and own a
// freshly unescaped buffer otherwise. Borrowed content stays valid
// only as long as the input buffer does.
type Token struct {
	Kind TokenKind
	Span Span

	// val holds the decoded string content for TokenString and the raw
	// literal for TokenNumber.
	val []byte

	// Escaped is set when a string token's bytes were unescaped into an
	// owned buffer rather than borrowed from the input.
	Escaped bool

	// IsFloat is set on number tokens whose literal carries a fraction
	// or exponent part.
	IsFloat bool
}

// Text returns the decoded text of a string token or the raw literal of
// a number token.
func (t Token) Text() string { return string(t.val) }

// Bytes returns the token content without copying.
func (t Token) Bytes() []byte { return t.val }

// String returns a debug representation of the token.
func (t Token) String() string {
	switch t.Kind {
	case TokenString:
		return fmt.Sprintf("string(%q)", t.val)
	case TokenNumber:
		return fmt.Sprintf("number(%s)", t.val)
	default:
		return t.Kind.String()
	}
}
