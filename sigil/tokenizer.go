package sigil

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Tokenizer splits a JSON document into tokens. It keeps a single byte
// cursor into the input and never looks more than one character ahead,
// so tokenizing is O(n) with no backtracking.
type Tokenizer struct {
	input []byte
	pos   int
}

// NewTokenizer returns a tokenizer over data. A UTF-8 byte order mark
// at the start of the input is skipped.
func NewTokenizer(data []byte) *Tokenizer {
	t := &Tokenizer{input: data}
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		t.pos = 3
	}
	return t
}

// newTokenizerAt returns a tokenizer whose cursor starts at a byte
// offset into data. Spans remain relative to the whole document. Used
// to replay a previously recorded value position.
func newTokenizerAt(data []byte, off int) *Tokenizer {
	return &Tokenizer{input: data, pos: off}
}

// Offset returns the current byte position of the cursor.
func (t *Tokenizer) Offset() int { return t.pos }

// Next returns the next token. At the end of input it returns a
// TokenEOF token, and keeps returning it on every further call.
func (t *Tokenizer) Next() (Token, *Error) {
	t.skipWhitespace()
	if t.pos >= len(t.input) {
		return Token{Kind: TokenEOF, Span: Span{Start: t.pos, End: t.pos}}, nil
	}

	start := t.pos
	switch c := t.input[t.pos]; c {
	case '{':
		t.pos++
		return Token{Kind: TokenObjectStart, Span: Span{start, t.pos}}, nil
	case '}':
		t.pos++
		return Token{Kind: TokenObjectEnd, Span: Span{start, t.pos}}, nil
	case '[':
		t.pos++
		return Token{Kind: TokenArrayStart, Span: Span{start, t.pos}}, nil
	case ']':
		t.pos++
		return Token{Kind: TokenArrayEnd, Span: Span{start, t.pos}}, nil
	case ':':
		t.pos++
		return Token{Kind: TokenColon, Span: Span{start, t.pos}}, nil
	case ',':
		t.pos++
		return Token{Kind: TokenComma, Span: Span{start, t.pos}}, nil
	case '"':
		return t.scanString()
	case 't':
		return t.scanKeyword("true", TokenTrue)
	case 'f':
		return t.scanKeyword("false", TokenFalse)
	case 'n':
		return t.scanKeyword("null", TokenNull)
	default:
		if c == '-' || (c >= '0' && c <= '9') {
			return t.scanNumber()
		}
		return Token{}, errAt(t.input, KindUnexpectedCharacter, spanAt(start), quoteByte(c))
	}
}

func (t *Tokenizer) skipWhitespace() {
	for t.pos < len(t.input) {
		switch t.input[t.pos] {
		case ' ', '\t', '\r', '\n':
			t.pos++
		default:
			return
		}
	}
}

func (t *Tokenizer) scanKeyword(word string, kind TokenKind) (Token, *Error) {
	start := t.pos
	if len(t.input)-t.pos < len(word) || string(t.input[t.pos:t.pos+len(word)]) != word {
		end := t.pos + len(word)
		if end > len(t.input) {
			end = len(t.input)
		}
		return Token{}, errAt(t.input, KindUnexpectedCharacter, Span{start, end},
			"expected "+word)
	}
	t.pos += len(word)
	return Token{Kind: kind, Span: Span{start, t.pos}}, nil
}

// ============================================================
// Strings
// ============================================================

// scanString decodes a string literal. The fast path walks the literal
// once; if no backslash appears the token borrows the content bytes
// directly from the input. The first backslash switches to an owned
// buffer seeded with everything scanned so far.
func (t *Tokenizer) scanString() (Token, *Error) {
	start := t.pos
	t.pos++ // opening quote
	contentStart := t.pos

	for t.pos < len(t.input) {
		c := t.input[t.pos]
		switch {
		case c == '"':
			tok := Token{
				Kind: TokenString,
				Span: Span{start, t.pos + 1},
				val:  t.input[contentStart:t.pos],
			}
			if err := t.checkUTF8(tok.val, contentStart); err != nil {
				return Token{}, err
			}
			t.pos++
			return tok, nil
		case c == '\\':
			return t.scanEscapedString(start, contentStart)
		case c < 0x20:
			return Token{}, errAt(t.input, KindUnexpectedCharacter, spanAt(t.pos),
				"control character in string")
		default:
			t.pos++
		}
	}
	return Token{}, errAt(t.input, KindUnterminatedString, Span{start, len(t.input)}, "")
}

// scanEscapedString continues a string scan after the first backslash,
// accumulating decoded content into an owned buffer.
func (t *Tokenizer) scanEscapedString(start, contentStart int) (Token, *Error) {
	// The prefix loop only looked for quotes and escapes, so validate
	// its UTF-8 now, while offsets still map one-to-one onto the input.
	if err := t.checkUTF8(t.input[contentStart:t.pos], contentStart); err != nil {
		return Token{}, err
	}
	buf := make([]byte, 0, t.pos-contentStart+16)
	buf = append(buf, t.input[contentStart:t.pos]...)

	for t.pos < len(t.input) {
		c := t.input[t.pos]
		switch {
		case c == '"':
			t.pos++
			return Token{
				Kind:    TokenString,
				Span:    Span{start, t.pos},
				val:     buf,
				Escaped: true,
			}, nil
		case c == '\\':
			decoded, err := t.scanEscape()
			if err != nil {
				return Token{}, err
			}
			buf = append(buf, decoded...)
		case c < 0x20:
			return Token{}, errAt(t.input, KindUnexpectedCharacter, spanAt(t.pos),
				"control character in string")
		case c < utf8.RuneSelf:
			buf = append(buf, c)
			t.pos++
		default:
			// Raw multi-byte sequences are checked in place. Escapes
			// shrink the decoded form relative to the input, so a check
			// over the decoded buffer would misplace the diagnostic.
			r, size := utf8.DecodeRune(t.input[t.pos:])
			if r == utf8.RuneError && size <= 1 {
				return Token{}, errAt(t.input, KindInvalidUTF8, spanAt(t.pos), "")
			}
			buf = append(buf, t.input[t.pos:t.pos+size]...)
			t.pos += size
		}
	}
	return Token{}, errAt(t.input, KindUnterminatedString, Span{start, len(t.input)}, "")
}

// scanEscape decodes one escape sequence starting at the backslash under
// the cursor and advances past it.
func (t *Tokenizer) scanEscape() ([]byte, *Error) {
	escStart := t.pos
	t.pos++ // backslash
	if t.pos >= len(t.input) {
		return nil, errAt(t.input, KindUnterminatedString, Span{escStart, len(t.input)}, "")
	}
	var out [4]byte
	switch c := t.input[t.pos]; c {
	case '"', '\\', '/':
		t.pos++
		out[0] = c
		return out[:1], nil
	case 'b':
		t.pos++
		out[0] = '\b'
		return out[:1], nil
	case 'f':
		t.pos++
		out[0] = '\f'
		return out[:1], nil
	case 'n':
		t.pos++
		out[0] = '\n'
		return out[:1], nil
	case 'r':
		t.pos++
		out[0] = '\r'
		return out[:1], nil
	case 't':
		t.pos++
		out[0] = '\t'
		return out[:1], nil
	case 'u':
		return t.scanUnicodeEscape(escStart)
	default:
		return nil, errAt(t.input, KindInvalidEscape, Span{escStart, t.pos + 1},
			"unknown escape "+quoteByte(c))
	}
}

// scanUnicodeEscape decodes \uXXXX, combining UTF-16 surrogate pairs
// into a single rune. The cursor sits on the 'u'.
func (t *Tokenizer) scanUnicodeEscape(escStart int) ([]byte, *Error) {
	t.pos++ // 'u'
	hi, err := t.scanHex4(escStart)
	if err != nil {
		return nil, err
	}
	r := rune(hi)
	switch {
	case utf16.IsSurrogate(r) && r >= 0xD800 && r < 0xDC00:
		// High surrogate: a low surrogate escape must follow directly.
		if t.pos+1 >= len(t.input) || t.input[t.pos] != '\\' || t.input[t.pos+1] != 'u' {
			return nil, errAt(t.input, KindInvalidEscape, Span{escStart, t.pos},
				"unpaired surrogate")
		}
		t.pos += 2
		lo, err := t.scanHex4(escStart)
		if err != nil {
			return nil, err
		}
		r = utf16.DecodeRune(rune(hi), rune(lo))
		if r == utf8.RuneError {
			return nil, errAt(t.input, KindInvalidEscape, Span{escStart, t.pos},
				"invalid surrogate pair")
		}
	case utf16.IsSurrogate(r):
		// Low surrogate with no preceding high half.
		return nil, errAt(t.input, KindInvalidEscape, Span{escStart, t.pos},
			"unpaired surrogate")
	}
	var out [4]byte
	n := utf8.EncodeRune(out[:], r)
	return out[:n], nil
}

func (t *Tokenizer) scanHex4(escStart int) (uint32, *Error) {
	if t.pos+4 > len(t.input) {
		return 0, errAt(t.input, KindInvalidEscape, Span{escStart, len(t.input)},
			"truncated \\u escape")
	}
	var v uint32
	for i := 0; i < 4; i++ {
		c := t.input[t.pos]
		switch {
		case c >= '0' && c <= '9':
			v = v<<4 | uint32(c-'0')
		case c >= 'a' && c <= 'f':
			v = v<<4 | uint32(c-'a'+10)
		case c >= 'A' && c <= 'F':
			v = v<<4 | uint32(c-'A'+10)
		default:
			return 0, errAt(t.input, KindInvalidEscape, Span{escStart, t.pos + 1},
				"bad hex digit "+quoteByte(c))
		}
		t.pos++
	}
	return v, nil
}

// checkUTF8 validates decoded string content, anchoring the diagnostic
// at the first invalid byte.
func (t *Tokenizer) checkUTF8(content []byte, base int) *Error {
	if utf8.Valid(content) {
		return nil
	}
	off := 0
	for off < len(content) {
		r, size := utf8.DecodeRune(content[off:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		off += size
	}
	return errAt(t.input, KindInvalidUTF8, spanAt(base+off), "")
}

// ============================================================
// Numbers
// ============================================================

// scanNumber validates a number literal in one pass and classifies it
// as integer or float. The literal bytes are kept raw on the token so
// later conversion can pick the right width.
func (t *Tokenizer) scanNumber() (Token, *Error) {
	start := t.pos
	if t.input[t.pos] == '-' {
		t.pos++
	}

	// Integer part. A leading zero may not be followed by more digits.
	switch {
	case t.pos < len(t.input) && t.input[t.pos] == '0':
		t.pos++
		if t.pos < len(t.input) && isDigit(t.input[t.pos]) {
			t.eatDigits()
			return Token{}, errAt(t.input, KindInvalidNumber, Span{start, t.pos},
				"leading zero")
		}
	case t.pos < len(t.input) && isDigit(t.input[t.pos]):
		t.eatDigits()
	default:
		t.pos = t.numberEnd(start)
		return Token{}, errAt(t.input, KindInvalidNumber, Span{start, t.pos},
			"digit expected")
	}

	isFloat := false
	if t.pos < len(t.input) && t.input[t.pos] == '.' {
		isFloat = true
		t.pos++
		if t.pos >= len(t.input) || !isDigit(t.input[t.pos]) {
			t.pos = t.numberEnd(start)
			return Token{}, errAt(t.input, KindInvalidNumber, Span{start, t.pos},
				"digit expected after decimal point")
		}
		t.eatDigits()
	}

	if t.pos < len(t.input) && (t.input[t.pos] == 'e' || t.input[t.pos] == 'E') {
		isFloat = true
		t.pos++
		if t.pos < len(t.input) && (t.input[t.pos] == '+' || t.input[t.pos] == '-') {
			t.pos++
		}
		if t.pos >= len(t.input) || !isDigit(t.input[t.pos]) {
			t.pos = t.numberEnd(start)
			return Token{}, errAt(t.input, KindInvalidNumber, Span{start, t.pos},
				"digit expected in exponent")
		}
		t.eatDigits()
	}

	return Token{
		Kind:    TokenNumber,
		Span:    Span{start, t.pos},
		val:     t.input[start:t.pos],
		IsFloat: isFloat,
	}, nil
}

func (t *Tokenizer) eatDigits() {
	for t.pos < len(t.input) && isDigit(t.input[t.pos]) {
		t.pos++
	}
}

// numberEnd extends the cursor over the rest of a malformed literal so
// the diagnostic spans the whole thing.
func (t *Tokenizer) numberEnd(start int) int {
	p := t.pos
	for p < len(t.input) {
		c := t.input[p]
		if isDigit(c) || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			p++
			continue
		}
		break
	}
	if p == start {
		p = start + 1
	}
	return p
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func quoteByte(c byte) string {
	if c >= 0x20 && c < 0x7F {
		return "'" + string(c) + "'"
	}
	const hex = "0123456789abcdef"
	return "0x" + string(hex[c>>4]) + string(hex[c&0xF])
}
