package sigil

import (
	"math"
	"strconv"
	"unicode/utf8"
)

// ============================================================
// Number formatting
// ============================================================

// appendInt appends the canonical decimal form of a signed integer.
func appendInt(dst []byte, v int64) []byte {
	return strconv.AppendInt(dst, v, 10)
}

// appendUint appends the canonical decimal form of an unsigned integer.
func appendUint(dst []byte, v uint64) []byte {
	return strconv.AppendUint(dst, v, 10)
}

// appendFloat appends the shortest decimal form that round-trips to the
// same float. NaN and infinities have no JSON representation and are
// rejected at the call site before reaching here. strconv's 'g' format
// can produce exponents like "1e+21" which are already valid JSON.
func appendFloat(dst []byte, v float64, bits int) []byte {
	return strconv.AppendFloat(dst, v, 'g', -1, bits)
}

// floatRepresentable reports whether v can appear in a JSON document.
func floatRepresentable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ============================================================
// Number parsing
// ============================================================

// parseInt converts a number literal to a signed integer of the given
// bit width, diagnosing overflow against the target width.
func parseInt(src []byte, tok Token, bits int) (int64, *Error) {
	v, err := strconv.ParseInt(tok.Text(), 10, bits)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, errAt(src, KindNumberOutOfRange, tok.Span,
				"does not fit in int"+strconv.Itoa(bits))
		}
		return 0, errAt(src, KindInvalidNumber, tok.Span, "")
	}
	return v, nil
}

// parseUint converts a number literal to an unsigned integer of the
// given bit width. A leading minus is out of range, not malformed.
func parseUint(src []byte, tok Token, bits int) (uint64, *Error) {
	text := tok.Text()
	if len(text) > 0 && text[0] == '-' {
		return 0, errAt(src, KindNumberOutOfRange, tok.Span,
			"negative value for uint"+strconv.Itoa(bits))
	}
	v, err := strconv.ParseUint(text, 10, bits)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, errAt(src, KindNumberOutOfRange, tok.Span,
				"does not fit in uint"+strconv.Itoa(bits))
		}
		return 0, errAt(src, KindInvalidNumber, tok.Span, "")
	}
	return v, nil
}

// parseFloat converts a number literal with correct rounding. Overflow
// to infinity is reported as out of range rather than silently clamped.
func parseFloat(src []byte, tok Token, bits int) (float64, *Error) {
	v, err := strconv.ParseFloat(tok.Text(), bits)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, errAt(src, KindNumberOutOfRange, tok.Span,
				"does not fit in float"+strconv.Itoa(bits))
		}
		return 0, errAt(src, KindInvalidNumber, tok.Span, "")
	}
	return v, nil
}

// ============================================================
// String escaping
// ============================================================

// safeASCII marks bytes that pass through a JSON string unescaped.
// Everything from 0x20 up except '"' and '\\'; high bytes are handled
// by the UTF-8 path.
var safeASCII = func() (t [256]bool) {
	for i := 0x20; i < 0x80; i++ {
		t[i] = true
	}
	t['"'] = false
	t['\\'] = false
	return
}()

// appendQuoted appends s as a quoted JSON string. Runs of safe bytes
// are located eight at a time and copied in bulk; escapes and
// multi-byte runes drop to the slow path. Invalid UTF-8 is an error
// rather than a replacement character.
func appendQuoted(dst []byte, s string) ([]byte, *Error) {
	dst = append(dst, '"')
	i := 0
	for i < len(s) {
		// Fast path: consume 8 bytes at a time while all are plain ASCII
		// needing no escape.
		for i+8 <= len(s) {
			chunk := uint64(s[i]) | uint64(s[i+1])<<8 | uint64(s[i+2])<<16 |
				uint64(s[i+3])<<24 | uint64(s[i+4])<<32 | uint64(s[i+5])<<40 |
				uint64(s[i+6])<<48 | uint64(s[i+7])<<56
			if !allSafe(chunk) {
				break
			}
			dst = append(dst, s[i:i+8]...)
			i += 8
		}
		if i >= len(s) {
			break
		}
		c := s[i]
		switch {
		case safeASCII[c]:
			dst = append(dst, c)
			i++
		case c < 0x80:
			dst = appendEscape(dst, c)
			i++
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size <= 1 {
				// Encoding has no input document to span, so the offset
				// within the value goes into the detail instead.
				return nil, &Error{Kind: KindInvalidUTF8,
					Detail: "invalid byte at offset " + strconv.Itoa(i) + " in string value"}
			}
			dst = append(dst, s[i:i+size]...)
			i += size
		}
	}
	return append(dst, '"'), nil
}

// allSafe reports whether all 8 bytes of the word are ASCII needing no
// escape: in [0x20, 0x80) and not '"' or '\\'.
func allSafe(w uint64) bool {
	const lo = 0x2020202020202020 // any byte < 0x20 borrows
	const hi = 0x8080808080808080
	if (w-lo)&^w&hi != 0 || w&hi != 0 {
		return false
	}
	return !hasByte(w, '"') && !hasByte(w, '\\')
}

// hasByte reports whether any byte of the word equals c.
func hasByte(w uint64, c byte) bool {
	x := w ^ (0x0101010101010101 * uint64(c))
	return (x-0x0101010101010101)&^x&0x8080808080808080 != 0
}

func appendEscape(dst []byte, c byte) []byte {
	switch c {
	case '"':
		return append(dst, '\\', '"')
	case '\\':
		return append(dst, '\\', '\\')
	case '\b':
		return append(dst, '\\', 'b')
	case '\f':
		return append(dst, '\\', 'f')
	case '\n':
		return append(dst, '\\', 'n')
	case '\r':
		return append(dst, '\\', 'r')
	case '\t':
		return append(dst, '\\', 't')
	default:
		const hex = "0123456789abcdef"
		return append(dst, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xF])
	}
}
