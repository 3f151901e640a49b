package sigil

// Valid reports whether data is a single syntactically valid JSON
// document. No target shape is involved; only syntax and structure are
// checked.
func Valid(data []byte) bool {
	return Check(data) == nil
}

// Check walks data with the tokenizer and returns the first diagnostic,
// or nil if the document is well formed. The walk enforces the same
// structural rules as decoding: strict commas, no trailing comma, and
// nothing after the root value.
func Check(data []byte) *Error {
	d := &decodeState{src: data, tok: NewTokenizer(data)}
	if err := d.skipValue(nil); err != nil {
		return err
	}
	return d.requireEOF()
}

// CheckAll validates a multi-document buffer, as produced by JSON Lines
// writers. At least one document is required.
func CheckAll(data []byte) *Error {
	d := &decodeState{src: data, tok: NewTokenizer(data)}
	docs := 0
	for {
		t, err := d.peek()
		if err != nil {
			return err
		}
		if t.Kind == TokenEOF {
			if docs == 0 {
				return errAt(data, KindUnexpectedEnd, t.Span, "empty input")
			}
			return nil
		}
		if err := d.skipValue(nil); err != nil {
			return err
		}
		docs++
	}
}
