// Package sigil implements a shape-directed JSON codec.
//
// Instead of generated code or per-type hand-written marshalers, both
// directions are driven by runtime type descriptors (see the shape
// package): the encoder and decoder walk a value and its Shape in
// lockstep, so one pair of drivers serves every supported Go type.
//
// # Decoding
//
//	var cfg Config
//	if err := sigil.Unmarshal(data, &cfg); err != nil { ... }
//
// Decoding is a single pass: a streaming tokenizer hands out tokens
// with byte spans, and a recursive driver dispatches on the target
// shape. Strings borrow their bytes from the input unless they contain
// escapes. Aggregates are built field by field behind an
// initialization bitset, so a failure mid-object tears down exactly
// what was built and the destination never holds a half-decoded value.
//
// # Encoding
//
//	out, err := sigil.Marshal(cfg)
//
// Output is deterministic: map entries are sorted by key, integers are
// canonical decimal, and floats use the shortest form that parses back
// to the same value. MarshalIndent produces the pretty form; Append
// writes into a caller-owned buffer.
//
// # Diagnostics
//
// Every error is a *Error carrying an ErrorKind, the byte span of the
// offending input, and the path from the document root:
//
//	type mismatch: expected int, got string at byte 27 ($.items[2].id) near `…"id": "x"…`
//
// # Multiple documents
//
// Decoder consumes a buffer of concatenated documents (JSON Lines),
// resuming each Decode at the byte after the previous value. The
// stream package layers this over io.Reader / io.Writer.
package sigil
