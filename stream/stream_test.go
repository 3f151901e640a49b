package stream

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/Neumenon/sigil/sigil"
)

type record struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	sent := []record{{1, "a"}, {2, "b"}, {3, "c"}}
	for _, r := range sent {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if w.Count() != 3 {
		t.Errorf("expected 3 documents written, got %d", w.Count())
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("output must end with a newline")
	}

	r := NewReader(&buf)
	var got []record
	for {
		var rec record
		err := r.Next(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, rec)
	}
	if !reflect.DeepEqual(got, sent) {
		t.Errorf("round trip changed the documents:\n  sent: %v\n  got:  %v", sent, got)
	}
}

func TestReader_SkipsBlankLines(t *testing.T) {
	input := "{\"id\":1,\"name\":\"a\"}\n\n   \n{\"id\":2,\"name\":\"b\"}\n"
	r := NewReader(strings.NewReader(input))

	var rec record
	if err := r.Next(&rec); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if rec.ID != 1 {
		t.Errorf("unexpected first document: %+v", rec)
	}
	if err := r.Next(&rec); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if rec.ID != 2 {
		t.Errorf("unexpected second document: %+v", rec)
	}
	if err := r.Next(&rec); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReader_ErrorCarriesLineNumber(t *testing.T) {
	input := "{\"id\":1,\"name\":\"a\"}\n{\"id\":true,\"name\":\"b\"}\n"
	r := NewReader(strings.NewReader(input))

	var rec record
	if err := r.Next(&rec); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	err := r.Next(&rec)
	if err == nil {
		t.Fatal("expected error on the second line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line number in error, got: %v", err)
	}
	if r.Line() != 2 {
		t.Errorf("expected Line() == 2, got %d", r.Line())
	}
}

func TestReader_DecodeOptions(t *testing.T) {
	input := "{\"id\":1,\"name\":\"a\",\"extra\":true}\n"
	r := NewReader(strings.NewReader(input),
		WithDecodeOptions(sigil.Options{DisallowUnknownFields: true}))

	var rec record
	if err := r.Next(&rec); err == nil {
		t.Fatal("expected unknown field error")
	}

	// Without the option the extra member is skipped.
	r = NewReader(strings.NewReader(input))
	if err := r.Next(&rec); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if rec.ID != 1 || rec.Name != "a" {
		t.Errorf("unexpected document: %+v", rec)
	}
}

func TestReader_MaxLine(t *testing.T) {
	long := "{\"id\":1,\"name\":\"" + strings.Repeat("x", 200) + "\"}\n"
	r := NewReader(strings.NewReader(long), WithMaxLine(64))

	var rec record
	if err := r.Next(&rec); err == nil || err == io.EOF {
		t.Fatalf("expected an oversized line error, got %v", err)
	}
}

func TestWriteAll_ReadAll(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteAll(record{1, "a"}, record{2, "b"}); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	var got []record
	r := NewReader(&buf)
	err := r.ReadAll(
		func() any { return &record{} },
		func(v any) error {
			got = append(got, *v.(*record))
			return nil
		},
	)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !reflect.DeepEqual(got, []record{{1, "a"}, {2, "b"}}) {
		t.Errorf("unexpected documents: %v", got)
	}
}
