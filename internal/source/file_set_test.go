package source

import "testing"

func TestResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("main.rill", []byte("fn main/0\n  unit\n  ret\n"))

	cases := []struct {
		off  uint32
		line uint32
		col  uint32
	}{
		{0, 1, 1},
		{3, 1, 4},
		{10, 2, 1},
		{12, 2, 3},
		{17, 3, 1},
	}
	for _, tc := range cases {
		got, _ := fs.Resolve(Span{File: id, Start: tc.off, End: tc.off + 1})
		if got.Line != tc.line || got.Col != tc.col {
			t.Errorf("offset %d: got %d:%d, want %d:%d", tc.off, got.Line, got.Col, tc.line, tc.col)
		}
	}
}

func TestFormatSpan(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("a/b.rill", []byte("one\ntwo\n"))

	got := fs.Format(Span{File: id, Start: 4, End: 7})
	if got != "a/b.rill:2:1" {
		t.Errorf("Format = %q, want %q", got, "a/b.rill:2:1")
	}

	if got := fs.Format(Span{}); got != "<no-span>" {
		t.Errorf("empty span: got %q", got)
	}
}

func TestNormalizeCRLF(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("crlf.rill", normalizeCRLF([]byte("a\r\nb\r\nc")))
	f := fs.Get(id)
	if string(f.Content) != "a\nb\nc" {
		t.Errorf("content = %q", f.Content)
	}
}

func TestLookup(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("./x.rill", nil)
	got, ok := fs.Lookup("x.rill")
	if !ok || got != id {
		t.Errorf("Lookup = %v, %v", got, ok)
	}
}
