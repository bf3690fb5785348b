package vault

import (
	"context"
	"sort"
	"testing"

	"github.com/spf13/afero"
)

func newMemStore(t *testing.T, files map[string]string) *Store {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, text := range files {
		if err := afero.WriteFile(fs, path, []byte(text), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return NewWithFs(fs, "/vault")
}

func TestListFindsOnlyDocuments(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, map[string]string{
		"/vault/a.md":           "a",
		"/vault/sub/b.md":       "b",
		"/vault/sub/deep/c.MD":  "c",
		"/vault/notes.txt":      "not a doc",
		"/vault/.obsidian/d.md": "hidden dir",
		"/vault/.git/e.md":      "hidden dir",
	})

	docs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(docs)
	want := []string{"/vault/a.md", "/vault/sub/b.md", "/vault/sub/deep/c.MD"}
	if len(docs) != len(want) {
		t.Fatalf("docs = %v, want %v", docs, want)
	}
	for i := range want {
		if docs[i] != want[i] {
			t.Fatalf("docs = %v, want %v", docs, want)
		}
	}
}

func TestRead(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, map[string]string{"/vault/a.md": "hello\nworld\n"})

	text, err := s.Read(context.Background(), "/vault/a.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if text != "hello\nworld\n" {
		t.Fatalf("text = %q", text)
	}

	if _, err := s.Read(context.Background(), "/vault/missing.md"); err == nil {
		t.Fatal("expected error for missing document")
	}
}

func TestIsDocument(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want bool
	}{
		{"notes.md", true},
		{"NOTES.MD", true},
		{"a/b/c.Md", true},
		{"notes.txt", false},
		{"notes.md.bak", false},
		{"md", false},
	}
	for _, tt := range tests {
		if got := IsDocument(tt.path); got != tt.want {
			t.Fatalf("IsDocument(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	t.Parallel()
	lines := SplitLines("a\r\nb\nc")
	if len(lines) != 3 || lines[0] != "a" || lines[1] != "b" || lines[2] != "c" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestChangedLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		old  string
		new  string
		line int
		ok   bool
	}{
		{name: "one line differs", old: "a\nb\nc", new: "a\nB\nc", line: 1, ok: true},
		{name: "identical", old: "a\nb", new: "a\nb", ok: false},
		{name: "two lines differ", old: "a\nb\nc", new: "A\nb\nC", ok: false},
		{name: "line added", old: "a\nb", new: "a\nb\nc", ok: false},
		{name: "line removed", old: "a\nb\nc", new: "a\nb", ok: false},
		{name: "crlf normalized", old: "a\r\nb", new: "a\nB", line: 1, ok: true},
		{name: "first line", old: "a\nb", new: "X\nb", line: 0, ok: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			line, ok := ChangedLine(tt.old, tt.new)
			if ok != tt.ok || (ok && line != tt.line) {
				t.Fatalf("ChangedLine = %d, %v; want %d, %v", line, ok, tt.line, tt.ok)
			}
		})
	}
}
