// Package vault reads the watched note directory. Documents are plain
// UTF-8 text files; only ".md" files participate in scheduling.
package vault

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Store lists and reads vault documents. It sits on afero so tests can
// run against an in-memory filesystem.
type Store struct {
	fs   afero.Fs
	root string
}

func New(root string) *Store {
	return NewWithFs(afero.NewOsFs(), root)
}

func NewWithFs(afs afero.Fs, root string) *Store {
	return &Store{fs: afs, root: filepath.Clean(root)}
}

func (s *Store) Root() string { return s.root }

// IsDocument reports whether path is a candidate vault document.
func IsDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

// List walks the vault and returns every document path in walk order.
// Hidden directories (".obsidian", ".git", ...) are skipped.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var docs []string
	err := afero.Walk(s.fs, s.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		name := filepath.Base(path)
		if info.IsDir() {
			if path != s.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsDocument(path) {
			docs = append(docs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Read returns the full text of one document.
func (s *Store) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SplitLines splits document text into lines, accepting both \n and
// \r\n terminators.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
