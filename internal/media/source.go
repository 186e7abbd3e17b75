// Package media serves the static images referenced by assistant replies.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound reports that no image exists under the requested name.
	ErrNotFound = errors.New("media: not found")
	// ErrInvalidName rejects names that are not a single plain file name.
	ErrInvalidName = errors.New("media: invalid name")
)

// Object is an opened image. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Source resolves an image name to its bytes.
type Source interface {
	Open(ctx context.Context, name string) (*Object, error)
}

// ValidName reports whether name is a bare file name with no path components.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsRune(name, 0)
}

// ContentTypeFor guesses the MIME type from the file extension.
func ContentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// LocalSource reads images from a directory on disk.
type LocalSource struct {
	Dir string
}

// NewLocalSource returns a source rooted at dir.
func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{Dir: dir}
}

// Open implements Source.
func (s *LocalSource) Open(_ context.Context, name string) (*Object, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("media: open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("media: stat %s: %w", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	return &Object{Body: f, ContentType: ContentTypeFor(name), Size: info.Size()}, nil
}

// Chain tries each source in order and returns the first hit. A source that
// reports ErrNotFound is skipped; any other error stops the search.
type Chain []Source

// Open implements Source.
func (c Chain) Open(ctx context.Context, name string) (*Object, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	for _, src := range c {
		if src == nil {
			continue
		}
		obj, err := src.Open(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return obj, err
	}
	return nil, ErrNotFound
}
