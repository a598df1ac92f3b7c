package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
)

const (
	// LayoutSuffix is appended to the graph file name to form the layout file.
	LayoutSuffix = ".layout"
	tmpPrefix    = ".tmp-"
)

// Store implements ports.DocumentStore using the local filesystem.
// The graph section of key lives at BasePath/key and the layout section
// next to it with LayoutSuffix appended.
type Store struct {
	BasePath string
}

// New creates a new Store rooted at basePath. With an empty basePath keys
// are plain file paths, relative to the working directory or absolute.
func New(basePath string) *Store {
	return &Store{BasePath: basePath}
}

// Path returns the file backing a section.
func (s *Store) Path(key string, section ports.Section) (string, error) {
	if key == "" {
		return "", fmt.Errorf("document key cannot be empty")
	}
	p := filepath.FromSlash(key)
	if s.BasePath != "" {
		if !filepath.IsLocal(p) {
			return "", fmt.Errorf("document key %q escapes the store directory", key)
		}
		p = filepath.Join(s.BasePath, p)
	}
	switch section {
	case ports.SectionGraph:
		return p, nil
	case ports.SectionLayout:
		return p + LayoutSuffix, nil
	default:
		return "", fmt.Errorf("unknown section %q", section)
	}
}

// Write persists a section atomically.
// It writes to a temporary file in the same directory, syncs via fsync, and
// then renames it over the destination.
func (s *Store) Write(ctx context.Context, key string, section ports.Section, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := s.Path(key, section)
	if err != nil {
		return err
	}
	return WriteAtomic(dest, data)
}

// WriteAtomic replaces the file at dest with data without ever exposing a
// partially written file.
func WriteAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure document directory: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, tmpPrefix+filepath.Base(dest)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to replace %s: %w", dest, err)
	}
	return nil
}

// Read returns a section.
func (s *Store) Read(ctx context.Context, key string, section ports.Section) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(key, section)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, key)
		}
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// Delete removes both section files.
func (s *Store) Delete(ctx context.Context, key string) error {
	for _, section := range ports.Sections {
		p, err := s.Path(key, section)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}
	return nil
}

// List returns the keys of every graph file under BasePath.
func (s *Store) List(ctx context.Context) ([]string, error) {
	root := s.BasePath
	if root == "" {
		root = "."
	}

	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, tmpPrefix) || strings.HasSuffix(name, LayoutSuffix) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
