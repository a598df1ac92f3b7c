// Package resource discovers the recognition images available to a
// document and attaches them to nodes.
//
// Scanning runs off the editing context and yields immutable snapshots.
// Attaching an image goes through the document's SetProperty command, so it
// is undoable like any other edit.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns match the image formats the recognition engine reads.
var DefaultPatterns = []string{"**/*.{png,PNG,jpg,JPG,jpeg,JPEG,bmp,BMP}"}

// Image is one discovered file. Path is slash separated and relative to the
// library root, which is the form stored in template properties.
type Image struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Name returns the file name without directories.
func (i Image) Name() string { return path.Base(i.Path) }

// Snapshot is the result of one scan. Values are never modified after
// creation.
type Snapshot struct {
	Root      string
	Images    []Image
	ScannedAt time.Time
}

// Contains reports whether p is in the snapshot.
func (s Snapshot) Contains(p string) bool {
	_, found := slices.BinarySearchFunc(s.Images, p, func(img Image, target string) int {
		switch {
		case img.Path < target:
			return -1
		case img.Path > target:
			return 1
		}
		return 0
	})
	return found
}

// Library scans a resource directory.
type Library struct {
	root     string
	fsys     fs.FS
	patterns []string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	current Snapshot
}

// Option configures a Library.
type Option func(*Library)

// WithPatterns replaces DefaultPatterns.
func WithPatterns(patterns ...string) Option {
	return func(l *Library) {
		l.patterns = patterns
	}
}

// WithDebounce sets how long Watch waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(l *Library) {
		if d > 0 {
			l.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLibrary creates a Library over the directory root.
func NewLibrary(root string, opts ...Option) (*Library, error) {
	l := &Library{
		root:     root,
		fsys:     os.DirFS(root),
		patterns: DefaultPatterns,
		debounce: 200 * time.Millisecond,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, p := range l.patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}
	return l, nil
}

// Root returns the scanned directory.
func (l *Library) Root() string { return l.root }

// Current returns the latest snapshot; empty before the first scan.
func (l *Library) Current() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Scan lists every file matching the patterns, sorted by path, and makes
// the result current.
func (l *Library) Scan(ctx context.Context) (Snapshot, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to scan resources: %w", err)
	}
	if !info.IsDir() {
		return Snapshot{}, fmt.Errorf("failed to scan resources: %s is not a directory", l.root)
	}

	seen := make(map[string]bool)
	var images []Image
	for _, pattern := range l.patterns {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, err
		}
		matches, err := doublestar.Glob(l.fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return Snapshot{}, fmt.Errorf("glob error: %w", err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			fi, err := fs.Stat(l.fsys, m)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					l.logger.Warn("skipping unreadable resource", "path", m, "error", err)
				}
				continue
			}
			images = append(images, Image{Path: m, Size: fi.Size(), ModTime: fi.ModTime()})
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Path < images[j].Path })

	snap := Snapshot{Root: l.root, Images: images, ScannedAt: time.Now()}
	l.mu.Lock()
	l.current = snap
	l.mu.Unlock()
	l.logger.Debug("resources scanned", "root", l.root, "images", len(images))
	return snap, nil
}

// Result is the outcome of an asynchronous scan.
type Result struct {
	Snapshot Snapshot
	Err      error
}

// ScanAsync runs Scan on a worker. The channel yields one Result and closes.
func (l *Library) ScanAsync(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		snap, err := l.Scan(ctx)
		ch <- Result{Snapshot: snap, Err: err}
	}()
	return ch
}
