package resource

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch rescans whenever files under the root change, once changes have
// settled for the debounce delay. fn runs on the watcher goroutine; callers
// must hand the snapshot over to the editing context themselves. Watch
// returns once the watcher is running and stops when ctx is done.
func (l *Library) Watch(ctx context.Context, fn func(Snapshot, error)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := l.addWatches(fsw, l.root); err != nil {
		_ = fsw.Close()
		return err
	}

	go func() {
		defer fsw.Close()
		var settle <-chan time.Time
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					// New directories need their own watch.
					_ = l.addWatches(fsw, event.Name)
				}
				if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(l.debounce)
				} else {
					timer.Reset(l.debounce)
				}
				settle = timer.C

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				l.logger.Error("Watcher error", "error", err)

			case <-settle:
				settle = nil
				snap, err := l.Scan(ctx)
				if ctx.Err() != nil {
					return
				}
				fn(snap, err)
			}
		}
	}()

	l.logger.Info("Resource watcher started", "root", l.root, "debounce", l.debounce)
	return nil
}

// addWatches watches dir and every directory below it, skipping hidden ones.
func (l *Library) addWatches(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != l.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			l.logger.Warn("Failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}
