// package watcher re-runs a callback when playlist sources change on disk.
//
// Directories are watched rather than files, so editors that save by writing a new file and renaming it over the
// old one are still seen. Bursts of events are coalesced: the callback runs once the watched paths have been quiet
// for the debounce interval.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when WatcherOpts.Debounce is zero.
const DefaultDebounce = 2 * time.Second

// ChangeFunc is invoked with the sorted paths that changed since the previous call.
type ChangeFunc func(ctx context.Context, changed []string) error

// WatcherOpts configures a [Watcher].
type WatcherOpts struct {
	// Paths to watch. A directory matches every file in it whose extension is in Extensions (all files when
	// Extensions is empty). A file matches itself and sidecars named "<file>-<suffix>", like sqlite's -wal.
	Paths      []string
	Extensions []string
	Debounce   time.Duration
	Logger     *log.Logger
}

// Watcher coalesces file system events for a set of paths.
type Watcher struct {
	fs         *fsnotify.Watcher
	dirs       map[string]bool   // watched directory -> match every file with an allowed extension
	files      map[string]string // watched file -> its directory
	extensions []string
	debounce   time.Duration
	logger     *log.Logger
	closeOnce  sync.Once
}

// NewWatcher starts watching opts.Paths. Every path must exist.
func NewWatcher(opts WatcherOpts) (*Watcher, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("%w: no paths to watch", shared.ErrMissingArgument)
	}

	w := &Watcher{
		dirs:     make(map[string]bool),
		files:    make(map[string]string),
		debounce: opts.Debounce,
		logger:   opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = shared.NopLogger()
	}
	for _, ext := range opts.Extensions {
		w.extensions = append(w.extensions, strings.ToLower(ext))
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.fs = fs

	for _, p := range opts.Paths {
		if err := w.add(p); err != nil {
			fs.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(p string) error {
	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", p, err)
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", p, err)
	}

	dir := abs
	if fi.IsDir() {
		w.dirs[abs] = true
	} else {
		dir = filepath.Dir(abs)
		w.files[abs] = dir
		if _, ok := w.dirs[dir]; !ok {
			w.dirs[dir] = false
		}
	}

	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	return nil
}

// Matches reports whether a change to path should trigger the callback.
func (w *Watcher) Matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	if strings.HasPrefix(filepath.Base(abs), ".") {
		return false
	}

	for file := range w.files {
		if abs == file || strings.HasPrefix(abs, file+"-") {
			return true
		}
	}

	if !w.dirs[filepath.Dir(abs)] {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(abs)))
}

// Watch blocks until ctx is cancelled, calling fn after each quiet period that follows a matching change.
//
// Errors from fn are logged and watching continues. Watch closes the watcher when it returns.
func (w *Watcher) Watch(ctx context.Context, fn ChangeFunc) error {
	defer w.Close()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]struct{})
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.Matches(event.Name) {
				continue
			}

			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)

			w.logger.Info("playlists changed", "count", len(changed))
			if err := fn(ctx, changed); err != nil {
				if ctx.Err() != nil && errors.Is(err, shared.ErrCancelled) {
					return nil
				}
				w.logger.Error("sync after change failed", "error", err)
			}
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fs.Close()
	})
	return err
}
