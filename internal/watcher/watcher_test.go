package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/mtpsync/internal/shared"
	tu "github.com/desertthunder/mtpsync/internal/testing"
)

func TestNewWatcher(t *testing.T) {
	t.Run("no paths", func(t *testing.T) {
		if _, err := NewWatcher(WatcherOpts{}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := NewWatcher(WatcherOpts{Paths: []string{filepath.Join(t.TempDir(), "nope")}}); err == nil {
			t.Error("expected error for missing path")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		w, err := NewWatcher(WatcherOpts{Paths: []string{t.TempDir()}})
		if err != nil {
			t.Fatalf("NewWatcher() error = %v", err)
		}
		defer w.Close()

		if w.debounce != DefaultDebounce {
			t.Errorf("expected default debounce, got %s", w.debounce)
		}
		if err := w.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
}

func TestMatches(t *testing.T) {
	dir := t.TempDir()
	playlists := filepath.Join(dir, "playlists")
	db := tu.MustWriteFile(t, filepath.Join(dir, "swinsian", "Library.sqlite"), "")
	tu.MustWriteFile(t, filepath.Join(playlists, "Running.m3u"), "")

	w, err := NewWatcher(WatcherOpts{Paths: []string{playlists, db}, Extensions: []string{".m3u", ".M3U8"}})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(playlists, "Running.m3u"), true},
		{filepath.Join(playlists, "Walking.m3u8"), true},
		{filepath.Join(playlists, "notes.txt"), false},
		{filepath.Join(playlists, ".Running.m3u.swp"), false},
		{filepath.Join(playlists, "nested", "Deep.m3u"), false},
		{db, true},
		{db + "-wal", true},
		{filepath.Join(dir, "swinsian", "Other.sqlite"), false},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			if got := w.Matches(tt.path); got != tt.want {
				t.Errorf("Matches(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	t.Run("coalesces changes", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWatcher(WatcherOpts{Paths: []string{dir}, Extensions: []string{".m3u"}, Debounce: 200 * time.Millisecond})
		if err != nil {
			t.Fatalf("NewWatcher() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := make(chan []string, 10)
		done := make(chan error, 1)
		go func() {
			done <- w.Watch(ctx, func(_ context.Context, changed []string) error {
				calls <- changed
				return nil
			})
		}()

		p := filepath.Join(dir, "Running.m3u")
		for i := 0; i < 3; i++ {
			tu.MustWriteFile(t, p, "/music/A/song1.flac\n")
		}
		tu.MustWriteFile(t, filepath.Join(dir, "ignored.txt"), "x")

		select {
		case changed := <-calls:
			if len(changed) != 1 || changed[0] != p {
				t.Errorf("expected only %s, got %v", p, changed)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for change callback")
		}

		select {
		case changed := <-calls:
			t.Errorf("expected a single callback, got another with %v", changed)
		case <-time.After(600 * time.Millisecond):
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Watch() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Watch did not return after cancel")
		}
	})

	t.Run("callback errors keep watching", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWatcher(WatcherOpts{Paths: []string{dir}, Debounce: 20 * time.Millisecond})
		if err != nil {
			t.Fatalf("NewWatcher() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := make(chan struct{}, 10)
		go w.Watch(ctx, func(context.Context, []string) error {
			calls <- struct{}{}
			return shared.ErrDeviceNotFound
		})

		for i := 0; i < 2; i++ {
			tu.MustWriteFile(t, filepath.Join(dir, "Running.m3u"), "x")
			select {
			case <-calls:
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out waiting for callback %d", i+1)
			}
		}
	})
}
