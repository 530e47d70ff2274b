package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/mtpsync/internal/shared"
)

// M3UResolver reads playlists from .m3u/.m3u8 files in a directory.
type M3UResolver struct {
	Dir string
}

// NewM3UResolver creates a resolver for playlists stored in dir.
func NewM3UResolver(dir string) *M3UResolver {
	return &M3UResolver{Dir: dir}
}

func (m *M3UResolver) Name() string { return "m3u" }

// Path returns the playlist file for name, preferring .m3u over .m3u8.
func (m *M3UResolver) Path(name string) (string, error) {
	if m.Dir == "" {
		return "", fmt.Errorf("%w: playlists.m3u_dir is not set", shared.ErrInvalidConfig)
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: playlist name '%s'", shared.ErrInvalidArgument, name)
	}

	for _, ext := range []string{".m3u", ".m3u8"} {
		p := filepath.Join(m.Dir, name+ext)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: '%s' in %s", shared.ErrPlaylistNotFound, name, m.Dir)
}

func (m *M3UResolver) Resolve(ctx context.Context, name string) ([]string, error) {
	p, err := m.Path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: '%s'", shared.ErrPlaylistNotFound, name)
		}
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	return ParseM3U(f, filepath.Dir(p))
}

// ParseM3U reads playlist entries from r, resolving relative entries against base.
func ParseM3U(r io.Reader, base string) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimPrefix(line, "file://")
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, filepath.FromSlash(line))
		}
		paths = append(paths, filepath.Clean(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	return paths, nil
}
