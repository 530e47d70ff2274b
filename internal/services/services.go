package services

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
)

// PlaylistResolver resolves playlist names to source file paths.
type PlaylistResolver interface {
	// Resolve returns the absolute paths of the files in playlist name, in playlist order.
	// Returns an error wrapping [shared.ErrPlaylistNotFound] if no such playlist exists.
	Resolve(ctx context.Context, name string) ([]string, error)

	// Name returns the name of the source (e.g., "m3u", "swinsian")
	Name() string
}

// NewResolver builds the resolver selected by cfg.Playlists.Source.
func NewResolver(cfg *shared.Config) (PlaylistResolver, error) {
	switch cfg.Playlists.Source {
	case "", "m3u":
		return NewM3UResolver(cfg.Playlists.M3UDir), nil
	case "swinsian":
		return NewSwinsianResolver(cfg.Playlists.SwinsianDB), nil
	default:
		return nil, fmt.Errorf("%w: unknown playlist source '%s'", shared.ErrInvalidConfig, cfg.Playlists.Source)
	}
}

// BuildDesiredSet resolves every playlist in names and unions their files.
//
// Duplicate paths across playlists collapse. The first failing playlist aborts the build.
func BuildDesiredSet(ctx context.Context, r PlaylistResolver, names []string) (models.DesiredSet, error) {
	set := models.NewDesiredSet()
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCancelled, err)
		}

		paths, err := r.Resolve(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve playlist '%s' from %s: %w", name, r.Name(), err)
		}
		for _, p := range paths {
			set.Add(filepath.Clean(p))
		}
	}
	return set, nil
}
