package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/mtpsync/internal/shared"
)

const (
	swinsianPlaylistQuery = `SELECT playlist_id FROM playlist WHERE name = ? ORDER BY playlist_id LIMIT 1`
	swinsianTracksQuery   = `
		SELECT t.path
		FROM track t
		JOIN playlist_track pt ON pt.track_id = t.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position
	`
)

// SwinsianResolver reads playlists from a Swinsian library database.
//
// The database is opened read-only for each call so that a running Swinsian keeps ownership of it.
type SwinsianResolver struct {
	DBPath string
	db     *sql.DB
}

// NewSwinsianResolver creates a resolver for the library database at path.
func NewSwinsianResolver(path string) *SwinsianResolver {
	return &SwinsianResolver{DBPath: path}
}

// NewSwinsianResolverWithDB creates a resolver over an already open database, which it never closes.
func NewSwinsianResolverWithDB(db *sql.DB) *SwinsianResolver {
	return &SwinsianResolver{db: db}
}

func (s *SwinsianResolver) Name() string { return "swinsian" }

func (s *SwinsianResolver) Resolve(ctx context.Context, name string) ([]string, error) {
	db := s.db
	if db == nil {
		if s.DBPath == "" {
			return nil, fmt.Errorf("%w: playlists.swinsian_db is not set", shared.ErrInvalidConfig)
		}

		var err error
		db, err = shared.OpenReadOnly(s.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open swinsian library: %w", err)
		}
		defer db.Close()
	}

	var playlistID int64
	err := db.QueryRowContext(ctx, swinsianPlaylistQuery, name).Scan(&playlistID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: '%s'", shared.ErrPlaylistNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up playlist: %w", err)
	}

	rows, err := db.QueryContext(ctx, swinsianTracksQuery, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p sql.NullString
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		if p.Valid && p.String != "" {
			paths = append(paths, p.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}
	return paths, nil
}
