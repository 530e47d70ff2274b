package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mtpsync/internal/formatter"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) resolvePlaylist(ctx context.Context, cmd *cli.Command) (string, []string, error) {
	name := cmd.StringArg("name")
	if name == "" {
		return "", nil, fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	resolver, err := r.playlistResolver()
	if err != nil {
		return "", nil, err
	}

	files, err := resolver.Resolve(ctx, name)
	if err != nil {
		return "", nil, err
	}
	return name, files, nil
}

// PlaylistShow lists the source files a playlist resolves to.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	name, files, err := r.resolvePlaylist(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"name": name, "files": files}, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d files)", name, len(files)))
	for _, f := range files {
		r.writePlain("%s\n", f)
	}
	return nil
}

// PlaylistExport writes a playlist to <dir>/<name>.m3u.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	name, files, err := r.resolvePlaylist(ctx, cmd)
	if err != nil {
		return err
	}

	path, err := formatter.WriteM3UExport(cmd.String("dir"), name, files)
	if err != nil {
		return err
	}

	r.logger.Info("playlist exported", "name", name, "files", len(files))
	return r.writePlain("%s\n", path)
}
