package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Transcode encodes one source file into the transcode cache and prints the artifact path.
func (r *Runner) Transcode(ctx context.Context, cmd *cli.Command) error {
	file := cmd.StringArg("file")
	if file == "" {
		return fmt.Errorf("%w: file is required", shared.ErrMissingArgument)
	}

	src, err := filepath.Abs(shared.ExpandHome(file))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	t := r.newTranscoder()
	cached := t.Cached(src)

	out, err := t.Transcode(ctx, src)
	if err != nil {
		return err
	}

	r.logger.Info("transcoded", "source", src, "cached", cached)
	return r.writePlain("%s\n", out)
}
