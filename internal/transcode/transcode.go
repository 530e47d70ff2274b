// package transcode converts library files into device-compatible AAC/MP4 artifacts with an idempotent file cache.
//
// The cache is a flat directory. An artifact lives at <cache_dir>/<stem>.mp4, and its existence is the cache hit signal:
// a cached artifact is never re-validated.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/google/uuid"
)

// Extension is the extension of every artifact.
const Extension = ".mp4"

// Encoder converts src into dst. dst always ends in [Extension].
type Encoder interface {
	Encode(ctx context.Context, src, dst string) error
}

// Transcoder produces cached artifacts through an [Encoder].
type Transcoder struct {
	cacheDir string
	encoder  Encoder
	logger   *log.Logger
}

// TranscoderOpts configures a [Transcoder].
type TranscoderOpts struct {
	CacheDir string
	Encoder  Encoder     // Defaults to [FFmpeg] on $PATH
	Logger   *log.Logger // Defaults to a discard logger
}

// NewTranscoder creates a [Transcoder] writing into opts.CacheDir.
func NewTranscoder(opts TranscoderOpts) *Transcoder {
	if opts.Encoder == nil {
		opts.Encoder = NewFFmpeg("")
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}
	return &Transcoder{cacheDir: opts.CacheDir, encoder: opts.Encoder, logger: opts.Logger}
}

// CacheDir returns the artifact directory.
func (t *Transcoder) CacheDir() string { return t.cacheDir }

// OutputName derives the artifact file name for src.
//
// It fails with [shared.ErrOutputName] when src has no file stem: empty paths, paths ending in a separator, and
// the special names ".", ".." and "/".
func OutputName(src string) (string, error) {
	if src == "" || strings.HasSuffix(src, "/") || strings.HasSuffix(src, string(filepath.Separator)) {
		return "", fmt.Errorf("%w: '%s'", shared.ErrOutputName, src)
	}

	base := filepath.Base(src)
	switch base {
	case ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: '%s'", shared.ErrOutputName, src)
	}

	stem := base
	if ext := filepath.Ext(base); ext != base {
		stem = strings.TrimSuffix(base, ext)
	}
	return stem + Extension, nil
}

// CachePath returns where the artifact for src is stored.
func (t *Transcoder) CachePath(src string) (string, error) {
	name, err := OutputName(src)
	if err != nil {
		return "", err
	}
	return filepath.Join(t.cacheDir, name), nil
}

// Cached reports whether an artifact for src already exists.
func (t *Transcoder) Cached(src string) bool {
	p, err := t.CachePath(src)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Transcode returns the artifact for src, encoding it first unless it is already cached.
//
// The encoder writes to a hidden temporary file in the cache directory which is renamed into place on success,
// so a failed or interrupted encode never leaves a file at the cache path.
func (t *Transcoder) Transcode(ctx context.Context, src string) (string, error) {
	out, err := t.CachePath(src)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(out); err == nil {
		t.logger.Debug("transcode cache hit", "source", src, "artifact", out)
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrCancelled, err)
	}

	if err := os.MkdirAll(t.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp := filepath.Join(t.cacheDir, "."+uuid.NewString()+Extension)
	t.logger.Debug("transcoding", "source", src, "artifact", out)

	if err := t.encoder.Encode(ctx, src, tmp); err != nil {
		os.Remove(tmp)
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
		}
		if errors.Is(err, shared.ErrEncodeFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", shared.ErrEncodeFailed, src, err)
	}

	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move artifact into cache: %w", err)
	}
	return out, nil
}
