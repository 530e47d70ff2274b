package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/desertthunder/mtpsync/internal/shared"
)

// FFmpeg encodes with the ffmpeg command line tool.
type FFmpeg struct {
	Path string // Executable, "ffmpeg" when empty
}

// NewFFmpeg returns an [FFmpeg] encoder using the executable at path.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path}
}

// Args returns the ffmpeg arguments used to encode src into dst.
//
// Output is 256 kbit/s AAC at 44.1 kHz with container and stream metadata copied over and video (cover art) dropped.
func (f *FFmpeg) Args(src, dst string) []string {
	return []string{
		"-y",
		"-i", src,
		"-c:a", "aac",
		"-b:a", "256k",
		"-ar", "44100",
		"-map_metadata", "0",
		"-map_metadata", "0:s:0",
		"-vn",
		dst,
	}
}

// Encode runs ffmpeg and fails with [shared.ErrEncodeFailed] when it does not exit cleanly.
func (f *FFmpeg) Encode(ctx context.Context, src, dst string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Path, f.Args(src, dst)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v%s", shared.ErrEncodeFailed, src, err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return ": " + s
}
