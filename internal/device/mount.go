package device

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/mtpsync/internal/models"
)

// partialPrefix marks in-flight writes. Listings never report these files.
const partialPrefix = ".mtpsync-partial-"

const copyChunk = 256 * 1024

// DefaultMountPatterns are the locations where gvfs, jmtpfs and go-mtpfs usually mount MTP devices.
var DefaultMountPatterns = []string{
	"/run/user/*/gvfs/mtp:host=*",
	"/media/*/*",
	"/mnt/mtp/*",
}

// MountBackend discovers devices exposed as mounted directories, e.g. MTP devices mounted through a FUSE filesystem.
//
// Each directory matching one of Patterns is a candidate. Its top-level directories are the storage areas.
type MountBackend struct {
	Patterns []string
}

// NewMountBackend returns a backend over patterns, falling back to [DefaultMountPatterns].
func NewMountBackend(patterns ...string) *MountBackend {
	if len(patterns) == 0 {
		patterns = DefaultMountPatterns
	}
	return &MountBackend{Patterns: patterns}
}

// Candidates expands every pattern and returns one candidate per distinct directory.
func (b *MountBackend) Candidates(ctx context.Context) ([]Candidate, error) {
	seen := make(map[string]bool)
	var out []Candidate

	for _, pattern := range b.Patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid mount pattern '%s': %w", pattern, err)
		}
		sort.Strings(matches)

		for _, m := range matches {
			m = filepath.Clean(m)
			if seen[m] {
				continue
			}
			seen[m] = true

			if fi, err := os.Stat(m); err != nil || !fi.IsDir() {
				continue
			}
			out = append(out, mountCandidate{path: m})
		}
	}
	return out, nil
}

// MountName derives a friendly device name from a mount directory.
//
// gvfs names mounts "mtp:host=<Vendor>_<Model>_<Serial>"; the prefix is dropped and underscores become spaces.
func MountName(dir string) string {
	name := filepath.Base(filepath.Clean(dir))
	name = strings.TrimPrefix(name, "mtp:host=")
	return strings.ReplaceAll(name, "_", " ")
}

type mountCandidate struct {
	path string
}

func (c mountCandidate) String() string { return c.path }

func (c mountCandidate) Open(ctx context.Context) (Session, error) {
	fi, err := os.Stat(c.path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", c.path)
	}
	return &mountSession{root: c.path}, nil
}

// mountSession maps object ids to absolute paths beneath root.
type mountSession struct {
	root string
}

func (s *mountSession) Name(ctx context.Context) (string, error) {
	name := MountName(s.root)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("cannot derive device name from %s", s.root)
	}
	return name, nil
}

func (s *mountSession) StorageAreas(ctx context.Context) ([]Area, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var areas []Area
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p := filepath.Join(s.root, e.Name())
		free, total := diskSpace(p)
		areas = append(areas, Area{ID: p, Description: e.Name(), FreeBytes: free, MaxBytes: total})
	}
	return areas, nil
}

func (s *mountSession) resolve(area Area, id ObjectID) (string, error) {
	if id == Root {
		return area.ID, nil
	}
	p := filepath.Clean(string(id))
	rel, err := filepath.Rel(area.ID, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object %s is outside storage area %s", id, area.Description)
	}
	return p, nil
}

func (s *mountSession) List(ctx context.Context, area Area, parent ObjectID) ([]Object, error) {
	dir, err := s.resolve(area, parent)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	objects := make([]Object, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), partialPrefix) {
			continue
		}

		obj := Object{
			ID:     ObjectID(filepath.Join(dir, e.Name())),
			Parent: parent,
			Name:   e.Name(),
			Kind:   models.KindFile,
		}
		if e.IsDir() {
			obj.Kind = models.KindFolder
		} else if fi, err := e.Info(); err == nil {
			obj.Size = fi.Size()
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// Send streams r into a hidden partial file next to the destination and renames it into place once complete.
// On any failure the partial file is removed.
func (s *mountSession) Send(ctx context.Context, area Area, parent ObjectID, info ObjectInfo, r io.Reader, progress ProgressFunc) (ObjectID, error) {
	dir, err := s.resolve(area, parent)
	if err != nil {
		return "", err
	}
	if info.Name == "" || strings.ContainsRune(info.Name, filepath.Separator) {
		return "", fmt.Errorf("invalid object name '%s'", info.Name)
	}

	dst := filepath.Join(dir, info.Name)
	tmp, err := os.CreateTemp(dir, partialPrefix+"*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	done := false
	defer func() {
		if !done {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := copyWithProgress(ctx, tmp, r, info.Size, progress); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if !info.ModTime.IsZero() {
		_ = os.Chtimes(tmpName, info.ModTime, info.ModTime)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", err
	}
	done = true
	return ObjectID(dst), nil
}

func (s *mountSession) Delete(ctx context.Context, area Area, id ObjectID) error {
	if id == Root {
		return fmt.Errorf("refusing to delete storage area %s", area.Description)
	}
	p, err := s.resolve(area, id)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

func (s *mountSession) Close() error { return nil }

func copyWithProgress(ctx context.Context, w io.Writer, r io.Reader, total int64, progress ProgressFunc) error {
	buf := make([]byte, copyChunk)
	var sent int64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			sent += int64(n)
			if progress != nil {
				if err := progress(sent, total); err != nil {
					return err
				}
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
