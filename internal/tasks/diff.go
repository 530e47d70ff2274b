package tasks

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/mtpsync/internal/models"
)

// Exister answers whether a relative path is already present. [content.Index] implements it.
type Exister interface {
	Exists(rel string) bool
}

// RelativePath returns p relative to libraryRoot with forward slashes.
//
// Paths outside libraryRoot, or any path when libraryRoot is empty, fall back to the cleaned path without its
// leading separator so that the result never climbs above the indexed folder.
func RelativePath(libraryRoot, p string) string {
	p = filepath.Clean(p)
	if libraryRoot != "" {
		rel, err := filepath.Rel(filepath.Clean(libraryRoot), p)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return strings.TrimLeft(filepath.ToSlash(p), "/")
}

// Missing returns the desired paths whose relative path does not exist in idx, sorted lexically.
func Missing(desired models.DesiredSet, libraryRoot string, idx Exister) []string {
	missing := make([]string, 0)
	for p := range desired {
		if !idx.Exists(RelativePath(libraryRoot, p)) {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return missing
}
