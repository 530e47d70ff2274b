package content

import (
	"encoding/hex"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/mtpsync/internal/models"
	"golang.org/x/crypto/sha3"
)

// IdentifierLen is the length of a hex-encoded content identifier.
const IdentifierLen = 64

// Canonical returns the canonical form of a relative path.
//
// Separators become forward slashes, leading slashes are dropped, the path is cleaned and the last extension of the
// final element is removed. Dotfiles keep their name ("a/.hidden" stays as is).
func Canonical(rel string) string {
	p := filepath.ToSlash(rel)
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}

	dir, base := path.Split(p)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return dir + base
}

// Identifier returns the content identifier of rel: the lowercase hex SHA3-256 digest of [Canonical](rel).
func Identifier(rel string) string {
	sum := sha3.Sum256([]byte(Canonical(rel)))
	return hex.EncodeToString(sum[:])
}

// IsIdentifier reports whether s has the shape of a content identifier.
func IsIdentifier(s string) bool {
	if len(s) != IdentifierLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9') && !('a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// Index is an immutable set of content identifiers. It is safe for concurrent readers.
type Index struct {
	ids map[string]struct{}
}

// Flatten walks tree depth first and indexes every file leaf by the identifier of its path relative to tree.
//
// The root's own name is not part of the relative paths. A leaf whose name without extension is already an
// identifier, as written by the transfer writer, contributes that identifier directly.
func Flatten(tree models.TreeNode) *Index {
	idx := &Index{ids: make(map[string]struct{})}
	switch tree.Kind {
	case models.KindFolder:
		for _, child := range tree.Children {
			idx.walk(child, "")
		}
	case models.KindFile:
		idx.walk(tree, "")
	}
	return idx
}

func (idx *Index) walk(n models.TreeNode, prefix string) {
	rel := n.Name
	if prefix != "" {
		rel = prefix + "/" + n.Name
	}

	switch n.Kind {
	case models.KindFile:
		if stem := Canonical(n.Name); IsIdentifier(stem) {
			idx.ids[stem] = struct{}{}
			return
		}
		idx.ids[Identifier(rel)] = struct{}{}
	case models.KindFolder:
		for _, child := range n.Children {
			idx.walk(child, rel)
		}
	}
}

// NewIndex builds an index from relative paths. Mainly useful when the tree is not available.
func NewIndex(rels ...string) *Index {
	idx := &Index{ids: make(map[string]struct{}, len(rels))}
	for _, r := range rels {
		idx.ids[Identifier(r)] = struct{}{}
	}
	return idx
}

// Exists reports whether the canonical form of rel is present.
func (idx *Index) Exists(rel string) bool {
	return idx.Contains(Identifier(rel))
}

// Contains reports whether id is present.
func (idx *Index) Contains(id string) bool {
	_, ok := idx.ids[id]
	return ok
}

// Len returns the number of distinct identifiers.
func (idx *Index) Len() int { return len(idx.ids) }

// IDs returns every identifier in lexical order.
func (idx *Index) IDs() []string {
	out := make([]string, 0, len(idx.ids))
	for id := range idx.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
