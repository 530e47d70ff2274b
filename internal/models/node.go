package models

import (
	"sort"
)

// Kind tags a [TreeNode] as a file or a folder.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// TreeNode is one entry of the device folder hierarchy.
//
// Folder nodes always carry a non-nil Children slice (possibly empty); file nodes carry nil.
// Parents own their children by value and there are no back references.
type TreeNode struct {
	Name     string
	ID       string // Opaque device object id
	Kind     Kind
	Children []TreeNode
}

// NewFile returns a leaf node.
func NewFile(name, id string) TreeNode {
	return TreeNode{Name: name, ID: id, Kind: KindFile}
}

// NewFolder returns a folder node owning children.
func NewFolder(name, id string, children ...TreeNode) TreeNode {
	if children == nil {
		children = []TreeNode{}
	}
	return TreeNode{Name: name, ID: id, Kind: KindFolder, Children: children}
}

// CountFiles returns the number of file leaves under n, including n itself.
func (n TreeNode) CountFiles() int {
	switch n.Kind {
	case KindFile:
		return 1
	case KindFolder:
		total := 0
		for _, c := range n.Children {
			total += c.CountFiles()
		}
		return total
	default:
		return 0
	}
}

// DesiredSet is the set of absolute source paths required on the device.
type DesiredSet map[string]struct{}

// NewDesiredSet builds a set from paths, collapsing duplicates.
func NewDesiredSet(paths ...string) DesiredSet {
	s := make(DesiredSet, len(paths))
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts p. Empty paths are ignored.
func (s DesiredSet) Add(p string) {
	if p == "" {
		return
	}
	s[p] = struct{}{}
}

// Has reports membership.
func (s DesiredSet) Has(p string) bool {
	_, ok := s[p]
	return ok
}

// Len returns the number of distinct paths.
func (s DesiredSet) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s DesiredSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// TransferObject pairs a transcoded artifact with its source and device-relative destination.
//
// Destination keeps the pre-transcode extension; the transfer writer derives the on-device name from it.
type TransferObject struct {
	Source      string
	Transcoded  string
	Destination string
}
