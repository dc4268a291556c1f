// Package resource models the locally tracked resource tree: paths, node kinds,
// version-tracking metadata and the Store through which the sync engine reads
// and writes local state.
package resource

import (
	"path"
	"strings"
)

// Kind is the type of a resource node
type Kind int

const (
	// KindFile is a regular file
	KindFile Kind = iota
	// KindFolder is a folder (container) node
	KindFolder
)

// String returns the string representation of the kind
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

// Path is an absolute, slash-separated, clean resource path. The workspace root is "/".
type Path string

// Root is the path of the workspace root
const Root Path = "/"

// NewPath cleans p and makes it absolute
func NewPath(p string) Path {
	p = strings.ReplaceAll(p, "\\", "/")
	return Path(path.Clean("/" + p))
}

// String returns the path as a string
func (p Path) String() string {
	return string(p)
}

// Parent returns the parent path. The parent of the root is the root.
func (p Path) Parent() Path {
	return Path(path.Dir(string(p)))
}

// Base returns the last element of the path
func (p Path) Base() string {
	return path.Base(string(p))
}

// Join appends name to the path
func (p Path) Join(name string) Path {
	return Path(path.Join(string(p), name))
}

// Rel returns the path relative to the root without the leading slash,
// which is the form used by repositories and filesystems.
func (p Path) Rel() string {
	return strings.TrimPrefix(string(p), "/")
}

// Segments returns the path elements, empty for the root
func (p Path) Segments() []string {
	rel := p.Rel()
	if rel == "" {
		return nil
	}
	return strings.Split(rel, "/")
}

// IsRoot reports whether p is the workspace root
func (p Path) IsRoot() bool {
	return p == Root
}

// HasPrefix reports whether p is equal to root or located beneath it
func (p Path) HasPrefix(root Path) bool {
	if root == Root || p == root {
		return true
	}
	return strings.HasPrefix(string(p), string(root)+"/")
}

// Depth controls how far below a root an operation descends
type Depth int

const (
	// DepthZero only covers the root itself
	DepthZero Depth = iota
	// DepthOne covers the root and its direct members
	DepthOne
	// DepthInfinite covers the whole subtree
	DepthInfinite
)

// String returns the string representation of the depth
func (d Depth) String() string {
	switch d {
	case DepthZero:
		return "zero"
	case DepthOne:
		return "one"
	case DepthInfinite:
		return "infinite"
	default:
		return "unknown"
	}
}

// Within reports whether p lies inside root at the given depth
func Within(root, p Path, depth Depth) bool {
	if !p.HasPrefix(root) {
		return false
	}
	switch depth {
	case DepthZero:
		return p == root
	case DepthOne:
		return p == root || (!p.IsRoot() && p.Parent() == root)
	default:
		return true
	}
}

// Info describes the local state of a single node
type Info struct {
	Path    Path
	Kind    Kind
	Exists  bool
	Ignored bool
}
