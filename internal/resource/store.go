package resource

import (
	"errors"
	"fmt"
	"sort"
)

// ErrPathNotFound is returned when content is requested for a node that does not exist locally
var ErrPathNotFound = errors.New("path not found")

// Store gives the sync engine access to the local resource tree
type Store interface {
	// Stat returns the local state of a node. Missing nodes are reported with
	// Exists set to false, not as an error.
	Stat(p Path) (Info, error)

	// Metadata returns the decoded tracking record of a node, or nil if the
	// node is not managed. Undecodable records yield a *MetadataError.
	Metadata(p Path) (*Metadata, error)

	// SetMetadata replaces the tracking record of a node
	SetMetadata(p Path, md *Metadata) error

	// Unmanage clears the tracking record of a node. Unmanaging an unmanaged
	// node is a no-op.
	Unmanage(p Path) error

	// Tracked reports whether the node has a tracking record, readable or not
	Tracked(p Path) bool

	// Content returns the local content of a file
	Content(p Path) ([]byte, error)

	// Children lists the direct members of a folder, including phantoms:
	// members that are tracked but no longer exist locally.
	Children(p Path) ([]Info, error)

	// Projects returns the version-controlled top-level folders
	Projects() ([]Path, error)

	// Events returns the broadcaster for local metadata changes
	Events() *Events
}

// WalkFunc is called for every node visited by Walk
type WalkFunc func(info Info) error

// SkipDir can be returned by a WalkFunc to skip the members of a folder
var SkipDir = errors.New("skip this directory")

// Walk visits root and its members down to depth, phantoms included,
// in lexical order.
func Walk(store Store, root Path, depth Depth, fn WalkFunc) error {
	info, err := store.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.Exists {
		md, err := store.Metadata(root)
		if err == nil && md != nil && md.Folder {
			info.Kind = KindFolder
		}
	}
	return walk(store, info, root, depth, fn)
}

func walk(store Store, info Info, root Path, depth Depth, fn WalkFunc) error {
	if err := fn(info); err != nil {
		if errors.Is(err, SkipDir) {
			return nil
		}
		return err
	}
	if info.Kind != KindFolder || depth == DepthZero {
		return nil
	}
	if depth == DepthOne && info.Path != root {
		return nil
	}

	children, err := store.Children(info.Path)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", info.Path, err)
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].Path < children[j].Path
	})
	for _, child := range children {
		if err := walk(store, child, root, depth, fn); err != nil {
			return err
		}
	}
	return nil
}
