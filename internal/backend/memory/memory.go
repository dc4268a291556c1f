// Package memory provides a scripted in-memory Backend for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/variant"
)

// Backend serves variants from per-tag maps
type Backend struct {
	mu       sync.RWMutex
	roots    []resource.Path
	tags     map[string]map[resource.Path]variant.Variant
	failures map[resource.Path]error
	calls    map[resource.Path]int
}

var _ backend.Backend = (*Backend)(nil)

// New creates a backend that contains everything below roots. Without
// roots it contains the whole workspace.
func New(roots ...resource.Path) *Backend {
	return &Backend{
		roots:    roots,
		tags:     make(map[string]map[resource.Path]variant.Variant),
		failures: make(map[resource.Path]error),
		calls:    make(map[resource.Path]int),
	}
}

// Put stores a variant at tag. Missing parent folders are added.
func (b *Backend) Put(tag backend.Tag, v variant.Variant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.tagLocked(tag)
	for p := v.Path.Parent(); !p.IsRoot(); p = p.Parent() {
		if _, ok := entries[p]; !ok {
			entries[p] = variant.Variant{Path: p, Kind: resource.KindFolder, Branch: v.Branch}
		}
	}
	entries[v.Path] = v
}

// PutFile stores a file variant with content at tag
func (b *Backend) PutFile(tag backend.Tag, p resource.Path, revision string, content []byte) {
	b.Put(tag, variant.Variant{
		Path:       p,
		Kind:       resource.KindFile,
		Revision:   revision,
		Content:    content,
		HasContent: content != nil,
	})
}

// Remove drops a variant and its members from tag
func (b *Backend) Remove(tag backend.Tag, p resource.Path) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.tagLocked(tag)
	for existing := range entries {
		if existing.HasPrefix(p) {
			delete(entries, existing)
		}
	}
}

// FailRoot makes every fetch of root fail with err until cleared with a nil error
func (b *Backend) FailRoot(root resource.Path, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, root)
		return
	}
	b.failures[root] = err
}

// Calls returns how many times root was fetched
func (b *Backend) Calls(root resource.Path) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls[root]
}

func (b *Backend) tagLocked(tag backend.Tag) map[resource.Path]variant.Variant {
	key := tag.String()
	entries, ok := b.tags[key]
	if !ok {
		entries = make(map[resource.Path]variant.Variant)
		b.tags[key] = entries
	}
	return entries
}

// FetchRemote returns the variants of root at tag
func (b *Backend) FetchRemote(
	ctx context.Context,
	tag backend.Tag,
	root resource.Path,
	depth resource.Depth,
	withContent bool,
) ([]variant.Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.calls[root]++
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.failures[root]; err != nil {
		return nil, err
	}
	entries, ok := b.tags[tag.String()]
	if !ok {
		if tag.Kind == backend.TagHead || tag.Kind == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", backend.ErrTagNotFound, tag)
	}

	var out []variant.Variant
	for p, v := range entries {
		if !resource.Within(root, p, depth) {
			continue
		}
		if !withContent {
			v.Content = nil
			v.HasContent = false
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Contains reports whether p is below one of the backend roots
func (b *Backend) Contains(p resource.Path) bool {
	if len(b.roots) == 0 {
		return true
	}
	for _, root := range b.roots {
		if p.HasPrefix(root) {
			return true
		}
	}
	return false
}
