package resource

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type memNode struct {
	kind    Kind
	content []byte
	ignored bool
}

// MemoryStore is an in-memory Store. It backs tests and dry-run previews.
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[Path]*memNode
	blobs  map[Path][]byte
	events *Events
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store containing only the root folder
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: map[Path]*memNode{
			Root: {kind: KindFolder},
		},
		blobs:  make(map[Path][]byte),
		events: NewEvents(),
	}
}

// AddFolder creates a folder and any missing parents
func (s *MemoryStore) AddFolder(p Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAll(p)
}

// AddFile creates or replaces a file, creating missing parent folders
func (s *MemoryStore) AddFile(p Path, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAll(p.Parent())
	s.nodes[p] = &memNode{kind: KindFile, content: append([]byte(nil), content...)}
}

// WriteContent replaces the content of an existing file
func (s *MemoryStore) WriteContent(p Path, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[p]
	if !ok || n.kind != KindFile {
		return fmt.Errorf("failed to write %s: %w", p, ErrPathNotFound)
	}
	n.content = append([]byte(nil), content...)
	return nil
}

// Remove deletes a node and everything below it. Tracking records are kept,
// which turns tracked nodes into phantoms.
func (s *MemoryStore) Remove(p Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for existing := range s.nodes {
		if existing != Root && existing.HasPrefix(p) {
			delete(s.nodes, existing)
		}
	}
}

// SetIgnored marks a node as ignored or not
func (s *MemoryStore) SetIgnored(p Path, ignored bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[p]; ok {
		n.ignored = ignored
	}
}

// SetRawMetadata stores a blob without decoding it
func (s *MemoryStore) SetRawMetadata(p Path, blob []byte) {
	s.mu.Lock()
	s.blobs[p] = append([]byte(nil), blob...)
	s.mu.Unlock()
	s.events.Publish(Event{Path: p})
}

func (s *MemoryStore) mkdirAll(p Path) {
	for cur := p; ; cur = cur.Parent() {
		if _, ok := s.nodes[cur]; !ok {
			s.nodes[cur] = &memNode{kind: KindFolder}
		}
		if cur.IsRoot() {
			return
		}
	}
}

// Stat returns the local state of a node
func (s *MemoryStore) Stat(p Path) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statLocked(p), nil
}

func (s *MemoryStore) statLocked(p Path) Info {
	n, ok := s.nodes[p]
	if !ok {
		info := Info{Path: p, Kind: KindFile}
		if md, err := DecodeMetadata(p, s.blobs[p]); err == nil && md != nil && md.Folder {
			info.Kind = KindFolder
		}
		return info
	}
	return Info{Path: p, Kind: n.kind, Exists: true, Ignored: n.ignored}
}

// Metadata returns the decoded tracking record with Modified derived from
// the current content
func (s *MemoryStore) Metadata(p Path) (*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, err := DecodeMetadata(p, s.blobs[p])
	if err != nil || md == nil {
		return nil, err
	}
	if n, ok := s.nodes[p]; ok && n.kind == KindFile {
		deriveModified(md, n.content)
	}
	return md, nil
}

// SetMetadata replaces the tracking record of a node
func (s *MemoryStore) SetMetadata(p Path, md *Metadata) error {
	if md == nil {
		return s.Unmanage(p)
	}
	if md.Timestamp.IsZero() {
		md.Timestamp = time.Now().UTC()
	}
	blob, err := EncodeMetadata(md)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.blobs[p] = blob
	s.mu.Unlock()
	s.events.Publish(Event{Path: p})
	return nil
}

// Unmanage clears the tracking record of a node
func (s *MemoryStore) Unmanage(p Path) error {
	s.mu.Lock()
	_, ok := s.blobs[p]
	delete(s.blobs, p)
	s.mu.Unlock()
	if ok {
		s.events.Publish(Event{Path: p})
	}
	return nil
}

// Tracked reports whether the node has a tracking record
func (s *MemoryStore) Tracked(p Path) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[p]
	return ok
}

// Content returns the local content of a file
func (s *MemoryStore) Content(p Path) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[p]
	if !ok || n.kind != KindFile {
		return nil, fmt.Errorf("failed to read %s: %w", p, ErrPathNotFound)
	}
	return append([]byte(nil), n.content...), nil
}

// Children lists existing members and phantoms of a folder
func (s *MemoryStore) Children(p Path) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[Path]struct{})
	var out []Info
	collect := func(child Path) {
		if child.IsRoot() || child.Parent() != p {
			return
		}
		if _, ok := seen[child]; ok {
			return
		}
		seen[child] = struct{}{}
		out = append(out, s.statLocked(child))
	}
	for child := range s.nodes {
		collect(child)
	}
	for child := range s.blobs {
		collect(child)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Projects returns the tracked folders directly under the root
func (s *MemoryStore) Projects() ([]Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var projects []Path
	for p, n := range s.nodes {
		if p.IsRoot() || n.kind != KindFolder || p.Parent() != Root {
			continue
		}
		md, err := DecodeMetadata(p, s.blobs[p])
		if err != nil || md == nil || !md.Folder {
			continue
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i] < projects[j] })
	return projects, nil
}

// Events returns the broadcaster for local metadata changes
func (s *MemoryStore) Events() *Events {
	return s.events
}

// deriveModified flags md as modified when content no longer matches the
// recorded checksum. Records without a checksum are left untouched.
func deriveModified(md *Metadata, content []byte) {
	if md.Folder || md.Checksum == 0 {
		return
	}
	if Checksum(content) != md.Checksum {
		md.Modified = true
	}
}
