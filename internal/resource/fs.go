package resource

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const (
	// DefaultMetadataDir is the workspace-relative folder holding sync metadata
	DefaultMetadataDir = ".syncstate"

	// EntriesFileName is the name of the metadata file inside the metadata folder
	EntriesFileName = "entries.json"

	// IgnoreFileName is the workspace-level ignore file, in gitignore syntax
	IgnoreFileName = ".syncignore"
)

// FSStore is a Store backed by a go-billy filesystem. Tracking records live
// in a single JSON document under the metadata folder.
type FSStore struct {
	fs          billy.Filesystem
	metadataDir string
	matcher     gitignore.Matcher

	mu      sync.RWMutex
	entries map[Path]json.RawMessage
	events  *Events
}

var _ Store = (*FSStore)(nil)

// FSOption configures an FSStore
type FSOption func(*FSStore)

// WithMetadataDir overrides the metadata folder
func WithMetadataDir(dir string) FSOption {
	return func(s *FSStore) {
		if dir != "" {
			s.metadataDir = strings.Trim(path.Clean("/"+dir), "/")
		}
	}
}

// NewFSStore opens the workspace rooted at fs and loads its metadata
func NewFSStore(fs billy.Filesystem, opts ...FSOption) (*FSStore, error) {
	s := &FSStore{
		fs:          fs,
		metadataDir: DefaultMetadataDir,
		entries:     make(map[Path]json.RawMessage),
		events:      NewEvents(),
	}
	for _, opt := range opts {
		opt(s)
	}

	patterns, err := readIgnorePatterns(fs)
	if err != nil {
		return nil, err
	}
	s.matcher = gitignore.NewMatcher(patterns)

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func readIgnorePatterns(fs billy.Filesystem) ([]gitignore.Pattern, error) {
	data, err := util.ReadFile(fs, IgnoreFileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", IgnoreFileName, err)
	}

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", IgnoreFileName, err)
	}
	return patterns, nil
}

func (s *FSStore) entriesPath() string {
	return path.Join(s.metadataDir, EntriesFileName)
}

func (s *FSStore) load() error {
	data, err := util.ReadFile(s.fs, s.entriesPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read metadata file: %w", err)
	}

	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal metadata file: %w", err)
	}
	for key, blob := range raw {
		s.entries[NewPath(key)] = blob
	}
	slog.Debug("Loaded sync metadata", "entries", len(s.entries), "path", s.entriesPath())
	return nil
}

// saveLocked writes the metadata document through a temporary file and a
// rename. The caller holds the write lock.
func (s *FSStore) saveLocked() error {
	if err := s.fs.MkdirAll(s.metadataDir, 0750); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	raw := make(map[string]json.RawMessage, len(s.entries))
	for p, blob := range s.entries {
		raw[p.String()] = blob
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata file: %w", err)
	}

	target := s.entriesPath()
	tempPath := target + ".tmp"
	if err := util.WriteFile(s.fs, tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary metadata file: %w", err)
	}
	if err := s.fs.Rename(tempPath, target); err != nil {
		_ = s.fs.Remove(tempPath)
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}
	return nil
}

// hidden reports whether p belongs to bookkeeping rather than the workspace
func (s *FSStore) hidden(p Path) bool {
	segments := p.Segments()
	if len(segments) == 0 {
		return false
	}
	return p.HasPrefix(NewPath(s.metadataDir)) || segments[0] == ".git"
}

func (s *FSStore) ignored(p Path, isDir bool) bool {
	segments := p.Segments()
	if len(segments) == 0 {
		return false
	}
	return s.matcher.Match(segments, isDir)
}

// Stat returns the local state of a node
func (s *FSStore) Stat(p Path) (Info, error) {
	if p.IsRoot() {
		return Info{Path: p, Kind: KindFolder, Exists: true}, nil
	}
	if s.hidden(p) {
		return Info{Path: p, Kind: KindFile}, nil
	}

	fi, err := s.fs.Lstat(fsName(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			info := Info{Path: p, Kind: KindFile}
			if md, mdErr := s.decoded(p); mdErr == nil && md != nil && md.Folder {
				info.Kind = KindFolder
			}
			return info, nil
		}
		return Info{}, fmt.Errorf("failed to stat %s: %w", p, err)
	}

	kind := KindFile
	if fi.IsDir() {
		kind = KindFolder
	}
	return Info{Path: p, Kind: kind, Exists: true, Ignored: s.ignored(p, fi.IsDir())}, nil
}

func (s *FSStore) decoded(p Path) (*Metadata, error) {
	s.mu.RLock()
	blob := s.entries[p]
	s.mu.RUnlock()
	return DecodeMetadata(p, blob)
}

// Metadata returns the decoded tracking record with Modified derived from
// the current content
func (s *FSStore) Metadata(p Path) (*Metadata, error) {
	md, err := s.decoded(p)
	if err != nil || md == nil {
		return nil, err
	}
	if !md.Folder {
		content, err := util.ReadFile(s.fs, p.Rel())
		if err == nil {
			deriveModified(md, content)
		}
	}
	return md, nil
}

// SetMetadata replaces the tracking record of a node and persists the change
func (s *FSStore) SetMetadata(p Path, md *Metadata) error {
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
	s.entries[p] = blob
	err = s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.events.Publish(Event{Path: p})
	return nil
}

// Unmanage clears the tracking record of a node and persists the change
func (s *FSStore) Unmanage(p Path) error {
	s.mu.Lock()
	if _, ok := s.entries[p]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.entries, p)
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.events.Publish(Event{Path: p})
	return nil
}

// Tracked reports whether the node has a tracking record
func (s *FSStore) Tracked(p Path) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[p]
	return ok
}

// Content returns the local content of a file
func (s *FSStore) Content(p Path) ([]byte, error) {
	if s.hidden(p) {
		return nil, fmt.Errorf("failed to read %s: %w", p, ErrPathNotFound)
	}
	data, err := util.ReadFile(s.fs, p.Rel())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", p, ErrPathNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// Children lists existing members and phantoms of a folder
func (s *FSStore) Children(p Path) ([]Info, error) {
	seen := make(map[Path]struct{})
	var out []Info

	entries, err := s.fs.ReadDir(fsName(p))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
	}
	for _, entry := range entries {
		child := p.Join(entry.Name())
		if s.hidden(child) {
			continue
		}
		kind := KindFile
		if entry.IsDir() {
			kind = KindFolder
		}
		seen[child] = struct{}{}
		out = append(out, Info{Path: child, Kind: kind, Exists: true, Ignored: s.ignored(child, entry.IsDir())})
	}

	s.mu.RLock()
	var phantoms []Path
	for tracked := range s.entries {
		if tracked.IsRoot() || tracked.Parent() != p {
			continue
		}
		if _, ok := seen[tracked]; !ok {
			phantoms = append(phantoms, tracked)
		}
	}
	s.mu.RUnlock()

	for _, phantom := range phantoms {
		info, err := s.Stat(phantom)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Projects returns the tracked folders directly under the root
func (s *FSStore) Projects() ([]Path, error) {
	children, err := s.Children(Root)
	if err != nil {
		return nil, err
	}
	var projects []Path
	for _, child := range children {
		if !child.Exists || child.Kind != KindFolder {
			continue
		}
		md, err := s.decoded(child.Path)
		if err != nil || md == nil || !md.Folder {
			continue
		}
		projects = append(projects, child.Path)
	}
	return projects, nil
}

// Events returns the broadcaster for local metadata changes
func (s *FSStore) Events() *Events {
	return s.events
}

func fsName(p Path) string {
	if p.IsRoot() {
		return "/"
	}
	return p.Rel()
}
