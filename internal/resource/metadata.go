package resource

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Metadata is the local version-tracking record of a node. It is persisted
// as an opaque blob by the Store and decoded on demand.
type Metadata struct {
	// Revision is the revision id the local copy was checked out from.
	// Empty for folders and for files added locally.
	Revision string `json:"revision,omitempty"`

	// Branch is the branch the revision was taken from
	Branch string `json:"branch,omitempty"`

	// Tag is the tag the local copy is pinned to, if any
	Tag string `json:"tag,omitempty"`

	// Checksum is the xxhash64 of the content as checked out
	Checksum uint64 `json:"checksum,omitempty"`

	// Folder marks the record of a version-controlled folder
	Folder bool `json:"folder,omitempty"`

	// Added marks a file scheduled for addition
	Added bool `json:"added,omitempty"`

	// Deleted marks a file scheduled for deletion
	Deleted bool `json:"deleted,omitempty"`

	// Merged marks a file that received a merge and has not been committed
	Merged bool `json:"merged,omitempty"`

	// Modified marks local edits. Stores also derive it from the checksum.
	Modified bool `json:"modified,omitempty"`

	// Timestamp is the time the record was written
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// IsClean reports whether the record describes an unmodified checkout of Revision
func (m *Metadata) IsClean() bool {
	if m == nil || m.Folder {
		return false
	}
	return m.Revision != "" && !m.Added && !m.Deleted && !m.Merged && !m.Modified
}

// MetadataError is returned when a metadata blob cannot be decoded
type MetadataError struct {
	Path Path
	Err  error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("unreadable sync metadata for %s: %v", e.Path, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// EncodeMetadata serializes a metadata record into its blob form
func EncodeMetadata(md *Metadata) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}

// DecodeMetadata parses a metadata blob. A nil or empty blob yields a nil record.
func DecodeMetadata(p Path, blob []byte) (*Metadata, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var md Metadata
	if err := json.Unmarshal(blob, &md); err != nil {
		return nil, &MetadataError{Path: p, Err: err}
	}
	return &md, nil
}

// Checksum returns the content checksum recorded in metadata
func Checksum(content []byte) uint64 {
	return xxhash.Sum64(content)
}
