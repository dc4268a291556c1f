package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/resource"
)

//go:generate mockgen -destination=mocks/mock_persistence.go -package=mocks -source=persistence.go Persistence

// MergeFileName is the name of the file holding one merge record
const MergeFileName = "merge.json"

// MergeRecord is the persisted identity of a merge subscriber
type MergeRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Roots     []resource.Path `json:"roots"`
	Start     string          `json:"start"`
	End       string          `json:"end"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Tags parses the start and end tags of the record
func (r *MergeRecord) Tags() (backend.Tag, backend.Tag, error) {
	start, err := backend.ParseTag(r.Start)
	if err != nil {
		return backend.Tag{}, backend.Tag{}, fmt.Errorf("invalid start tag of merge '%s': %w", r.ID, err)
	}
	end, err := backend.ParseTag(r.End)
	if err != nil {
		return backend.Tag{}, backend.Tag{}, fmt.Errorf("invalid end tag of merge '%s': %w", r.ID, err)
	}
	return start, end, nil
}

// Persistence stores merge records across process restarts
type Persistence interface {
	// Save stores the record, replacing an earlier one with the same id
	Save(ctx context.Context, record *MergeRecord) error

	// Load returns the record with id, or nil if there is none
	Load(ctx context.Context, id string) (*MergeRecord, error)

	// LoadAll returns every readable record keyed by id
	LoadAll(ctx context.Context) (map[string]*MergeRecord, error)

	// Delete removes the record with id. Deleting a missing record is a no-op.
	Delete(ctx context.Context, id string) error
}

// filePersistence keeps one folder per merge on a billy filesystem
type filePersistence struct {
	fs billy.Filesystem
}

// NewFilePersistence creates a Persistence rooted at fs
func NewFilePersistence(fs billy.Filesystem) Persistence {
	return &filePersistence{fs: fs}
}

func validRecordID(id string) error {
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return fmt.Errorf("invalid merge id %q", id)
	}
	return nil
}

// Save writes the record through a temporary file and a rename
func (f *filePersistence) Save(_ context.Context, record *MergeRecord) error {
	if err := validRecordID(record.ID); err != nil {
		return err
	}
	if err := f.fs.MkdirAll(record.ID, 0750); err != nil {
		return fmt.Errorf("failed to create directory for merge '%s': %w", record.ID, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal merge '%s': %w", record.ID, err)
	}

	target := path.Join(record.ID, MergeFileName)
	tempPath := target + ".tmp"
	if err := util.WriteFile(f.fs, tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file for merge '%s': %w", record.ID, err)
	}
	if err := f.fs.Rename(tempPath, target); err != nil {
		_ = f.fs.Remove(tempPath)
		return fmt.Errorf("failed to rename file for merge '%s': %w", record.ID, err)
	}
	return nil
}

// Load reads the record with id
func (f *filePersistence) Load(_ context.Context, id string) (*MergeRecord, error) {
	if err := validRecordID(id); err != nil {
		return nil, err
	}
	data, err := util.ReadFile(f.fs, path.Join(id, MergeFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read merge '%s': %w", id, err)
	}

	var record MergeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merge '%s': %w", id, err)
	}
	return &record, nil
}

// LoadAll reads every merge folder. Unreadable records are logged and skipped.
func (f *filePersistence) LoadAll(ctx context.Context) (map[string]*MergeRecord, error) {
	result := make(map[string]*MergeRecord)

	entries, err := f.fs.ReadDir("/")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read merge directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := f.Load(ctx, entry.Name())
		if err != nil {
			slog.Warn("Skipping unreadable merge record", "merge", entry.Name(), "error", err)
			continue
		}
		if record == nil {
			continue
		}
		result[record.ID] = record
	}
	return result, nil
}

// Delete removes the folder of the merge
func (f *filePersistence) Delete(_ context.Context, id string) error {
	if err := validRecordID(id); err != nil {
		return err
	}
	if err := util.RemoveAll(f.fs, id); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete merge '%s': %w", id, err)
	}
	return nil
}
