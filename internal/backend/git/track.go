package gitbackend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/resource"
)

// TrackResult summarizes a Track call
type TrackResult struct {
	Folders int
	Files   int
	Skipped int
}

// Track records the local copies under root as checked out from tag. Every
// node that exists both locally and at tag gets a tracking record; nodes
// missing on either side are skipped.
func (b *Backend) Track(ctx context.Context, store resource.Store, tag backend.Tag, root resource.Path) (*TrackResult, error) {
	variants, err := b.FetchRemote(ctx, tag, root, resource.DepthInfinite, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s at %s: %w", root, tag, err)
	}

	pinned := ""
	if tag.Kind != backend.TagHead && tag.Kind != backend.TagBranch {
		pinned = tag.String()
	}

	now := time.Now().UTC()
	result := &TrackResult{}
	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		info, err := store.Stat(v.Path)
		if err != nil {
			return result, err
		}
		if !info.Exists || info.Kind != v.Kind {
			result.Skipped++
			continue
		}

		md := &resource.Metadata{Branch: v.Branch, Tag: pinned, Timestamp: now}
		if v.IsFolder() {
			md.Folder = true
			result.Folders++
		} else {
			md.Revision = v.Revision
			md.Checksum = resource.Checksum(v.Content)
			result.Files++
		}
		if err := store.SetMetadata(v.Path, md); err != nil {
			return result, fmt.Errorf("failed to track %s: %w", v.Path, err)
		}
	}

	slog.Info("Tracked workspace", "root", root, "tag", tag.String(),
		"folders", result.Folders, "files", result.Files, "skipped", result.Skipped)
	return result, nil
}
