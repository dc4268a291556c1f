package backend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/variant"
)

// LocalFetcher feeds a base tree from the tracking metadata in store. It
// performs no network I/O. A node whose metadata cannot be decoded has no
// base; the failure is logged and the walk continues.
func LocalFetcher(store resource.Store) variant.Fetcher {
	return variant.FetcherFunc(func(
		ctx context.Context,
		root resource.Path,
		depth resource.Depth,
		withContent bool,
	) ([]variant.Variant, error) {
		return fetchLocalMetadata(ctx, store, root, depth, withContent)
	})
}

func fetchLocalMetadata(
	ctx context.Context,
	store resource.Store,
	root resource.Path,
	depth resource.Depth,
	withContent bool,
) ([]variant.Variant, error) {
	var out []variant.Variant
	err := resource.Walk(store, root, depth, func(info resource.Info) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok := baseVariant(store, info, withContent)
		if ok {
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func baseVariant(store resource.Store, info resource.Info, withContent bool) (variant.Variant, bool) {
	md, err := store.Metadata(info.Path)
	if err != nil {
		var mdErr *resource.MetadataError
		if errors.As(err, &mdErr) {
			slog.Warn("Ignoring unreadable sync metadata", "path", info.Path, "error", mdErr.Err)
		} else {
			slog.Warn("Failed to read sync metadata", "path", info.Path, "error", err)
		}
		return variant.Variant{}, false
	}
	if md == nil {
		return variant.Variant{}, false
	}

	if md.Folder {
		return variant.Variant{Path: info.Path, Kind: resource.KindFolder, Branch: md.Branch}, true
	}
	// a file scheduled for addition has no base revision yet
	if md.Added || md.Revision == "" {
		return variant.Variant{}, false
	}

	v := variant.Variant{
		Path:     info.Path,
		Kind:     resource.KindFile,
		Revision: md.Revision,
		Branch:   md.Branch,
	}
	// local content only stands in for the base when it is unmodified
	if withContent && info.Exists && md.IsClean() {
		if content, err := store.Content(info.Path); err == nil {
			v.Content = content
			v.HasContent = true
		}
	}
	return v, true
}
