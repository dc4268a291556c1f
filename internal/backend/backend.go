// Package backend defines the command layer between the sync engine and a
// version-control repository: fetching the variants of a subtree at a tag and
// reading base variants back from local tracking metadata.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/variant"
)

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks -source=backend.go Backend

// ErrTagNotFound is returned when a tag cannot be resolved
var ErrTagNotFound = errors.New("tag not found")

// ConfigurationError reports that a path is not mapped to any repository
type ConfigurationError struct {
	Path resource.Path
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not under a configured repository", e.Path)
}

// Backend is a version-control repository the sync engine compares against
type Backend interface {
	// FetchRemote returns the variants of root and its members down to depth
	// as they exist at tag. A root that does not exist at tag yields an empty
	// result, not an error.
	FetchRemote(ctx context.Context, tag Tag, root resource.Path, depth resource.Depth, withContent bool) ([]variant.Variant, error)

	// Contains reports whether p is under this backend
	Contains(p resource.Path) bool
}

// CheckPath returns a *ConfigurationError if p is outside b
func CheckPath(b Backend, p resource.Path) error {
	if !b.Contains(p) {
		return &ConfigurationError{Path: p}
	}
	return nil
}

// RemoteFetcher feeds a variant tree from b at tag
func RemoteFetcher(b Backend, tag Tag) variant.Fetcher {
	return variant.FetcherFunc(func(
		ctx context.Context,
		root resource.Path,
		depth resource.Depth,
		withContent bool,
	) ([]variant.Variant, error) {
		return b.FetchRemote(ctx, tag, root, depth, withContent)
	})
}
