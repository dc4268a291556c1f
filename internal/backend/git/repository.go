// Package gitbackend implements the backend command layer on top of go-git.
// A repository is either opened from a local working copy or cloned from a
// remote URL into in-memory storage.
package gitbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Auth holds HTTP basic credentials for remote repositories
type Auth struct {
	Username string
	Password string
}

// RepositoryConfig describes where the repository comes from. Exactly one of
// Path and URL must be set.
type RepositoryConfig struct {
	// Path is a local working copy
	Path string

	// URL is a remote repository cloned into memory
	URL string

	// Auth is used for URL clones
	Auth *Auth
}

// repository wraps an opened go-git repository and the storage that must be
// released when it is closed
type repository struct {
	repo             *git.Repository
	storerFilesystem billy.Filesystem
	objectCache      cache.Object
}

func openRepository(ctx context.Context, cfg RepositoryConfig) (*repository, error) {
	switch {
	case cfg.Path != "" && cfg.URL != "":
		return nil, errors.New("repository path and url are mutually exclusive")
	case cfg.Path != "":
		repo, err := git.PlainOpenWithOptions(cfg.Path, &git.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			return nil, fmt.Errorf("failed to open repository at %s: %w", cfg.Path, err)
		}
		slog.Debug("Opened local repository", "path", cfg.Path)
		return &repository{repo: repo}, nil
	case cfg.URL != "":
		return cloneRepository(ctx, cfg)
	default:
		return nil, errors.New("either repository path or url is required")
	}
}

func cloneRepository(ctx context.Context, cfg RepositoryConfig) (*repository, error) {
	cloneOptions := &git.CloneOptions{
		URL:        cfg.URL,
		NoCheckout: true,
	}
	if cfg.Auth != nil && cfg.Auth.Username != "" {
		cloneOptions.Auth = &githttp.BasicAuth{
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
		}
		slog.Debug("Using Git HTTP Basic authentication", "username", cfg.Auth.Username)
	}

	// tags and dates need full history, so the clone is not shallow
	storerFs := memfs.New()
	storerCache := cache.NewObjectLRUDefault()
	storer := filesystem.NewStorage(storerFs, storerCache)

	repo, err := git.CloneContext(ctx, storer, memfs.New(), cloneOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}
	slog.Info("Cloned repository into memory", "url", cfg.URL)

	return &repository{
		repo:             repo,
		storerFilesystem: storerFs,
		objectCache:      storerCache,
	}, nil
}

// close releases in-memory storage. go-git keeps decompressed objects
// reachable until the cache and storer filesystem are cleared.
func (r *repository) close() {
	if r == nil || r.repo == nil {
		return
	}
	if r.objectCache != nil {
		slog.Debug("Clearing object cache")
		r.objectCache.Clear()
	}
	if r.storerFilesystem != nil {
		slog.Debug("Clearing storer filesystem")
		_ = util.RemoveAll(r.storerFilesystem, "/")
		runtime.GC()
	}
	r.objectCache = nil
	r.storerFilesystem = nil
	r.repo = nil
}
