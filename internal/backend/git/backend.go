package gitbackend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/variant"
)

// Backend serves variants from a git repository. Revision ids are blob
// hashes, so two variants are equal exactly when their content is.
type Backend struct {
	repo   *repository
	branch string
	prefix resource.Path
	store  resource.Store
}

var _ backend.Backend = (*Backend)(nil)

// Option configures a Backend
type Option func(*Backend)

// WithBranch sets the branch that HEAD and date tags refer to. Without it the
// repository's own HEAD is used.
func WithBranch(branch string) Option {
	return func(b *Backend) {
		b.branch = branch
	}
}

// WithPrefix maps the repository root to a workspace folder
func WithPrefix(prefix resource.Path) Option {
	return func(b *Backend) {
		b.prefix = prefix
	}
}

// WithStore enables merge hints computed against the local copies in store
func WithStore(store resource.Store) Option {
	return func(b *Backend) {
		b.store = store
	}
}

// Open opens or clones the configured repository
func Open(ctx context.Context, cfg RepositoryConfig, opts ...Option) (*Backend, error) {
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newBackend(repo, opts...), nil
}

// New wraps an already opened repository
func New(repo *git.Repository, opts ...Option) *Backend {
	return newBackend(&repository{repo: repo}, opts...)
}

func newBackend(repo *repository, opts ...Option) *Backend {
	b := &Backend{
		repo:   repo,
		prefix: resource.Root,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Close releases the repository storage
func (b *Backend) Close() {
	b.repo.close()
}

// Contains reports whether p is below the repository prefix
func (b *Backend) Contains(p resource.Path) bool {
	return p.HasPrefix(b.prefix)
}

// repoPath maps a workspace path to a slash-separated repository path. The
// repository root maps to "".
func (b *Backend) repoPath(p resource.Path) string {
	if p == b.prefix {
		return ""
	}
	if b.prefix.IsRoot() {
		return p.Rel()
	}
	return p.Rel()[len(b.prefix.Rel())+1:]
}

// workspacePath is the inverse of repoPath
func (b *Backend) workspacePath(rel string) resource.Path {
	if rel == "" {
		return b.prefix
	}
	return b.prefix.Join(rel)
}

// FetchRemote returns the variants of root at tag
func (b *Backend) FetchRemote(
	ctx context.Context,
	tag backend.Tag,
	root resource.Path,
	depth resource.Depth,
	withContent bool,
) ([]variant.Variant, error) {
	if err := backend.CheckPath(b, root); err != nil {
		return nil, err
	}

	commit, branch, err := b.resolve(tag)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree of commit %s: %w", commit.Hash, err)
	}

	f := &fetch{
		ctx:         ctx,
		backend:     b,
		branch:      branch,
		withContent: withContent,
	}

	rel := b.repoPath(root)
	if rel == "" {
		f.add(variant.Variant{Path: root, Kind: resource.KindFolder, Branch: branch})
		if depth != resource.DepthZero {
			if err := f.walk(tree, "", depth == resource.DepthInfinite); err != nil {
				return nil, err
			}
		}
		return f.result(), nil
	}

	entry, err := tree.FindEntry(rel)
	if err != nil {
		if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up %s: %w", rel, err)
	}

	if entry.Mode != filemode.Dir {
		if err := f.file(rel, entry); err != nil {
			return nil, err
		}
		return f.result(), nil
	}

	f.add(variant.Variant{Path: root, Kind: resource.KindFolder, Branch: branch})
	if depth != resource.DepthZero {
		subtree, err := b.repo.repo.TreeObject(entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to read tree %s: %w", rel, err)
		}
		if err := f.walk(subtree, rel, depth == resource.DepthInfinite); err != nil {
			return nil, err
		}
	}
	return f.result(), nil
}

// fetch accumulates the variants of one FetchRemote call
type fetch struct {
	ctx         context.Context
	backend     *Backend
	branch      string
	withContent bool
	out         []variant.Variant
}

func (f *fetch) add(v variant.Variant) {
	f.out = append(f.out, v)
}

func (f *fetch) result() []variant.Variant {
	sort.Slice(f.out, func(i, j int) bool { return f.out[i].Path < f.out[j].Path })
	return f.out
}

func (f *fetch) walk(tree *object.Tree, base string, recursive bool) error {
	for i := range tree.Entries {
		if err := f.ctx.Err(); err != nil {
			return err
		}
		entry := &tree.Entries[i]
		rel := entry.Name
		if base != "" {
			rel = base + "/" + entry.Name
		}

		switch entry.Mode {
		case filemode.Submodule:
			continue
		case filemode.Dir:
			f.add(variant.Variant{Path: f.backend.workspacePath(rel), Kind: resource.KindFolder, Branch: f.branch})
			if !recursive {
				continue
			}
			subtree, err := f.backend.repo.repo.TreeObject(entry.Hash)
			if err != nil {
				return fmt.Errorf("failed to read tree %s: %w", rel, err)
			}
			if err := f.walk(subtree, rel, true); err != nil {
				return err
			}
		default:
			if err := f.file(rel, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fetch) file(rel string, entry *object.TreeEntry) error {
	p := f.backend.workspacePath(rel)
	v := variant.Variant{
		Path:     p,
		Kind:     resource.KindFile,
		Revision: entry.Hash.String(),
		Branch:   f.branch,
	}
	if f.withContent {
		content, err := f.backend.blob(entry.Hash)
		if err != nil {
			return err
		}
		v.Content = content
		v.HasContent = true
	}
	v.MergeHint = f.backend.mergeHint(p, entry.Hash)
	f.add(v)
	return nil
}

func (b *Backend) blob(hash plumbing.Hash) ([]byte, error) {
	blob, err := b.repo.repo.BlobObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", hash, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", hash, err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			slog.Debug("Failed to close blob reader", "hash", hash, "error", cerr)
		}
	}()
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", hash, err)
	}
	return content, nil
}
