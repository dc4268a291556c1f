package gitbackend

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/stacklok/syncstate/internal/backend"
)

// resolve maps a tag to a commit. The returned branch name is set for head
// and branch tags only.
func (b *Backend) resolve(tag backend.Tag) (*object.Commit, string, error) {
	switch tag.Kind {
	case backend.TagHead, "":
		return b.resolveHead()
	case backend.TagBranch:
		commit, err := b.resolveBranch(tag.Name)
		return commit, tag.Name, err
	case backend.TagVersion:
		commit, err := b.resolveVersion(tag.Name)
		return commit, "", err
	case backend.TagCommit:
		commit, err := b.resolveCommit(tag.Name)
		return commit, "", err
	case backend.TagDate:
		commit, err := b.resolveDate(tag)
		return commit, "", err
	default:
		return nil, "", fmt.Errorf("unsupported tag kind %q", tag.Kind)
	}
}

func (b *Backend) resolveHead() (*object.Commit, string, error) {
	if b.branch != "" {
		commit, err := b.resolveBranch(b.branch)
		return commit, b.branch, err
	}

	ref, err := b.repo.repo.Head()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	commit, err := b.repo.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, "", fmt.Errorf("failed to get commit object: %w", err)
	}
	branch := ""
	if ref.Name().IsBranch() {
		branch = ref.Name().Short()
	}
	return commit, branch, nil
}

func (b *Backend) resolveBranch(name string) (*object.Commit, error) {
	ref, err := b.repo.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		// clones only carry remote-tracking refs for non-default branches
		ref, err = b.repo.repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, name), true)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: branch %s", backend.ErrTagNotFound, name)
	}
	commit, err := b.repo.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit for branch %s: %w", name, err)
	}
	return commit, nil
}

func (b *Backend) resolveVersion(name string) (*object.Commit, error) {
	ref, err := b.repo.repo.Tag(name)
	if err != nil {
		if errors.Is(err, git.ErrTagNotFound) {
			return nil, fmt.Errorf("%w: version %s", backend.ErrTagNotFound, name)
		}
		return nil, fmt.Errorf("failed to look up tag %s: %w", name, err)
	}

	// annotated tags point at a tag object, lightweight ones at the commit
	tagObj, err := b.repo.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		commit, err := tagObj.Commit()
		if err != nil {
			return nil, fmt.Errorf("failed to get commit for tag %s: %w", name, err)
		}
		return commit, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		commit, err := b.repo.repo.CommitObject(ref.Hash())
		if err != nil {
			return nil, fmt.Errorf("failed to get commit for tag %s: %w", name, err)
		}
		return commit, nil
	default:
		return nil, fmt.Errorf("failed to read tag %s: %w", name, err)
	}
}

func (b *Backend) resolveCommit(rev string) (*object.Commit, error) {
	hash, err := b.repo.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%w: commit %s", backend.ErrTagNotFound, rev)
	}
	commit, err := b.repo.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to checkout commit %s: %w", rev, err)
	}
	return commit, nil
}

// resolveDate returns the newest commit of the head branch made at or
// before the tag's time
func (b *Backend) resolveDate(tag backend.Tag) (*object.Commit, error) {
	until, err := tag.Time()
	if err != nil {
		return nil, err
	}
	head, _, err := b.resolveHead()
	if err != nil {
		return nil, err
	}

	iter, err := b.repo.repo.Log(&git.LogOptions{From: head.Hash, Until: &until})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	commit, err := iter.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no commit before %s", backend.ErrTagNotFound, tag.Name)
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return commit, nil
}
