package gitbackend

import (
	"bytes"
	"log/slog"
	"unicode/utf8"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/variant"
)

// mergeHint judges whether the remote blob can be merged into the local copy
// of p. Only locally modified files whose base differs from the remote get a
// hint; everything else is MergeHintNone.
func (b *Backend) mergeHint(p resource.Path, remote plumbing.Hash) variant.MergeHint {
	if b.store == nil {
		return variant.MergeHintNone
	}
	md, err := b.store.Metadata(p)
	if err != nil || md == nil || md.Folder || md.Revision == "" || md.Revision == remote.String() {
		return variant.MergeHintNone
	}
	if !md.Modified && !md.Merged {
		return variant.MergeHintNone
	}
	if !plumbing.IsHash(md.Revision) {
		return variant.MergeHintNone
	}

	local, err := b.store.Content(p)
	if err != nil {
		return variant.MergeHintNone
	}
	base, err := b.blob(plumbing.NewHash(md.Revision))
	if err != nil {
		slog.Debug("Base revision unavailable for merge hint", "path", p, "revision", md.Revision, "error", err)
		return variant.MergeHintConflict
	}
	theirs, err := b.blob(remote)
	if err != nil {
		slog.Debug("Remote revision unavailable for merge hint", "path", p, "error", err)
		return variant.MergeHintConflict
	}
	return threeWayHint(base, local, theirs)
}

// threeWayHint diffs base against both sides line by line. The merge is
// automatic when no local hunk touches or overlaps a remote hunk.
func threeWayHint(base, local, remote []byte) variant.MergeHint {
	if bytes.Equal(local, remote) {
		return variant.MergeHintMergeable
	}
	ours := changedRanges(string(base), string(local))
	theirs := changedRanges(string(base), string(remote))
	for _, a := range ours {
		for _, b := range theirs {
			if a.start <= b.end && b.start <= a.end {
				return variant.MergeHintConflict
			}
		}
	}
	return variant.MergeHintMergeable
}

// lineRange is a half-open range of base lines replaced by a hunk. Pure
// insertions have start == end.
type lineRange struct {
	start, end int
}

func changedRanges(base, other string) []lineRange {
	dmp := diffmatchpatch.New()
	runes1, runes2, _ := dmp.DiffLinesToRunes(base, other)
	diffs := dmp.DiffMainRunes(runes1, runes2, false)

	var (
		ranges []lineRange
		line   int
		open   *lineRange
	)
	flush := func() {
		if open != nil {
			ranges = append(ranges, *open)
			open = nil
		}
	}
	for _, d := range diffs {
		// every rune stands for one line
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			line += n
		case diffmatchpatch.DiffDelete:
			if open == nil {
				open = &lineRange{start: line, end: line}
			}
			line += n
			open.end = line
		case diffmatchpatch.DiffInsert:
			if open == nil {
				open = &lineRange{start: line, end: line}
			}
		}
	}
	flush()
	return ranges
}
