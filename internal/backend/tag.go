package backend

import (
	"fmt"
	"strings"
	"time"
)

// TagKind classifies a tag
type TagKind string

const (
	// TagHead is the head of the configured branch
	TagHead TagKind = "head"
	// TagBranch is the head of a named branch
	TagBranch TagKind = "branch"
	// TagVersion is a version (release) tag
	TagVersion TagKind = "version"
	// TagDate is the state of the configured branch at a point in time
	TagDate TagKind = "date"
	// TagCommit is a fixed commit or revision id
	TagCommit TagKind = "commit"
)

// DateLayout is the accepted format of date tags
const DateLayout = time.RFC3339

// Tag names a state of the repository that a tree can be keyed to
type Tag struct {
	Kind TagKind
	Name string
}

// Head is the tag of the configured branch head
var Head = Tag{Kind: TagHead}

// ParseTag parses the textual form of a tag. Accepted forms are "HEAD" (or
// empty), "branch:<name>", "version:<name>" or "tag:<name>",
// "date:<RFC3339>", "commit:<id>" and a bare name, which is read as a version.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "HEAD") {
		return Head, nil
	}

	prefix, name, found := strings.Cut(s, ":")
	if !found {
		return Tag{Kind: TagVersion, Name: s}, nil
	}
	if name == "" {
		return Tag{}, fmt.Errorf("tag %q has an empty name", s)
	}

	switch strings.ToLower(prefix) {
	case "branch":
		return Tag{Kind: TagBranch, Name: name}, nil
	case "version", "tag":
		return Tag{Kind: TagVersion, Name: name}, nil
	case "commit":
		return Tag{Kind: TagCommit, Name: name}, nil
	case "date":
		if _, err := time.Parse(DateLayout, name); err != nil {
			return Tag{}, fmt.Errorf("invalid date tag %q: %w", name, err)
		}
		return Tag{Kind: TagDate, Name: name}, nil
	default:
		return Tag{}, fmt.Errorf("unknown tag kind %q", prefix)
	}
}

// String returns the textual form accepted by ParseTag
func (t Tag) String() string {
	if t.Kind == TagHead || t.Kind == "" {
		return "HEAD"
	}
	return string(t.Kind) + ":" + t.Name
}

// Time returns the point in time of a date tag
func (t Tag) Time() (time.Time, error) {
	if t.Kind != TagDate {
		return time.Time{}, fmt.Errorf("tag %s is not a date tag", t)
	}
	return time.Parse(DateLayout, t.Name)
}
