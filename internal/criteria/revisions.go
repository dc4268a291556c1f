package criteria

import (
	"strconv"
	"strings"
)

// Revision is a dotted revision number such as 1.3 or 1.3.2.1. The last
// component counts revisions; everything before it names the branch.
type Revision []int

// ParseRevision parses a dotted revision number. Ids that are not dotted
// numbers, such as git object ids, report false.
func ParseRevision(s string) (Revision, bool) {
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return nil, false
	}
	rev := make(Revision, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, false
		}
		rev[i] = n
	}
	return rev, true
}

// String returns the dotted form
func (r Revision) String() string {
	parts := make([]string, len(r))
	for i, n := range r {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Branch returns the branch prefix: all components but the last
func (r Revision) Branch() Revision {
	if len(r) == 0 {
		return nil
	}
	return r[:len(r)-1]
}

// Last returns the revision counter on its branch
func (r Revision) Last() int {
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1]
}

// SameBranch reports whether both revisions lie on the same branch
func (r Revision) SameBranch(o Revision) bool {
	rb, ob := r.Branch(), o.Branch()
	if len(rb) != len(ob) {
		return false
	}
	for i := range rb {
		if rb[i] != ob[i] {
			return false
		}
	}
	return true
}
