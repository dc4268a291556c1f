package criteria

import (
	"fmt"
	"log/slog"
	"sort"
)

// Registry holds the criteria a subscriber can compare with, keyed by id,
// with one default
type Registry struct {
	criteria  map[string]Criterion
	defaultID string
}

// NewRegistry creates a registry. The first criterion is the default.
func NewRegistry(def Criterion, others ...Criterion) *Registry {
	r := &Registry{
		criteria:  make(map[string]Criterion, len(others)+1),
		defaultID: def.ID(),
	}
	r.criteria[def.ID()] = def
	for _, c := range others {
		r.criteria[c.ID()] = c
	}
	return r
}

// DefaultRegistry contains all built-in criteria with defaultID as default
func DefaultRegistry(defaultID string, contentOpts ...ContentOption) (*Registry, error) {
	all := map[string]Criterion{
		IDRevision:         NewRevisionNumber(),
		IDContent:          NewContent(contentOpts...),
		IDRevisionOnBranch: NewRevisionOnBranch(),
	}
	if defaultID == "" {
		defaultID = IDRevision
	}
	def, ok := all[defaultID]
	if !ok {
		return nil, fmt.Errorf("unknown comparison criterion %q", defaultID)
	}
	delete(all, defaultID)
	others := make([]Criterion, 0, len(all))
	for _, c := range all {
		others = append(others, c)
	}
	return NewRegistry(def, others...), nil
}

// Default returns the default criterion
func (r *Registry) Default() Criterion {
	return r.criteria[r.defaultID]
}

// Get returns the criterion with id. Empty or unknown ids yield the default.
func (r *Registry) Get(id string) Criterion {
	if id == "" {
		return r.Default()
	}
	c, ok := r.criteria[id]
	if !ok {
		slog.Debug("Unknown comparison criterion, using default", "criterion", id, "default", r.defaultID)
		return r.Default()
	}
	return c
}

// IDs returns the registered ids in lexical order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.criteria))
	for id := range r.criteria {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
