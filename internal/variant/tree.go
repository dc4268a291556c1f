package variant

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/syncstate/internal/otel"
	"github.com/stacklok/syncstate/internal/resource"
)

const (
	// DefaultConcurrency is the number of roots fetched in parallel
	DefaultConcurrency = 4

	cleanupInterval = 10 * time.Minute
)

// Tree caches the variants of one reference tree (base or remote) and
// refreshes them from a Fetcher
type Tree interface {
	// Refresh re-fetches every root and returns exactly the paths whose
	// cached variant changed. A failing root never aborts its siblings; all
	// failures are returned together as *BackendError values.
	Refresh(ctx context.Context, roots []resource.Path, depth resource.Depth, withContent bool) ([]resource.Path, error)

	// Variant returns the cached variant of p, or nil if there is none
	Variant(p resource.Path) *Variant

	// HasVariant reports whether a variant of p is cached
	HasVariant(p resource.Path) bool

	// Members returns the cached direct members of p in lexical order
	Members(p resource.Path) []*Variant

	// Invalidate drops the cached variant of p and marks it unknown until
	// the next refresh that covers p
	Invalidate(p resource.Path)

	// Known reports whether the cache holds an answer for p: either a variant
	// or the fact that p does not exist. It is false after Invalidate.
	Known(p resource.Path) bool

	// Dispose releases the cache. Refreshing a disposed tree fails with ErrDisposed.
	Dispose()
}

// Option configures a Tree
type Option func(*cachedTree)

// WithConcurrency limits the number of roots fetched in parallel
func WithConcurrency(n int) Option {
	return func(t *cachedTree) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithTTL expires cached variants after d. Zero keeps them until the next refresh.
func WithTTL(d time.Duration) Option {
	return func(t *cachedTree) {
		if d > 0 {
			t.ttl = d
		}
	}
}

// WithTracer enables spans around refreshes
func WithTracer(tracer trace.Tracer) Option {
	return func(t *cachedTree) {
		t.tracer = tracer
	}
}

// WithName labels the tree in logs and spans
func WithName(name string) Option {
	return func(t *cachedTree) {
		t.name = name
	}
}

// cachedTree is the default Tree implementation
type cachedTree struct {
	fetcher     Fetcher
	name        string
	concurrency int
	ttl         time.Duration
	tracer      trace.Tracer

	cache    *cache.Cache
	applyMu  sync.Mutex
	disposed atomic.Bool

	invalidMu sync.RWMutex
	invalid   map[resource.Path]struct{}
}

// NewTree creates an empty tree fed by fetcher
func NewTree(fetcher Fetcher, opts ...Option) Tree {
	t := &cachedTree{
		fetcher:     fetcher,
		name:        "tree",
		concurrency: DefaultConcurrency,
		ttl:         cache.NoExpiration,
		invalid:     make(map[resource.Path]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.cache = cache.New(t.ttl, cleanupInterval)
	return t
}

// Refresh re-fetches the given roots
func (t *cachedTree) Refresh(
	ctx context.Context,
	roots []resource.Path,
	depth resource.Depth,
	withContent bool,
) ([]resource.Path, error) {
	if t.disposed.Load() {
		return nil, ErrDisposed
	}

	ctx, span := otel.StartSpan(ctx, t.tracer, "variant.Refresh",
		trace.WithAttributes(
			otel.AttrTreeRole.String(t.name),
			otel.AttrRootCount.Int(len(roots)),
			otel.AttrDepth.String(depth.String()),
			otel.AttrWithContent.Bool(withContent),
		),
	)
	defer span.End()

	var (
		mu      sync.Mutex
		changed = make(map[resource.Path]struct{})
		result  *multierror.Error
	)
	record := func(err error) {
		mu.Lock()
		result = multierror.Append(result, err)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(t.concurrency)
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			record(err)
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(&BackendError{Root: root, Err: err})
				return nil
			}
			variants, err := t.fetcher.Fetch(ctx, root, depth, withContent)
			if err != nil {
				slog.Warn("Failed to fetch variants", "tree", t.name, "root", root, "error", err)
				record(&BackendError{Root: root, Err: err})
				return nil
			}
			paths := t.apply(root, depth, variants)
			mu.Lock()
			for _, p := range paths {
				changed[p] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	// goroutines never return errors; failures are collected in result
	_ = g.Wait()

	out := make([]resource.Path, 0, len(changed))
	for p := range changed {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	err := result.ErrorOrNil()
	span.SetAttributes(otel.AttrChangedCount.Int(len(out)))
	otel.RecordError(span, err)
	slog.Debug("Variant tree refreshed", "tree", t.name, "roots", len(roots), "changed", len(out), "error", err)
	return out, err
}

// apply replaces the cached variants of one root with a fetch result and
// returns the paths that changed
func (t *cachedTree) apply(root resource.Path, depth resource.Depth, variants []Variant) []resource.Path {
	t.applyMu.Lock()
	defer t.applyMu.Unlock()

	fetched := make(map[resource.Path]Variant, len(variants))
	for _, v := range variants {
		if !resource.Within(root, v.Path, depth) {
			continue
		}
		fetched[v.Path] = v
	}

	t.invalidMu.Lock()
	for p := range t.invalid {
		if resource.Within(root, p, depth) {
			delete(t.invalid, p)
		}
	}
	t.invalidMu.Unlock()

	var changed []resource.Path
	for key := range t.cache.Items() {
		p := resource.Path(key)
		if !resource.Within(root, p, depth) {
			continue
		}
		if _, ok := fetched[p]; !ok {
			t.cache.Delete(key)
			changed = append(changed, p)
		}
	}

	for p, v := range fetched {
		old := t.Variant(p)
		stored := v
		t.cache.Set(string(p), &stored, cache.DefaultExpiration)
		if !old.Equal(&stored) {
			changed = append(changed, p)
		}
	}
	return changed
}

// Variant returns the cached variant of p
func (t *cachedTree) Variant(p resource.Path) *Variant {
	item, ok := t.cache.Get(string(p))
	if !ok {
		return nil
	}
	v, _ := item.(*Variant)
	return v
}

// HasVariant reports whether a variant of p is cached
func (t *cachedTree) HasVariant(p resource.Path) bool {
	_, ok := t.cache.Get(string(p))
	return ok
}

// Members returns the cached direct members of p
func (t *cachedTree) Members(p resource.Path) []*Variant {
	var members []*Variant
	for key, item := range t.cache.Items() {
		child := resource.Path(key)
		if child.IsRoot() || child.Parent() != p {
			continue
		}
		if v, ok := item.Object.(*Variant); ok {
			members = append(members, v)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
	return members
}

// Invalidate drops the cached variant of p
func (t *cachedTree) Invalidate(p resource.Path) {
	t.invalidMu.Lock()
	t.invalid[p] = struct{}{}
	t.invalidMu.Unlock()
	t.cache.Delete(string(p))
}

// Known reports whether p has not been invalidated since it was last fetched
func (t *cachedTree) Known(p resource.Path) bool {
	t.invalidMu.RLock()
	defer t.invalidMu.RUnlock()
	_, ok := t.invalid[p]
	return !ok
}

// Dispose flushes the cache and rejects further refreshes
func (t *cachedTree) Dispose() {
	if t.disposed.Swap(true) {
		return
	}
	t.cache.Flush()
	t.invalidMu.Lock()
	clear(t.invalid)
	t.invalidMu.Unlock()
}
