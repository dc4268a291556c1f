package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/criteria"
	"github.com/stacklok/syncstate/internal/otel"
	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/syncinfo"
	"github.com/stacklok/syncstate/internal/variant"
	"github.com/stacklok/syncstate/internal/versions"
)

// WorkspaceID is the id of the workspace subscriber
const WorkspaceID = "workspace"

var (
	// ErrNotCancellable is returned when cancelling a subscriber that is not a merge
	ErrNotCancellable = errors.New("only merge subscribers can be cancelled")

	// ErrNoPersistence is returned when restoring merges without a Persistence
	ErrNoPersistence = errors.New("no merge persistence configured")
)

// Info is the synchronization state of one resource
type Info struct {
	Path      resource.Path
	Kind      resource.Kind
	State     syncinfo.State
	Criterion string

	// Local is the tracking record of the local copy, nil if unmanaged
	Local  *resource.Metadata
	Base   *variant.Variant
	Remote *variant.Variant
}

// RefreshStatus summarizes one Refresh call. Roots that were fetched are
// applied even when others failed.
type RefreshStatus struct {
	Changed []resource.Path
	Err     error
}

// OK reports whether every root was refreshed
func (s *RefreshStatus) OK() bool {
	return s.Err == nil
}

// FailedRoots returns the roots whose backend request failed
func (s *RefreshStatus) FailedRoots() []resource.Path {
	return union(variant.FailedRoots(s.Err))
}

// Subscriber reports the synchronization state of the resources under its
// roots
type Subscriber interface {
	ID() string
	Name() string
	Kind() Kind

	// Roots returns the folders and files the subscriber covers
	Roots() []resource.Path

	// IsSupervised reports whether the subscriber computes a state for p
	IsSupervised(p resource.Path) bool

	// SyncInfo classifies p with the criterion criterionID, or with the
	// default criterion when the id is empty or unknown. It returns nil for
	// unsupervised resources and performs no network I/O.
	SyncInfo(p resource.Path, criterionID string) (*Info, error)

	// Members returns the supervised direct members of p, locally present,
	// phantom or remote only
	Members(p resource.Path) ([]resource.Path, error)

	// Refresh re-fetches the base and remote trees for paths, or for all
	// roots when paths is empty, and emits one Delta
	Refresh(ctx context.Context, paths []resource.Path, depth resource.Depth) *RefreshStatus

	// AddListener registers l and returns a function removing it
	AddListener(l Listener) func()

	// Cancel abandons a merge: it disposes the subscriber and deletes its
	// persisted record
	Cancel(ctx context.Context) error

	// Dispose releases both trees and all listeners
	Dispose()
}

type subscriber struct {
	id      string
	kind    Kind
	roots   []resource.Path
	store   resource.Store
	backend backend.Backend
	opts    *options

	// base is nil for two-way subscribers
	base   variant.Tree
	remote variant.Tree

	notifier *notifier

	events      chan resource.Event
	wg          sync.WaitGroup
	disposeOnce sync.Once
}

var _ Subscriber = (*subscriber)(nil)

func newSubscriber(
	id string,
	kind Kind,
	store resource.Store,
	b backend.Backend,
	roots []resource.Path,
	baseFetcher variant.Fetcher,
	o *options,
) *subscriber {
	treeOpts := func(role string) []variant.Option {
		opts := append([]variant.Option{}, o.treeOpts...)
		opts = append(opts, variant.WithName(id+"/"+role))
		if o.tracer != nil {
			opts = append(opts, variant.WithTracer(o.tracer))
		}
		return opts
	}

	s := &subscriber{
		id:       id,
		kind:     kind,
		roots:    roots,
		store:    store,
		backend:  b,
		opts:     o,
		remote:   variant.NewTree(backend.RemoteFetcher(b, remoteTag(kind)), treeOpts("remote")...),
		notifier: newNotifier(),
	}
	if baseFetcher != nil {
		s.base = variant.NewTree(baseFetcher, treeOpts("base")...)
	}
	return s
}

// NewWorkspace creates the subscriber comparing the working copy with the
// head of the configured branch. Its roots are the projects of store.
func NewWorkspace(store resource.Store, b backend.Backend, opts ...Option) Subscriber {
	o := newOptions(opts)
	if o.name == "" {
		o.name = "Workspace"
	}
	s := newSubscriber(WorkspaceID, Workspace{}, store, b, nil, backend.LocalFetcher(store), o)

	s.events = store.Events().Subscribe()
	s.wg.Add(1)
	go s.watch(s.events)
	return s
}

// NewCompare creates a two-way subscriber comparing roots with tag
func NewCompare(
	store resource.Store,
	b backend.Backend,
	tag backend.Tag,
	roots []resource.Path,
	opts ...Option,
) Subscriber {
	o := newOptions(opts)
	kind := Compare{Tag: tag, GenID: uuid.NewString()}
	id := fmt.Sprintf("compare-%s-%s", tag, kind.GenID)
	if o.name == "" {
		o.name = "Compare with " + tag.String()
	}
	return newSubscriber(id, kind, store, b, union(roots), nil, o)
}

// NewMerge creates a three-way subscriber showing the changes between start
// and end against the working copy. With WithPersistence the merge is saved
// and can be restored with RestoreMerges.
func NewMerge(
	ctx context.Context,
	store resource.Store,
	b backend.Backend,
	start, end backend.Tag,
	roots []resource.Path,
	opts ...Option,
) (Subscriber, error) {
	o := newOptions(opts)
	record := &MergeRecord{
		ID:        "merge-" + uuid.NewString(),
		Name:      o.name,
		Roots:     union(roots),
		Start:     start.String(),
		End:       end.String(),
		CreatedAt: time.Now().UTC(),
	}

	if start.Kind == backend.TagVersion && end.Kind == backend.TagVersion {
		if cmp, ok := versions.CompareSemver(end.Name, start.Name); ok && cmp <= 0 {
			slog.Warn("Merge end version is not newer than its start",
				"start", start.Name,
				"end", end.Name,
			)
		}
	}

	if o.persistence != nil {
		if err := o.persistence.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to persist merge: %w", err)
		}
	}
	return newMerge(record, start, end, store, b, o), nil
}

// RestoreMerges recreates the merges saved in the configured Persistence.
// Records with unparseable tags are logged and skipped.
func RestoreMerges(
	ctx context.Context,
	store resource.Store,
	b backend.Backend,
	opts ...Option,
) ([]Subscriber, error) {
	o := newOptions(opts)
	if o.persistence == nil {
		return nil, ErrNoPersistence
	}

	records, err := o.persistence.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load merges: %w", err)
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		record := records[id]
		start, end, err := record.Tags()
		if err != nil {
			slog.Warn("Skipping merge with invalid tags", "merge", id, "error", err)
			continue
		}
		// every restored subscriber gets its own copy of the options
		ro := *o
		if record.Name != "" {
			ro.name = record.Name
		}
		out = append(out, newMerge(record, start, end, store, b, &ro))
		slog.Debug("Restored merge", "merge", id, "start", record.Start, "end", record.End)
	}
	return out, nil
}

func newMerge(
	record *MergeRecord,
	start, end backend.Tag,
	store resource.Store,
	b backend.Backend,
	o *options,
) *subscriber {
	if o.name == "" {
		o.name = fmt.Sprintf("Merge %s..%s", start, end)
	}
	kind := Merge{Start: start, End: end}
	return newSubscriber(record.ID, kind, store, b, record.Roots, backend.RemoteFetcher(b, start), o)
}

func (s *subscriber) ID() string   { return s.id }
func (s *subscriber) Name() string { return s.opts.name }
func (s *subscriber) Kind() Kind   { return s.kind }

func (s *subscriber) Roots() []resource.Path {
	if _, ok := s.kind.(Workspace); !ok {
		return append([]resource.Path(nil), s.roots...)
	}

	projects, err := s.store.Projects()
	if err != nil {
		slog.Warn("Failed to list projects", "subscriber", s.id, "error", err)
		return nil
	}
	roots := projects[:0]
	for _, p := range projects {
		if s.backend.Contains(p) {
			roots = append(roots, p)
		}
	}
	return roots
}

func (s *subscriber) inRoots(p resource.Path) bool {
	for _, root := range s.Roots() {
		if p.HasPrefix(root) {
			return true
		}
	}
	return false
}

func (s *subscriber) IsSupervised(p resource.Path) bool {
	if err := backend.CheckPath(s.backend, p); err != nil {
		slog.Debug("Resource is not supervised", "subscriber", s.id, "error", err)
		return false
	}
	if !s.inRoots(p) {
		return false
	}

	info, err := s.store.Stat(p)
	if err != nil {
		slog.Warn("Failed to stat resource", "subscriber", s.id, "path", p, "error", err)
		return false
	}
	if info.Ignored {
		remote, _ := s.remoteVariant(p)
		return s.opts.policy == IgnoredIncomingSupervise && remote != nil
	}
	return true
}

func (s *subscriber) SyncInfo(p resource.Path, criterionID string) (*Info, error) {
	if !s.IsSupervised(p) {
		return nil, nil
	}

	info, err := s.store.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	md, err := s.store.Metadata(p)
	if err != nil {
		var mdErr *resource.MetadataError
		if !errors.As(err, &mdErr) {
			return nil, fmt.Errorf("failed to read metadata of %s: %w", p, err)
		}
		slog.Warn("Ignoring unreadable sync metadata", "path", p, "error", err)
		md = nil
	}

	c := s.opts.criteria.Get(criterionID)
	local := &criteria.Local{
		Path:     p,
		Kind:     info.Kind,
		Exists:   info.Exists,
		Metadata: md,
		Content:  func() ([]byte, error) { return s.store.Content(p) },
	}
	remote, known := s.remoteVariant(p)

	var base *variant.Variant
	three := threeWay(s.kind)
	if three {
		switch {
		case local.IsFolder() || remote.IsFolder():
			// folders have no base of their own
			base = remote
		case s.base != nil:
			base = s.base.Variant(p)
		}
	}

	result := syncinfo.Classify(syncinfo.Input{
		Local:                 local,
		Tracked:               s.store.Tracked(p),
		OnlyOutgoingDeletions: func() bool { return s.onlyOutgoingDeletions(p) },
		Base:                  base,
		Remote:                remote,
		Criterion:             c,
		ThreeWay:              three,
	})
	if result.Cleanup != nil && known {
		s.applyCleanup(result.Cleanup)
	}

	kind := info.Kind
	if !info.Exists && remote != nil {
		kind = remote.Kind
	}
	return &Info{
		Path:      p,
		Kind:      kind,
		State:     result.State,
		Criterion: c.ID(),
		Local:     md,
		Base:      base,
		Remote:    remote,
	}, nil
}

// remoteVariant returns the cached remote variant of p and whether the remote
// entry is known. After a local metadata change the entry stays unknown until
// the next refresh, and the base variant stands in for it.
func (s *subscriber) remoteVariant(p resource.Path) (*variant.Variant, bool) {
	if s.remote.Known(p) {
		return s.remote.Variant(p), true
	}
	if s.base != nil {
		return s.base.Variant(p), false
	}
	return nil, false
}

func (s *subscriber) applyCleanup(c *syncinfo.Cleanup) {
	if s.opts.readOnly {
		slog.Debug("Skipping cleanup in read-only mode", "action", c.Action, "path", c.Path)
		return
	}
	switch c.Action {
	case syncinfo.CleanupUnmanage:
		if err := s.store.Unmanage(c.Path); err != nil {
			slog.Warn("Failed to unmanage resource", "path", c.Path, "error", err)
		}
	}
}

// errStopWalk ends a walk early
var errStopWalk = errors.New("stop walk")

// onlyOutgoingDeletions reports whether the phantom folder contains at least
// one outgoing file deletion and nothing else: no local resource, no local
// addition and no remote file that differs from its tracking record.
func (s *subscriber) onlyOutgoingDeletions(folder resource.Path) bool {
	deletion := false
	other := false
	err := resource.Walk(s.store, folder, resource.DepthInfinite, func(info resource.Info) error {
		if info.Path == folder {
			return nil
		}
		if info.Exists {
			other = true
			return errStopWalk
		}
		md, err := s.store.Metadata(info.Path)
		if err != nil || md == nil || md.Added {
			other = true
			return errStopWalk
		}
		// a file gone on both sides is not an outgoing deletion
		if info.Kind == resource.KindFile {
			if remote, _ := s.remoteVariant(info.Path); remote != nil {
				deletion = true
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		slog.Warn("Failed to walk phantom folder", "path", folder, "error", err)
		return false
	}
	if other || !deletion {
		return false
	}
	return s.remoteMatchesRecords(folder)
}

// remoteMatchesRecords reports whether every remote file below folder is
// tracked at the remote revision
func (s *subscriber) remoteMatchesRecords(folder resource.Path) bool {
	for _, v := range s.remote.Members(folder) {
		if v.IsFolder() {
			if !s.remoteMatchesRecords(v.Path) {
				return false
			}
			continue
		}
		md, err := s.store.Metadata(v.Path)
		if err != nil || md == nil || md.Revision != v.Revision {
			return false
		}
	}
	return true
}

func (s *subscriber) Members(p resource.Path) ([]resource.Path, error) {
	children, err := s.store.Children(p)
	if err != nil && !errors.Is(err, resource.ErrPathNotFound) {
		return nil, fmt.Errorf("failed to list members of %s: %w", p, err)
	}

	candidates := make([]resource.Path, 0, len(children))
	for _, c := range children {
		candidates = append(candidates, c.Path)
	}
	for _, v := range s.remote.Members(p) {
		candidates = append(candidates, v.Path)
	}
	if s.base != nil {
		for _, v := range s.base.Members(p) {
			candidates = append(candidates, v.Path)
		}
	}

	var out []resource.Path
	for _, c := range union(candidates) {
		if s.IsSupervised(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// refreshTargets drops the paths no backend serves
func (s *subscriber) refreshTargets(paths []resource.Path) []resource.Path {
	out := make([]resource.Path, 0, len(paths))
	for _, p := range union(paths) {
		if err := backend.CheckPath(s.backend, p); err != nil {
			slog.Warn("Skipping refresh of unsupported resource", "subscriber", s.id, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *subscriber) withContent() bool {
	return s.opts.criteria.Default().UsesContent()
}

func (s *subscriber) Refresh(ctx context.Context, paths []resource.Path, depth resource.Depth) *RefreshStatus {
	start := time.Now()
	if len(paths) == 0 {
		paths = s.Roots()
	}
	targets := s.refreshTargets(paths)
	withContent := s.withContent()

	ctx, span := otel.StartSpan(ctx, s.opts.tracer, "subscriber.Refresh",
		trace.WithAttributes(
			otel.AttrSubscriberID.String(s.id),
			otel.AttrSubscriberKind.String(s.kind.Name()),
			otel.AttrRootCount.Int(len(targets)),
			otel.AttrDepth.String(depth.String()),
			otel.AttrWithContent.Bool(withContent),
		),
	)
	defer span.End()

	var result *multierror.Error
	var baseChanged []resource.Path
	if s.base != nil {
		changed, err := s.base.Refresh(ctx, targets, depth, withContent)
		if err != nil {
			result = multierror.Append(result, err)
		}
		baseChanged = changed
	}
	remoteChanged, err := s.remote.Refresh(ctx, targets, depth, withContent)
	if err != nil {
		result = multierror.Append(result, err)
	}

	status := &RefreshStatus{
		Changed: union(baseChanged, remoteChanged),
		Err:     result.ErrorOrNil(),
	}
	failed := status.FailedRoots()

	span.SetAttributes(
		otel.AttrChangedCount.Int(len(status.Changed)),
		otel.AttrFailedRoots.Int(len(failed)),
	)
	otel.RecordError(span, status.Err)
	s.opts.metrics.RecordRefresh(ctx, s.id, time.Since(start), len(status.Changed), len(failed))

	if status.Err != nil {
		slog.Warn("Refresh completed with errors",
			"subscriber", s.id,
			"changed", len(status.Changed),
			"failed_roots", failed,
			"error", status.Err,
		)
	} else {
		slog.Debug("Refresh completed",
			"subscriber", s.id,
			"changed", len(status.Changed),
			"duration", time.Since(start),
		)
	}

	s.notifier.emit(Delta{SubscriberID: s.id, Changed: status.Changed})
	return status
}

// watch handles local metadata events until the channel is closed
func (s *subscriber) watch(events <-chan resource.Event) {
	defer s.wg.Done()
	for ev := range events {
		s.metadataChanged(ev.Path)
	}
}

// metadataChanged drops the cached remote variant of p without diffing and
// re-reads its base from the new metadata
func (s *subscriber) metadataChanged(p resource.Path) {
	if !s.backend.Contains(p) {
		return
	}
	s.remote.Invalidate(p)

	_, err := s.base.Refresh(context.Background(), []resource.Path{p}, resource.DepthZero, s.withContent())
	switch {
	case errors.Is(err, variant.ErrDisposed):
		return
	case err != nil:
		slog.Warn("Failed to reload base from metadata", "path", p, "error", err)
	}
	s.notifier.emit(Delta{SubscriberID: s.id, Changed: []resource.Path{p}})
}

func (s *subscriber) AddListener(l Listener) func() {
	return s.notifier.add(l)
}

func (s *subscriber) Cancel(ctx context.Context) error {
	if _, ok := s.kind.(Merge); !ok {
		return ErrNotCancellable
	}
	s.Dispose()
	if s.opts.persistence == nil {
		return nil
	}
	if err := s.opts.persistence.Delete(ctx, s.id); err != nil {
		return fmt.Errorf("failed to delete persisted merge: %w", err)
	}
	slog.Info("Merge cancelled", "merge", s.id)
	return nil
}

func (s *subscriber) Dispose() {
	s.disposeOnce.Do(func() {
		if s.events != nil {
			s.store.Events().Unsubscribe(s.events)
			s.wg.Wait()
		}
		if s.base != nil {
			s.base.Dispose()
		}
		s.remote.Dispose()
		s.notifier.clear()
		slog.Debug("Subscriber disposed", "subscriber", s.id)
	})
}
