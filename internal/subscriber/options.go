package subscriber

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/syncstate/internal/criteria"
	"github.com/stacklok/syncstate/internal/telemetry"
	"github.com/stacklok/syncstate/internal/variant"
)

// IgnoredIncomingPolicy decides whether an ignored resource with an incoming
// remote addition is supervised
type IgnoredIncomingPolicy int

const (
	// IgnoredIncomingSupervise reports the incoming addition so it surfaces
	// as a conflict instead of being hidden
	IgnoredIncomingSupervise IgnoredIncomingPolicy = iota
	// IgnoredIncomingHide treats every ignored resource as unsupervised
	IgnoredIncomingHide
)

// String returns the configuration name of the policy
func (p IgnoredIncomingPolicy) String() string {
	switch p {
	case IgnoredIncomingSupervise:
		return "supervise"
	case IgnoredIncomingHide:
		return "hide"
	default:
		return "unknown"
	}
}

// Option configures a Subscriber
type Option func(*options)

type options struct {
	name        string
	criteria    *criteria.Registry
	policy      IgnoredIncomingPolicy
	readOnly    bool
	metrics     *telemetry.RefreshMetrics
	tracer      trace.Tracer
	treeOpts    []variant.Option
	persistence Persistence
}

func newOptions(opts []Option) *options {
	o := &options{
		criteria: criteria.NewRegistry(
			criteria.NewRevisionNumber(),
			criteria.NewContent(),
			criteria.NewRevisionOnBranch(),
		),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithName sets the display name of the subscriber
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithCriteria replaces the comparison criteria. The default registry
// compares revision numbers.
func WithCriteria(r *criteria.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.criteria = r
		}
	}
}

// WithIgnoredIncomingPolicy sets how ignored resources with incoming
// additions are treated
func WithIgnoredIncomingPolicy(p IgnoredIncomingPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithReadOnly suppresses every write to the local store. Cleanups
// recommended by the classification are skipped.
func WithReadOnly(readOnly bool) Option {
	return func(o *options) {
		o.readOnly = readOnly
	}
}

// WithRefreshMetrics records refresh metrics
func WithRefreshMetrics(m *telemetry.RefreshMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer enables spans around refreshes
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithTreeOptions passes options to both variant trees
func WithTreeOptions(opts ...variant.Option) Option {
	return func(o *options) {
		o.treeOpts = append(o.treeOpts, opts...)
	}
}

// WithPersistence stores merge subscribers so they can be restored
func WithPersistence(p Persistence) Option {
	return func(o *options) {
		o.persistence = p
	}
}
