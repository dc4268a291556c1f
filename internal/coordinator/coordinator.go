package coordinator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/subscriber"
)

//go:generate mockgen -destination=mocks/mock_refresher.go -package=mocks -source=coordinator.go Refresher

const (
	// DefaultInterval is the base interval between background refreshes
	DefaultInterval = 5 * time.Minute
	// DefaultJitter is the maximum random offset applied to the interval
	DefaultJitter = 30 * time.Second
)

// Refresher is the part of a subscriber the coordinator drives
type Refresher interface {
	ID() string
	Refresh(ctx context.Context, paths []resource.Path, depth resource.Depth) *subscriber.RefreshStatus
}

// LastRefresh is the outcome of the latest background refresh of one Refresher
type LastRefresh struct {
	Time     time.Time
	Duration time.Duration
	Changed  int
	Err      error
}

// Coordinator refreshes registered subscribers periodically
type Coordinator interface {
	// Add registers r. Registering an id twice replaces the earlier Refresher.
	Add(r Refresher)

	// Remove unregisters the Refresher with id
	Remove(id string)

	// Start refreshes everything once and then on every tick. It blocks
	// until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends Start and waits for it to return
	Stop() error

	// Status returns the latest outcome for id
	Status(id string) (LastRefresh, bool)
}

type defaultCoordinator struct {
	interval time.Duration
	jitter   time.Duration
	depth    resource.Depth

	mu         sync.Mutex
	refreshers map[string]Refresher
	last       map[string]LastRefresh
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option configures the coordinator
type Option func(*defaultCoordinator)

// WithInterval sets the base interval between refreshes
func WithInterval(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithJitter sets the maximum random offset of the interval. Zero disables jitter.
func WithJitter(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		if d >= 0 {
			c.jitter = d
		}
	}
}

// WithDepth sets the depth of background refreshes, infinite by default
func WithDepth(depth resource.Depth) Option {
	return func(c *defaultCoordinator) {
		c.depth = depth
	}
}

// New creates a coordinator without refreshers
func New(opts ...Option) Coordinator {
	c := &defaultCoordinator{
		interval:   DefaultInterval,
		jitter:     DefaultJitter,
		depth:      resource.DepthInfinite,
		refreshers: make(map[string]Refresher),
		last:       make(map[string]LastRefresh),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nextInterval returns the base interval with a random jitter applied. The
// result is never below half the base interval.
func nextInterval(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: non-cryptographic randomness is sufficient for jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	if d := base + offset; d >= base/2 {
		return d
	}
	return base / 2
}

func (c *defaultCoordinator) Add(r Refresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshers[r.ID()] = r
}

func (c *defaultCoordinator) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.refreshers, id)
	delete(c.last, id)
}

func (c *defaultCoordinator) Status(id string) (LastRefresh, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.last[id]
	return last, ok
}

func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.cancelFunc = cancel
	c.done = done
	count := len(c.refreshers)
	c.mu.Unlock()

	defer func() {
		cancel()
		close(done)
		slog.Info("Refresh coordinator stopped")
	}()

	interval := nextInterval(c.interval, c.jitter)
	slog.Info("Starting refresh coordinator",
		"subscribers", count,
		"base_interval", c.interval,
		"actual_interval", interval,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.refreshAll(coordCtx)
	for {
		select {
		case <-ticker.C:
			c.refreshAll(coordCtx)
			ticker.Reset(nextInterval(c.interval, c.jitter))
		case <-coordCtx.Done():
			return nil
		}
	}
}

func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancelFunc, c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	slog.Info("Stopping refresh coordinator")
	cancel()
	<-done
	return nil
}

// snapshot returns the registered refreshers ordered by id
func (c *defaultCoordinator) snapshot() []Refresher {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Refresher, 0, len(c.refreshers))
	for _, r := range c.refreshers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (c *defaultCoordinator) refreshAll(ctx context.Context) {
	for _, r := range c.snapshot() {
		if ctx.Err() != nil {
			return
		}
		c.refresh(ctx, r)
	}
}

func (c *defaultCoordinator) refresh(ctx context.Context, r Refresher) {
	start := time.Now()
	status := r.Refresh(ctx, nil, c.depth)
	last := LastRefresh{
		Time:     start,
		Duration: time.Since(start),
		Changed:  len(status.Changed),
		Err:      status.Err,
	}

	c.mu.Lock()
	if _, ok := c.refreshers[r.ID()]; ok {
		c.last[r.ID()] = last
	}
	c.mu.Unlock()

	if status.Err != nil {
		slog.Error("Background refresh failed",
			"subscriber", r.ID(),
			"failed_roots", status.FailedRoots(),
			"error", status.Err,
		)
		return
	}
	slog.Info("Background refresh completed",
		"subscriber", r.ID(),
		"changed", last.Changed,
		"duration", last.Duration,
	)
}
