package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/stacklok/syncstate/internal/backend"
	gitbackend "github.com/stacklok/syncstate/internal/backend/git"
	"github.com/stacklok/syncstate/internal/config"
	"github.com/stacklok/syncstate/internal/criteria"
	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/subscriber"
	"github.com/stacklok/syncstate/internal/telemetry"
	"github.com/stacklok/syncstate/internal/variant"
)

const tracerName = "github.com/stacklok/syncstate"

// runtime holds everything a command needs to build subscribers
type runtime struct {
	cfg         *config.Config
	store       resource.Store
	backend     backend.Backend
	repo        *gitbackend.Backend
	persistence subscriber.Persistence
	telemetry   *telemetry.Telemetry

	// subscriberOpts are passed to every subscriber built by a command
	subscriberOpts []subscriber.Option

	closers []func(ctx context.Context) error
}

// newRuntime loads the configuration at path and opens the workspace and
// the repository it describes
func newRuntime(ctx context.Context, path string) (*runtime, error) {
	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Debug("Loaded configuration",
		"path", path,
		"workspace", cfg.GetWorkspacePath(),
		"criterion", cfg.GetCriterion(),
	)

	rt := &runtime{cfg: cfg}
	if err := rt.open(ctx); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) open(ctx context.Context) error {
	cfg := rt.cfg

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	rt.telemetry = tel
	rt.closers = append(rt.closers, tel.Shutdown)

	store, err := resource.NewFSStore(
		osfs.New(cfg.GetWorkspacePath()),
		resource.WithMetadataDir(cfg.GetMetadataDir()),
	)
	if err != nil {
		return fmt.Errorf("failed to open workspace %s: %w", cfg.GetWorkspacePath(), err)
	}
	rt.store = store

	repoCfg, err := repositoryConfig(&cfg.Repository)
	if err != nil {
		return err
	}
	backendOpts := []gitbackend.Option{gitbackend.WithStore(store)}
	if cfg.Repository.Branch != "" {
		backendOpts = append(backendOpts, gitbackend.WithBranch(cfg.Repository.Branch))
	}
	if cfg.Repository.Prefix != "" {
		backendOpts = append(backendOpts, gitbackend.WithPrefix(resource.NewPath(cfg.Repository.Prefix)))
	}
	gb, err := gitbackend.Open(ctx, repoCfg, backendOpts...)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	rt.backend = gb
	rt.repo = gb
	rt.closers = append(rt.closers, func(context.Context) error {
		gb.Close()
		return nil
	})

	rt.persistence = subscriber.NewFilePersistence(osfs.New(cfg.GetMergeStateDir()))

	opts, err := subscriberOptions(cfg, tel)
	if err != nil {
		return err
	}
	rt.subscriberOpts = append(opts, subscriber.WithPersistence(rt.persistence))
	return nil
}

// Close releases the repository and flushes telemetry
func (rt *runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			slog.Warn("Failed to release resource", "error", err)
		}
	}
	rt.closers = nil
}

func repositoryConfig(repo *config.RepositoryConfig) (gitbackend.RepositoryConfig, error) {
	out := gitbackend.RepositoryConfig{
		Path: repo.Path,
		URL:  repo.URL,
	}
	if repo.Auth != nil {
		password, err := repo.Auth.GetPassword()
		if err != nil {
			return out, fmt.Errorf("failed to resolve repository credentials: %w", err)
		}
		out.Auth = &gitbackend.Auth{Username: repo.Auth.Username, Password: password}
	}
	return out, nil
}

// subscriberOptions translates the configuration into subscriber options
func subscriberOptions(cfg *config.Config, tel *telemetry.Telemetry) ([]subscriber.Option, error) {
	registry, err := criteria.DefaultRegistry(
		cfg.GetCriterion(),
		criteria.WithIgnoreWhitespace(cfg.IgnoreWhitespace),
	)
	if err != nil {
		return nil, err
	}

	policy, err := ignoredIncomingPolicy(cfg.GetIgnoredIncoming())
	if err != nil {
		return nil, err
	}

	tracer := tel.Tracer(tracerName)
	treeOpts := []variant.Option{variant.WithTracer(tracer)}
	if n := cfg.GetConcurrency(); n > 0 {
		treeOpts = append(treeOpts, variant.WithConcurrency(n))
	}
	if ttl := cfg.GetCacheTTL(); ttl > 0 {
		treeOpts = append(treeOpts, variant.WithTTL(ttl))
	}

	opts := []subscriber.Option{
		subscriber.WithCriteria(registry),
		subscriber.WithIgnoredIncomingPolicy(policy),
		subscriber.WithTracer(tracer),
		subscriber.WithTreeOptions(treeOpts...),
	}

	metrics, err := telemetry.NewRefreshMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh metrics: %w", err)
	}
	if metrics != nil {
		opts = append(opts, subscriber.WithRefreshMetrics(metrics))
	}
	return opts, nil
}

func ignoredIncomingPolicy(name string) (subscriber.IgnoredIncomingPolicy, error) {
	switch name {
	case config.IgnoredIncomingSupervise:
		return subscriber.IgnoredIncomingSupervise, nil
	case config.IgnoredIncomingHide:
		return subscriber.IgnoredIncomingHide, nil
	default:
		return 0, errors.New("unknown ignored incoming policy: " + name)
	}
}

// rootsOrProjects parses args as workspace paths, falling back to every
// project of the workspace
func (rt *runtime) rootsOrProjects(args []string) ([]resource.Path, error) {
	if len(args) > 0 {
		return parsePaths(args), nil
	}
	projects, err := rt.store.Projects()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func parsePaths(args []string) []resource.Path {
	out := make([]resource.Path, 0, len(args))
	for _, a := range args {
		out = append(out, resource.NewPath(a))
	}
	return out
}
