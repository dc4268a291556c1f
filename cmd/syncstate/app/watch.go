package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stacklok/syncstate/internal/coordinator"
	"github.com/stacklok/syncstate/internal/subscriber"
)

func newWatchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Refresh the workspace and saved merges periodically",
		Long: `Keep the workspace subscriber and every saved merge refreshed in the background
and log each change of synchronization state until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, o.configPath())
			if err != nil {
				return err
			}
			defer rt.Close(context.WithoutCancel(ctx))

			subs, err := watchedSubscribers(ctx, rt)
			if err != nil {
				return err
			}
			defer disposeAll(subs)

			coord := newCoordinator(rt, subs)
			slog.Info("Watching workspace", "subscribers", len(subs), "interval", rt.cfg.GetRefreshInterval())
			if err := coord.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("refresh coordinator failed: %w", err)
			}
			return nil
		},
	}
}

// watchedSubscribers returns the workspace subscriber and the saved merges
func watchedSubscribers(ctx context.Context, rt *runtime) ([]subscriber.Subscriber, error) {
	subs := []subscriber.Subscriber{
		subscriber.NewWorkspace(rt.store, rt.backend, rt.subscriberOpts...),
	}
	merges, err := subscriber.RestoreMerges(ctx, rt.store, rt.backend, rt.subscriberOpts...)
	if err != nil {
		disposeAll(subs)
		return nil, err
	}
	return append(subs, merges...), nil
}

func newCoordinator(rt *runtime, subs []subscriber.Subscriber) coordinator.Coordinator {
	opts := []coordinator.Option{coordinator.WithInterval(rt.cfg.GetRefreshInterval())}
	if jitter, ok := rt.cfg.GetRefreshJitter(); ok {
		opts = append(opts, coordinator.WithJitter(jitter))
	}

	coord := coordinator.New(opts...)
	for _, s := range subs {
		s.AddListener(logDelta)
		coord.Add(s)
	}
	return coord
}

func logDelta(d subscriber.Delta) {
	if len(d.Changed) == 0 {
		return
	}
	slog.Info("Synchronization state changed",
		"subscriber", d.SubscriberID,
		"changed", len(d.Changed),
	)
	for _, p := range d.Changed {
		slog.Debug("Changed resource", "subscriber", d.SubscriberID, "path", p)
	}
}
