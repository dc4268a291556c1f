package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/subscriber"
)

func newMergeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Preview merges between two tags",
		Long: `A merge shows what applying the changes between a start and an end tag to the
workspace would do. Merges are saved in the merge state folder until cancelled.`,
	}
	cmd.AddCommand(newMergeStartCmd(o))
	cmd.AddCommand(newMergeListCmd(o))
	cmd.AddCommand(newMergeStatusCmd(o))
	cmd.AddCommand(newMergeCancelCmd(o))
	return cmd
}

func newMergeStartCmd(o *options) *cobra.Command {
	flags := &reportFlags{}
	var name string
	cmd := &cobra.Command{
		Use:   "start <start-tag> <end-tag> [path...]",
		Short: "Start a merge and show its state",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := backend.ParseTag(args[0])
			if err != nil {
				return fmt.Errorf("invalid start tag: %w", err)
			}
			end, err := backend.ParseTag(args[1])
			if err != nil {
				return fmt.Errorf("invalid end tag: %w", err)
			}

			ctx := cmd.Context()
			rt, err := newRuntime(ctx, o.configPath())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			roots, err := rt.rootsOrProjects(args[2:])
			if err != nil {
				return err
			}
			opts := rt.subscriberOpts
			if name != "" {
				opts = append(opts, subscriber.WithName(name))
			}
			s, err := subscriber.NewMerge(ctx, rt.store, rt.backend, start, end, roots, opts...)
			if err != nil {
				return err
			}
			defer s.Dispose()

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Started %s (%s)\n", s.ID(), s.Name()); err != nil {
				return err
			}
			return refreshAndReport(ctx, cmd.OutOrStdout(), s, nil, flags)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name of the merge")
	flags.register(cmd)
	return cmd
}

func newMergeListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved merges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, o.configPath())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			records, err := rt.persistence.LoadAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to load merges: %w", err)
			}
			return renderMerges(cmd, records)
		},
	}
}

func renderMerges(cmd *cobra.Command, records map[string]*subscriber.MergeRecord) error {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No merges")
		return err
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table := tablewriter.NewWriter(out)
	table.Header("ID", "NAME", "START", "END", "ROOTS", "CREATED")
	for _, id := range ids {
		r := records[id]
		roots := make([]string, 0, len(r.Roots))
		for _, root := range r.Roots {
			roots = append(roots, root.String())
		}
		row := []string{r.ID, r.Name, r.Start, r.End, strings.Join(roots, ","), r.CreatedAt.Format(time.RFC3339)}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to render merge %s: %w", id, err)
		}
	}
	return table.Render()
}

func newMergeStatusCmd(o *options) *cobra.Command {
	flags := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "status <merge-id>",
		Short: "Show the state of a saved merge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, o.configPath())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			s, others, err := restoreMerge(ctx, rt, args[0])
			if err != nil {
				return err
			}
			defer disposeAll(others)
			defer s.Dispose()

			return refreshAndReport(ctx, cmd.OutOrStdout(), s, nil, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newMergeCancelCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <merge-id>",
		Short: "Cancel a saved merge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, o.configPath())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			s, others, err := restoreMerge(ctx, rt, args[0])
			if err != nil {
				return err
			}
			defer disposeAll(others)

			if err := s.Cancel(ctx); err != nil {
				return fmt.Errorf("failed to cancel merge %s: %w", args[0], err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", args[0])
			return err
		},
	}
}

// restoreMerge restores every saved merge and returns the one with id apart
// from the others
func restoreMerge(
	ctx context.Context,
	rt *runtime,
	id string,
) (subscriber.Subscriber, []subscriber.Subscriber, error) {
	merges, err := subscriber.RestoreMerges(ctx, rt.store, rt.backend, rt.subscriberOpts...)
	if err != nil {
		return nil, nil, err
	}

	var found subscriber.Subscriber
	others := make([]subscriber.Subscriber, 0, len(merges))
	for _, m := range merges {
		if m.ID() == id {
			found = m
			continue
		}
		others = append(others, m)
	}
	if found == nil {
		disposeAll(others)
		return nil, nil, fmt.Errorf("merge %s not found", id)
	}
	return found, others, nil
}

func disposeAll(subs []subscriber.Subscriber) {
	for _, s := range subs {
		s.Dispose()
	}
}
