package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/subscriber"
)

func newStatusCmd(o *options) *cobra.Command {
	flags := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "status [path...]",
		Short: "Show the synchronization state of the workspace",
		Long: `Refresh the workspace against the head of the configured branch and list every
resource that is not in sync. Without paths every project of the workspace is refreshed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, o.configPath())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			s := subscriber.NewWorkspace(rt.store, rt.backend, rt.subscriberOpts...)
			defer s.Dispose()

			return refreshAndReport(ctx, cmd.OutOrStdout(), s, parsePaths(args), flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCompareCmd(o *options) *cobra.Command {
	flags := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "compare <tag> [path...]",
		Short: "Compare the workspace with a tag",
		Long: `Compare the workspace with the repository at a tag. The comparison is two-way:
every difference is reported as incoming. Tags are HEAD, branch:<name>,
version:<name>, date:<RFC3339> or commit:<id>; a bare name is a version.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := backend.ParseTag(args[0])
			if err != nil {
				return fmt.Errorf("invalid tag: %w", err)
			}

			ctx := cmd.Context()
			rt, err := newRuntime(ctx, o.configPath())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			roots, err := rt.rootsOrProjects(args[1:])
			if err != nil {
				return err
			}
			s := subscriber.NewCompare(rt.store, rt.backend, tag, roots, rt.subscriberOpts...)
			defer s.Dispose()

			return refreshAndReport(ctx, cmd.OutOrStdout(), s, nil, flags)
		},
	}
	flags.register(cmd)
	return cmd
}
