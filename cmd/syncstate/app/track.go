package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/syncstate/internal/backend"
)

func newTrackCmd(o *options) *cobra.Command {
	var tagName string
	cmd := &cobra.Command{
		Use:   "track [path...]",
		Short: "Record local copies as checked out from the repository",
		Long: `Write tracking records for the local files and folders that also exist in the
repository at a tag. Afterwards status compares them with that revision.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := backend.ParseTag(tagName)
			if err != nil {
				return fmt.Errorf("invalid tag: %w", err)
			}

			ctx := cmd.Context()
			rt, err := newRuntime(ctx, o.configPath())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			roots, err := rt.rootsOrProjects(args)
			if err != nil {
				return err
			}
			for _, root := range roots {
				result, err := rt.repo.Track(ctx, rt.store, tag, root)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %d folders, %d files tracked, %d skipped\n",
					root, result.Folders, result.Files, result.Skipped); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tagName, "tag", "HEAD", "Tag the local copies were checked out from")
	return cmd
}
