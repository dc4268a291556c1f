package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/subscriber"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// stateRow is one resource in the output of status, compare and merge
type stateRow struct {
	Path           string `json:"path"`
	Kind           string `json:"kind"`
	State          string `json:"state"`
	Criterion      string `json:"criterion"`
	LocalRevision  string `json:"localRevision,omitempty"`
	RemoteRevision string `json:"remoteRevision,omitempty"`
}

func rowFor(info *subscriber.Info) stateRow {
	row := stateRow{
		Path:      info.Path.String(),
		Kind:      info.Kind.String(),
		State:     info.State.String(),
		Criterion: info.Criterion,
	}
	if info.Local != nil {
		row.LocalRevision = info.Local.Revision
	}
	if info.Remote != nil {
		row.RemoteRevision = info.Remote.Revision
	}
	return row
}

// reportFlags are the flags shared by the commands printing states
type reportFlags struct {
	criterion string
	output    string
	depth     string
	all       bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.criterion, "criterion", "", "Comparison criterion (revision, content, revision-on-branch)")
	cmd.Flags().StringVarP(&f.output, "output", "o", outputTable, "Output format (table or json)")
	cmd.Flags().StringVar(&f.depth, "depth", resource.DepthInfinite.String(), "Refresh depth (zero, one or infinite)")
	cmd.Flags().BoolVar(&f.all, "all", false, "Also list resources that are in sync")
}

func parseDepth(s string) (resource.Depth, error) {
	switch strings.ToLower(s) {
	case "0", "zero":
		return resource.DepthZero, nil
	case "1", "one":
		return resource.DepthOne, nil
	case "", "infinite", "inf":
		return resource.DepthInfinite, nil
	default:
		return 0, fmt.Errorf("invalid depth %q: must be zero, one or infinite", s)
	}
}

// refreshAndReport refreshes paths, or every root when paths is empty, and
// prints the states below them
func refreshAndReport(
	ctx context.Context,
	w io.Writer,
	s subscriber.Subscriber,
	paths []resource.Path,
	flags *reportFlags,
) error {
	depth, err := parseDepth(flags.depth)
	if err != nil {
		return err
	}

	status := s.Refresh(ctx, paths, depth)
	if !status.OK() {
		// the roots that were fetched are still reported
		slog.Warn("Refresh incomplete",
			"subscriber", s.ID(),
			"failed_roots", status.FailedRoots(),
			"error", status.Err,
		)
	}

	roots := paths
	if len(roots) == 0 {
		roots = s.Roots()
	}
	rows, err := collectStates(s, roots, flags.criterion, flags.all)
	if err != nil {
		return err
	}
	return renderStates(w, flags.output, rows)
}

// collectStates classifies roots and everything the subscriber lists below
// them. In-sync resources are left out unless all is set.
func collectStates(s subscriber.Subscriber, roots []resource.Path, criterion string, all bool) ([]stateRow, error) {
	rows := []stateRow{}
	seen := make(map[resource.Path]bool)

	var visit func(p resource.Path) error
	visit = func(p resource.Path) error {
		if seen[p] {
			return nil
		}
		seen[p] = true

		info, err := s.SyncInfo(p, criterion)
		if err != nil {
			return fmt.Errorf("failed to compute state of %s: %w", p, err)
		}
		if info == nil {
			return nil
		}
		if all || !info.State.IsInSync() {
			rows = append(rows, rowFor(info))
		}
		if info.Kind != resource.KindFolder {
			return nil
		}

		members, err := s.Members(p)
		if err != nil {
			return fmt.Errorf("failed to list members of %s: %w", p, err)
		}
		for _, m := range members {
			if err := visit(m); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	return rows, nil
}

func renderStates(w io.Writer, format string, rows []stateRow) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case outputTable, "":
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "Everything is in sync")
			return err
		}
		table := tablewriter.NewWriter(w)
		table.Header("PATH", "KIND", "STATE", "LOCAL", "REMOTE")
		for _, r := range rows {
			if err := table.Append([]string{r.Path, r.Kind, r.State, r.LocalRevision, r.RemoteRevision}); err != nil {
				return fmt.Errorf("failed to render row %s: %w", r.Path, err)
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
