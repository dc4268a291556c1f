// Package app provides the commands of the syncstate command line tool.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/syncstate/internal/config"
	"github.com/stacklok/syncstate/internal/versions"
)

const defaultConfigPath = "syncstate.yaml"

// options is shared by all commands of one root command
type options struct {
	v *viper.Viper

	// level is raised to debug by --debug
	level *slog.LevelVar
}

func (o *options) configPath() string {
	return o.v.GetString("config")
}

// NewRootCmd creates the root command. level, if not nil, is lowered to
// debug when --debug is set.
func NewRootCmd(level *slog.LevelVar) *cobra.Command {
	o := &options{v: viper.New(), level: level}
	o.v.SetEnvPrefix(config.EnvPrefix)
	o.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:               "syncstate",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Synchronization state of a workspace against its repository",
		Long: `syncstate computes, for every tracked file and folder of a workspace, whether it is
in sync with the repository it was checked out from, has incoming or outgoing changes,
or conflicts. Besides the workspace itself it can compare the workspace with a tag and
preview merges between two tags.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if o.v.GetBool("debug") && o.level != nil {
				o.level.Set(slog.LevelDebug)
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", defaultConfigPath, "Path to configuration file (YAML format)")
	for _, name := range []string{"debug", "config"} {
		if err := o.v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}

	rootCmd.AddCommand(newStatusCmd(o))
	rootCmd.AddCommand(newCompareCmd(o))
	rootCmd.AddCommand(newMergeCmd(o))
	rootCmd.AddCommand(newTrackCmd(o))
	rootCmd.AddCommand(newWatchCmd(o))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.Get()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to read format flag: %w", err)
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(out, string(output))
				return err
			case "yaml":
				return yaml.NewEncoder(out).Encode(info)
			case "":
				_, err := fmt.Fprintf(out, "syncstate %s (commit %s, built %s, %s, %s)\n",
					info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
				return err
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().String("format", "", "Output format (json or yaml)")
	return cmd
}
