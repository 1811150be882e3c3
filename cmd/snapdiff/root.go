package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snapdiff/internal/config"
	"snapdiff/internal/pipeline"
	"snapdiff/internal/version"
)

var (
	configFile   string
	logLevelFlag string
	genJSON      bool
)

var rootCmd = &cobra.Command{
	Use:   "snapdiff <stream-root> <snap1> <snap2> <result-dir>",
	Short: "Convert a snapshot diff stream into replay order and change events",
	Long: `snapdiff drains the paginated diff stream between two storage snapshots,
reorders the change records into a dependency-safe replay sequence, and
optionally emits each change as a structured JSON event enriched with live
filesystem metadata.

The result directory must exist and be empty. It receives the run log
(out.log), the raw page copies (raw/), the ordered record file
(serialized_diff), and the batched event documents (serialized_json/).`,
	Version:       version.Version,
	Args:          cobra.ExactArgs(4),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	rootCmd.SetVersionTemplate("snapdiff version {{.Version}}\n")
	rootCmd.Flags().StringVar(&configFile, "config", "",
		"Optional config file (retry bounds, batch size, log level)")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "",
		"Log level for out.log: debug, info, warn, or error")
	rootCmd.Flags().BoolVar(&genJSON, "json", true,
		"Generate JSON change event documents")
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}

	opts := pipeline.Options{
		SnapDir:      args[0],
		Snap1:        args[1],
		Snap2:        args[2],
		ResultDir:    args[3],
		GenerateJSON: genJSON,
		Config:       cfg,
	}
	if err := pipeline.Run(opts); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Snapshot diff operation completed successfully, result exported to %s\n", args[3])
	return nil
}
