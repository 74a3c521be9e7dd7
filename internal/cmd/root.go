// Package cmd implements the simrun command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hpcforge/simrun/internal/config"
	"github.com/hpcforge/simrun/internal/observability"
)

// versionInfo is populated at build time via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	rootLogLevel   string
	rootLogProfile string

	// appConfig is resolved once in the persistent pre-run and shared by
	// subcommands.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "simrun",
	Short: "Launch and monitor simulation experiments",
	Long: `simrun expands experiment manifests into concrete application runs,
launches them through a local or workload-manager backend, and tracks
every job until completion.

Run 'simrun launch --job experiment.yaml' to start an experiment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if rootLogLevel != "" {
			overrides["logging"] = map[string]any{"level": rootLogLevel}
		}
		if rootLogProfile != "" {
			logging, _ := overrides["logging"].(map[string]any)
			if logging == nil {
				logging = map[string]any{}
			}
			logging["profile"] = rootLogProfile
			overrides["logging"] = logging
		}

		cfg, err := config.Load(cmd.Context(), overrides)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		appConfig = cfg

		return observability.Init(cfg.Logging.Level, cfg.Logging.Profile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&rootLogProfile, "log-profile", "", "Log profile (CLI|STRUCTURED)")
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	return rootCmd.ExecuteContext(ctx)
}

// exitError wraps a failure with a short operator-facing message.
func exitError(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}
