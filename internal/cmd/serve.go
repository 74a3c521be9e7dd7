package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hpcforge/simrun/internal/observability"
	"github.com/hpcforge/simrun/internal/server"
	"github.com/hpcforge/simrun/pkg/control"
	"github.com/hpcforge/simrun/pkg/manifest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin API, optionally launching an experiment",
	Long: `Serve the read-only admin HTTP API (health, job snapshots, feature store
addresses). With --job, the manifest is launched first and the API reports
on its jobs while they run.

Example:
  simrun serve
  simrun serve --job experiment.yaml --port 9090`,
	RunE: runServe,
}

var (
	serveJobPath  string
	serveHost     string
	servePort     int
	serveLauncher string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveJobPath, "job", "j", "", "Manifest to launch before serving")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (defaults to config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (defaults to config)")
	serveCmd.Flags().StringVar(&serveLauncher, "launcher", "", "Launcher backend when no manifest is given")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	launcherType := serveLauncher
	if launcherType == "" {
		launcherType = appConfig.Launcher
	}

	var m *manifest.Manifest
	if serveJobPath != "" {
		loaded, err := manifest.Load(serveJobPath)
		if err != nil {
			return exitError("Invalid manifest", err)
		}
		m = loaded
		launcherType = m.Experiment.Launcher
	}

	ctl, err := control.New(control.Config{
		Launcher:         launcherType,
		LocalInterval:    appConfig.Poll.LocalInterval,
		WLMInterval:      appConfig.Poll.WLMInterval,
		WLMQueryInterval: appConfig.Poll.WLMQueryInterval,
		Logger:           observability.Logger("control"),
	})
	if err != nil {
		return exitError("Failed to create controller", err)
	}

	if m != nil {
		if err := ctl.Launch(m); err != nil {
			return exitError("Launch failed", err)
		}
		observability.CLILogger.Info("Experiment launched",
			zap.String("experiment", m.Experiment.Name),
			zap.Int("jobs", ctl.Manager().Len()))
	}

	host := serveHost
	if host == "" {
		host = appConfig.Server.Host
	}
	port := servePort
	if port == 0 {
		port = appConfig.Server.Port
	}

	srv := server.New(server.Options{
		Host:            host,
		Port:            port,
		Version:         versionInfo.Version,
		ReadTimeout:     appConfig.Server.ReadTimeout,
		WriteTimeout:    appConfig.Server.WriteTimeout,
		IdleTimeout:     appConfig.Server.IdleTimeout,
		ShutdownTimeout: appConfig.Server.ShutdownTimeout,
	}, ctl.Manager())

	return srv.ListenAndServe(ctx)
}
