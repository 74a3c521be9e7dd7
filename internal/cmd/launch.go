package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hpcforge/simrun/internal/observability"
	"github.com/hpcforge/simrun/pkg/control"
	"github.com/hpcforge/simrun/pkg/events"
	"github.com/hpcforge/simrun/pkg/jobmanager"
	"github.com/hpcforge/simrun/pkg/launcher"
	"github.com/hpcforge/simrun/pkg/manifest"
	"github.com/hpcforge/simrun/pkg/runstore"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch an experiment from a manifest",
	Long: `Launch every entity described in a YAML or JSON experiment manifest,
then block until all jobs finish.

Each run gets a record and an events.jsonl log under
<experiment_path>/.simrun/runs/<run_id>/.

Example:
  simrun launch --job experiment.yaml
  simrun launch --job experiment.yaml --launcher local --verbose`,
	RunE: runLaunch,
}

var (
	launchJobPath  string
	launchLauncher string
	launchVerbose  bool
	launchNoEvents bool
)

func init() {
	rootCmd.AddCommand(launchCmd)

	launchCmd.Flags().StringVarP(&launchJobPath, "job", "j", "", "Path to experiment manifest (required)")
	launchCmd.Flags().StringVar(&launchLauncher, "launcher", "", "Override the manifest's launcher (local|slurm|pbs)")
	launchCmd.Flags().BoolVarP(&launchVerbose, "verbose", "v", false, "Log job statuses while polling")
	launchCmd.Flags().BoolVar(&launchNoEvents, "no-events", false, "Disable the events.jsonl run log")

	_ = launchCmd.MarkFlagRequired("job")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(launchJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", launchJobPath),
			zap.Error(err))
		return exitError("Invalid manifest", err)
	}
	if launchLauncher != "" {
		m.Experiment.Launcher = launchLauncher
	}

	runID := uuid.New().String()
	store := runstore.NewStore(filepath.Join(m.Experiment.Path, ".simrun", "runs"))

	now := time.Now().UTC()
	record := &runstore.RunRecord{
		RunID:        runID,
		Experiment:   m.Experiment.Name,
		State:        runstore.RunStateRunning,
		Launcher:     m.Experiment.Launcher,
		ManifestPath: launchJobPath,
		PID:          os.Getpid(),
		CreatedAt:    now,
		StartedAt:    &now,
	}
	if err := store.Write(record); err != nil {
		return exitError("Failed to create run record", err)
	}

	writer, cleanup, err := createEventsWriter(store, record, m)
	if err != nil {
		return exitError("Failed to create events log", err)
	}
	defer cleanup()

	ctl, err := control.New(control.Config{
		Launcher:         m.Experiment.Launcher,
		LocalInterval:    appConfig.Poll.LocalInterval,
		WLMInterval:      appConfig.Poll.WLMInterval,
		WLMQueryInterval: appConfig.Poll.WLMQueryInterval,
		Logger:           observability.Logger("control"),
		Events:           writer,
	})
	if err != nil {
		return exitError("Failed to create controller", err)
	}

	observability.CLILogger.Info("Launching experiment",
		zap.String("experiment", m.Experiment.Name),
		zap.String("run_id", runID),
		zap.String("launcher", m.Experiment.Launcher))

	if err := ctl.Launch(m); err != nil {
		record.State = runstore.RunStateFailed
		finalizeRun(store, record, ctl.Manager())
		observability.CLILogger.Error("Launch failed", zap.Error(err))
		return exitError("Launch failed", err)
	}

	ctl.Poll(pollInterval(m.Experiment.Launcher), launchVerbose)

	failed := finalizeRun(store, record, ctl.Manager())
	observability.CLILogger.Info("Experiment finished",
		zap.String("run_id", runID),
		zap.String("state", string(record.State)),
		zap.Int("jobs", len(record.Jobs)),
		zap.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(record.Jobs))
	}
	return nil
}

func createEventsWriter(store *runstore.Store, record *runstore.RunRecord, m *manifest.Manifest) (events.Writer, func(), error) {
	if launchNoEvents {
		return events.NopWriter{}, func() {}, nil
	}

	if err := os.MkdirAll(store.RunDir(record.RunID), 0755); err != nil {
		return nil, nil, err
	}
	path := store.EventsPath(record.RunID)
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	record.EventsPath = path

	w := events.NewJSONLWriter(f, m.Experiment.Name, m.Experiment.Launcher)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}

// finalizeRun collects per-job outcomes into the run record, derives the
// final state, and persists it. Returns the failed job count.
func finalizeRun(store *runstore.Store, record *runstore.RunRecord, mgr *jobmanager.Manager) int {
	failed := 0
	record.Jobs = record.Jobs[:0]
	for _, summary := range mgr.Snapshot() {
		record.Jobs = append(record.Jobs, runstore.JobOutcome{
			Entity:     summary.EntityName,
			StepName:   summary.StepName,
			JID:        summary.JID,
			Status:     string(summary.Status),
			ReturnCode: summary.ReturnCode,
			Runs:       summary.Runs,
		})
		if summary.Status != launcher.StatusCompleted {
			failed++
		}
	}

	if record.State == runstore.RunStateRunning {
		switch {
		case failed == 0:
			record.State = runstore.RunStateSuccess
		case failed == len(record.Jobs):
			record.State = runstore.RunStateFailed
		default:
			record.State = runstore.RunStatePartial
		}
	}
	ended := time.Now().UTC()
	record.EndedAt = &ended

	if err := store.Write(record); err != nil {
		observability.CLILogger.Warn("Failed to persist run record", zap.Error(err))
	}
	return failed
}

func pollInterval(launcherType string) time.Duration {
	if launcherType == "local" || launcherType == "" {
		return appConfig.Poll.LocalInterval
	}
	return appConfig.Poll.WLMInterval
}
