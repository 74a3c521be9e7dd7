package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hpcforge/simrun/internal/observability"
	"github.com/hpcforge/simrun/pkg/control"
	"github.com/hpcforge/simrun/pkg/entity"
	"github.com/hpcforge/simrun/pkg/launcher"
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Monitor externally submitted workload-manager jobs",
	Long: `Attach to jobs that were submitted outside simrun (sbatch, qsub) and
track them until completion. Each --step maps an entity name to its
scheduler job id.

Example:
  simrun attach --launcher slurm --step atm=412031 --step ocn=412032`,
	RunE: runAttach,
}

var (
	attachLauncher string
	attachSteps    []string
	attachVerbose  bool
)

func init() {
	rootCmd.AddCommand(attachCmd)

	attachCmd.Flags().StringVar(&attachLauncher, "launcher", "slurm", "Workload manager (slurm|pbs)")
	attachCmd.Flags().StringArrayVar(&attachSteps, "step", nil, "entity=jobid mapping (repeatable, required)")
	attachCmd.Flags().BoolVarP(&attachVerbose, "verbose", "v", false, "Log job statuses while polling")

	_ = attachCmd.MarkFlagRequired("step")
}

// attachedEntity is the minimal descriptor for a job simrun did not launch
// itself.
type attachedEntity struct {
	name string
}

func (e attachedEntity) Name() string             { return e.name }
func (e attachedEntity) Type() string             { return "application" }
func (e attachedEntity) RunSetting(string) string { return "" }

func runAttach(cmd *cobra.Command, args []string) error {
	ctl, err := control.New(control.Config{
		Launcher:         attachLauncher,
		LocalInterval:    appConfig.Poll.LocalInterval,
		WLMInterval:      appConfig.Poll.WLMInterval,
		WLMQueryInterval: appConfig.Poll.WLMQueryInterval,
		Logger:           observability.Logger("control"),
	})
	if err != nil {
		return exitError("Failed to create controller", err)
	}

	for _, spec := range attachSteps {
		name, jobID, ok := strings.Cut(spec, "=")
		if !ok || name == "" || jobID == "" {
			return exitError("Invalid --step value", fmt.Errorf("expected entity=jobid, got %q", spec))
		}
		ctl.AttachStep(name, jobID, attachedEntity{name: name}, entity.KindApplication)
		observability.CLILogger.Info("Attached to job",
			zap.String("entity", name),
			zap.String("job_id", jobID))
	}

	ctl.Poll(appConfig.Poll.WLMInterval, attachVerbose)

	failed := 0
	for _, summary := range ctl.Manager().Snapshot() {
		if summary.Status != launcher.StatusCompleted {
			failed++
		}
		observability.CLILogger.Info("Job finished",
			zap.String("entity", summary.EntityName),
			zap.String("status", string(summary.Status)))
	}
	if failed > 0 {
		return fmt.Errorf("%d attached jobs did not complete successfully", failed)
	}
	return nil
}
