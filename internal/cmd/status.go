package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hpcforge/simrun/pkg/runstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show experiment runs and their job outcomes",
	Long: `List recorded runs for an experiment directory, or show the per-job
outcomes of one run.

Example:
  simrun status --path ./experiments/thermo
  simrun status --path ./experiments/thermo --run 4f1c...
  simrun status --path ./experiments/thermo --output json`,
	RunE: runStatus,
}

var (
	statusPath   string
	statusRunID  string
	statusOutput string
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusPath, "path", "p", ".", "Experiment directory")
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "Show one run's job outcomes")
	statusCmd.Flags().StringVar(&statusOutput, "output", "table", "Output format (table|json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	store := runstore.NewStore(filepath.Join(statusPath, ".simrun", "runs"))

	if statusRunID != "" {
		record, err := store.Get(statusRunID)
		if err != nil {
			return exitError("Run not found", err)
		}
		return printRun(record)
	}

	runs, err := store.List()
	if err != nil {
		return exitError("Failed to list runs", err)
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs. Launch an experiment first.")
		return nil
	}

	if statusOutput == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tEXPERIMENT\tSTATE\tLAUNCHER\tSTARTED\tJOBS")
	for _, r := range runs {
		started := "-"
		if r.StartedAt != nil {
			started = r.StartedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			shortID(r.RunID), r.Experiment, r.State, r.Launcher, started, len(r.Jobs))
	}
	return w.Flush()
}

func printRun(record *runstore.RunRecord) error {
	if statusOutput == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}

	fmt.Printf("Run:        %s\n", record.RunID)
	fmt.Printf("Experiment: %s\n", record.Experiment)
	fmt.Printf("State:      %s\n", record.State)
	fmt.Printf("Launcher:   %s\n", record.Launcher)
	if record.EventsPath != "" {
		fmt.Printf("Events:     %s\n", record.EventsPath)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tSTEP\tJID\tSTATUS\tRC\tRUNS")
	for _, j := range record.Jobs {
		rc := "-"
		if j.ReturnCode != nil {
			rc = fmt.Sprintf("%d", *j.ReturnCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			j.Entity, j.StepName, shortID(j.JID), j.Status, rc, j.Runs)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
