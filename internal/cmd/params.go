package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hpcforge/simrun/internal/observability"
	"github.com/hpcforge/simrun/pkg/manifest"
	"github.com/hpcforge/simrun/pkg/strategy"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Preview ensemble expansion without launching",
	Long: `Expand every ensemble in a manifest through its permutation strategy and
print the generated member configurations. Nothing is staged or launched.

Example:
  simrun params --job experiment.yaml
  simrun params --job experiment.yaml --output jsonl`,
	RunE: runParams,
}

var (
	paramsJobPath string
	paramsOutput  string
)

func init() {
	rootCmd.AddCommand(paramsCmd)

	paramsCmd.Flags().StringVarP(&paramsJobPath, "job", "j", "", "Path to experiment manifest (required)")
	paramsCmd.Flags().StringVar(&paramsOutput, "output", "table", "Output format (table|jsonl)")

	_ = paramsCmd.MarkFlagRequired("job")
}

// memberPreview is one generated member configuration.
type memberPreview struct {
	Name    string              `json:"name"`
	Params  map[string]string   `json:"params,omitempty"`
	ExeArgs map[string][]string `json:"exe_args,omitempty"`
}

func runParams(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(paramsJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", paramsJobPath),
			zap.Error(err))
		return exitError("Invalid manifest", err)
	}

	reg := strategy.NewRegistry()
	var previews []memberPreview

	for _, app := range m.Applications {
		if app.Ensemble == nil {
			previews = append(previews, memberPreview{Name: app.Name})
			continue
		}

		fn, err := reg.Resolve(app.Ensemble.Strategy)
		if err != nil {
			return exitError("Unknown strategy", err)
		}
		sets, err := fn(app.Ensemble.Params, app.Ensemble.ExeArgs, app.Ensemble.NPermutations)
		if err != nil {
			return exitError("Expansion failed", err)
		}

		replicas := app.Ensemble.Replicas
		if replicas < 1 {
			replicas = 1
		}
		i := 0
		for _, set := range sets {
			for r := 0; r < replicas; r++ {
				previews = append(previews, memberPreview{
					Name:    fmt.Sprintf("%s_%d", app.Name, i),
					Params:  set.FileParams,
					ExeArgs: set.ExeArgs,
				})
				i++
			}
		}
	}

	switch paramsOutput {
	case "jsonl":
		enc := json.NewEncoder(os.Stdout)
		for _, p := range previews {
			if err := enc.Encode(p); err != nil {
				return err
			}
		}
	case "table", "":
		printPreviewTable(previews)
	default:
		return exitError("Invalid --output value", fmt.Errorf("unsupported format: %s", paramsOutput))
	}

	observability.CLILogger.Debug("Previewed expansion",
		zap.String("path", paramsJobPath),
		zap.Int("members", len(previews)))
	return nil
}

func printPreviewTable(previews []memberPreview) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMS\tEXE ARGS")
	for _, p := range previews {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, formatParams(p.Params), formatExeArgs(p.ExeArgs))
	}
	_ = w.Flush()
}

func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, " ")
}

func formatExeArgs(exeArgs map[string][]string) string {
	if len(exeArgs) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(exeArgs))
	for k := range exeArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+strings.Join(exeArgs[k], " "))
	}
	return strings.Join(parts, " ")
}
