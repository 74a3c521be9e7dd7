// Package launcher integrates simrun with the backends that actually run
// steps: local processes, Slurm, and PBS.
//
// The job manager only depends on the Launcher interface; everything
// backend-specific (sacct/qstat invocation, process supervision) stays
// behind it.
package launcher

import "fmt"

// Family distinguishes launchers backed by a workload manager from the
// local process launcher. The job manager polls WLM launchers less often to
// bound scheduler load.
type Family string

const (
	FamilyLocal Family = "local"
	FamilyWLM   Family = "wlm"
)

// StatusReport is one step's status as returned by a launcher.
//
// Reports are aligned positionally with the step names passed to
// GetStepUpdate: the i-th report describes the i-th requested name.
type StatusReport struct {
	// Status is the step status mapped onto simrun's vocabulary.
	Status JobStatus

	// LauncherStatus is the raw backend status string (e.g. Slurm's
	// "CD" or PBS's "R"), kept for operator-facing reports.
	LauncherStatus string

	// ReturnCode is the step exit code, nil until the backend reports one.
	ReturnCode *int

	// Error and Output are the paths of the step's stderr and stdout
	// captures, when known.
	Error  string
	Output string
}

// Launcher is the backend interface consumed by the job manager.
type Launcher interface {
	// GetStepUpdate returns one StatusReport per requested step name, in
	// the same order and count as names. This is a single batched query
	// regardless of how many steps are tracked.
	GetStepUpdate(names []string) ([]StatusReport, error)

	// Family reports which polling cadence the launcher needs.
	Family() Family
}

// Step describes one unit of work handed to a launcher.
type Step struct {
	// Name is the step name, unique per launch.
	Name string

	// Exe and Args form the command line to run.
	Exe  string
	Args []string

	// Cwd is the working directory for the step.
	Cwd string

	// OutFile and ErrFile receive the step's stdout and stderr.
	OutFile string
	ErrFile string

	// Env holds additional environment entries in KEY=VALUE form.
	Env []string
}

// UnknownStepError is returned when a status update is requested for a step
// the launcher never started or registered.
type UnknownStepError struct {
	Name string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step: %s", e.Name)
}
