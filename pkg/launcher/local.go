package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
)

// Local runs steps as child processes on the current machine, capturing
// stdout and stderr to per-step files.
//
// Local is safe for concurrent use: Start is called from the controller
// thread while GetStepUpdate is called from the job manager's polling
// goroutine.
type Local struct {
	mu    sync.Mutex
	steps map[string]*localStep
}

type localStep struct {
	id      string
	cmd     *exec.Cmd
	outFile string
	errFile string

	done       bool
	returnCode int
}

// NewLocal returns a Local launcher with no tracked steps.
func NewLocal() *Local {
	return &Local{steps: make(map[string]*localStep)}
}

// Family implements Launcher.
func (l *Local) Family() Family {
	return FamilyLocal
}

// Start launches the step and returns the launcher-assigned step id.
//
// The child is reaped by a goroutine so exit codes are available to later
// GetStepUpdate calls without blocking.
func (l *Local) Start(step Step) (string, error) {
	if step.Name == "" {
		return "", fmt.Errorf("step name is required")
	}
	if step.Exe == "" {
		return "", fmt.Errorf("step %s: executable is required", step.Name)
	}

	stdout, err := os.Create(step.OutFile)
	if err != nil {
		return "", fmt.Errorf("create stdout capture: %w", err)
	}
	stderr, err := os.Create(step.ErrFile)
	if err != nil {
		_ = stdout.Close()
		return "", fmt.Errorf("create stderr capture: %w", err)
	}

	cmd := exec.Command(step.Exe, step.Args...)
	cmd.Dir = step.Cwd
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), step.Env...)

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return "", fmt.Errorf("start step %s: %w", step.Name, err)
	}

	ls := &localStep{
		id:      uuid.New().String(),
		cmd:     cmd,
		outFile: step.OutFile,
		errFile: step.ErrFile,
	}

	l.mu.Lock()
	l.steps[step.Name] = ls
	l.mu.Unlock()

	go func() {
		err := cmd.Wait()
		_ = stdout.Close()
		_ = stderr.Close()

		code := 0
		if err != nil {
			code = 1
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			}
		}

		l.mu.Lock()
		ls.done = true
		ls.returnCode = code
		l.mu.Unlock()
	}()

	return ls.id, nil
}

// Stop terminates a running step. Stopping an already finished step is a
// no-op.
func (l *Local) Stop(name string) error {
	l.mu.Lock()
	ls, ok := l.steps[name]
	l.mu.Unlock()
	if !ok {
		return &UnknownStepError{Name: name}
	}

	l.mu.Lock()
	done := ls.done
	l.mu.Unlock()
	if done {
		return nil
	}
	return ls.cmd.Process.Kill()
}

// GetStepUpdate implements Launcher. Reports are synthesized from tracked
// process state: running until the reaper records an exit code, then
// COMPLETED or FAILED by exit status.
func (l *Local) GetStepUpdate(names []string) ([]StatusReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	reports := make([]StatusReport, 0, len(names))
	for _, name := range names {
		ls, ok := l.steps[name]
		if !ok {
			return nil, &UnknownStepError{Name: name}
		}

		report := StatusReport{
			Status:         StatusRunning,
			LauncherStatus: "Running",
			Output:         ls.outFile,
			Error:          ls.errFile,
		}
		if ls.done {
			code := ls.returnCode
			report.ReturnCode = &code
			if code == 0 {
				report.Status = StatusCompleted
				report.LauncherStatus = "Completed"
			} else {
				report.Status = StatusFailed
				report.LauncherStatus = "Failed"
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}
