package launcher

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Slurm queries step status through sacct.
//
// Steps are registered after submission (simrun does not own batch script
// construction) and every poll issues exactly one sacct invocation for all
// tracked steps. Queries are rate limited so a fast caller cannot hammer
// the scheduler.
type Slurm struct {
	mu    sync.Mutex
	steps map[string]string // step name -> slurm job id

	limiter *rate.Limiter

	// runQuery is swappable for tests; defaults to invoking sacct.
	runQuery func(jobIDs []string) (string, error)
}

// NewSlurm returns a Slurm launcher whose sacct queries are limited to one
// per minInterval.
func NewSlurm(minInterval time.Duration) *Slurm {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &Slurm{
		steps:    make(map[string]string),
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
		runQuery: runSacct,
	}
}

// Family implements Launcher.
func (s *Slurm) Family() Family {
	return FamilyWLM
}

// RegisterStep records the Slurm job id assigned to a submitted step so
// later status polls can resolve it.
func (s *Slurm) RegisterStep(name, jobID string) {
	s.mu.Lock()
	s.steps[name] = jobID
	s.mu.Unlock()
}

// GetStepUpdate implements Launcher with a single batched sacct query.
func (s *Slurm) GetStepUpdate(names []string) ([]StatusReport, error) {
	s.mu.Lock()
	jobIDs := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := s.steps[name]
		if !ok {
			s.mu.Unlock()
			return nil, &UnknownStepError{Name: name}
		}
		jobIDs = append(jobIDs, id)
	}
	s.mu.Unlock()

	if len(jobIDs) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}
	out, err := s.runQuery(jobIDs)
	if err != nil {
		return nil, fmt.Errorf("sacct query: %w", err)
	}

	byID := parseSacct(out)
	reports := make([]StatusReport, 0, len(names))
	for _, id := range jobIDs {
		entry, ok := byID[id]
		if !ok {
			// sacct has no record yet; the step is still queued.
			reports = append(reports, StatusReport{Status: StatusNew, LauncherStatus: "PENDING"})
			continue
		}
		report := StatusReport{
			Status:         mapSlurmState(entry.state),
			LauncherStatus: entry.state,
		}
		if report.Status.Terminal() {
			code := entry.exitCode
			report.ReturnCode = &code
		}
		reports = append(reports, report)
	}
	return reports, nil
}

type sacctEntry struct {
	state    string
	exitCode int
}

// parseSacct reads `sacct --noheader -p -b` output: one
// "JobID|State|ExitCode|" line per job, exit codes in "rc:signal" form.
func parseSacct(out string) map[string]sacctEntry {
	entries := make(map[string]sacctEntry)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimSpace(line), "|")
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		state := strings.TrimSpace(fields[1])
		// CANCELLED may carry a suffix, e.g. "CANCELLED by 1234".
		if strings.HasPrefix(state, "CANCELLED") {
			state = "CANCELLED"
		}
		code := 0
		if rc := strings.SplitN(fields[2], ":", 2); len(rc) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(rc[0])); err == nil {
				code = n
			}
		}
		entries[strings.TrimSpace(fields[0])] = sacctEntry{state: state, exitCode: code}
	}
	return entries
}

func mapSlurmState(state string) JobStatus {
	switch state {
	case "PENDING", "CONFIGURING", "REQUEUED":
		return StatusNew
	case "RUNNING", "COMPLETING":
		return StatusRunning
	case "SUSPENDED", "PREEMPTED":
		return StatusPaused
	case "COMPLETED":
		return StatusCompleted
	case "CANCELLED", "REVOKED":
		return StatusCancelled
	case "FAILED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "BOOT_FAIL", "DEADLINE":
		return StatusFailed
	}
	return StatusRunning
}

func runSacct(jobIDs []string) (string, error) {
	out, err := exec.Command("sacct", "--noheader", "-p", "-b", "-j", strings.Join(jobIDs, ",")).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
