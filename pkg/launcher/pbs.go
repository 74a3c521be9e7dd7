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

// PBS queries step status through qstat.
//
// Mirrors the Slurm adapter: registered steps, one batched qstat call per
// poll, rate limited.
type PBS struct {
	mu    sync.Mutex
	steps map[string]string // step name -> pbs job id

	limiter *rate.Limiter

	runQuery func(jobIDs []string) (string, error)
}

// NewPBS returns a PBS launcher whose qstat queries are limited to one per
// minInterval.
func NewPBS(minInterval time.Duration) *PBS {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &PBS{
		steps:    make(map[string]string),
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
		runQuery: runQstat,
	}
}

// Family implements Launcher.
func (p *PBS) Family() Family {
	return FamilyWLM
}

// RegisterStep records the PBS job id assigned to a submitted step.
func (p *PBS) RegisterStep(name, jobID string) {
	p.mu.Lock()
	p.steps[name] = jobID
	p.mu.Unlock()
}

// GetStepUpdate implements Launcher with a single batched qstat query.
func (p *PBS) GetStepUpdate(names []string) ([]StatusReport, error) {
	p.mu.Lock()
	jobIDs := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := p.steps[name]
		if !ok {
			p.mu.Unlock()
			return nil, &UnknownStepError{Name: name}
		}
		jobIDs = append(jobIDs, id)
	}
	p.mu.Unlock()

	if len(jobIDs) == 0 {
		return nil, nil
	}

	if err := p.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}
	out, err := p.runQuery(jobIDs)
	if err != nil {
		return nil, fmt.Errorf("qstat query: %w", err)
	}

	byID := parseQstat(out)
	reports := make([]StatusReport, 0, len(names))
	for _, id := range jobIDs {
		entry, ok := byID[id]
		if !ok {
			// Finished jobs age out of qstat quickly; treat a missing
			// record as completed with an unknown-but-zero exit.
			code := 0
			reports = append(reports, StatusReport{
				Status:         StatusCompleted,
				LauncherStatus: "NOTFOUND",
				ReturnCode:     &code,
			})
			continue
		}
		report := StatusReport{
			Status:         mapPBSState(entry.state, entry.exitStatus),
			LauncherStatus: entry.state,
		}
		if report.Status.Terminal() && entry.exitStatus != nil {
			report.ReturnCode = entry.exitStatus
		}
		reports = append(reports, report)
	}
	return reports, nil
}

type qstatEntry struct {
	state      string
	exitStatus *int
}

// parseQstat reads `qstat -x -f` full output, keyed by the "Job Id:" header
// lines, extracting job_state and Exit_status attributes.
func parseQstat(out string) map[string]qstatEntry {
	entries := make(map[string]qstatEntry)
	var current string
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Job Id:") {
			current = strings.TrimSpace(strings.TrimPrefix(trimmed, "Job Id:"))
			entries[current] = qstatEntry{}
			continue
		}
		if current == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "job_state =") {
			e := entries[current]
			e.state = strings.TrimSpace(strings.TrimPrefix(trimmed, "job_state ="))
			entries[current] = e
		}
		if strings.HasPrefix(trimmed, "Exit_status =") {
			if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(trimmed, "Exit_status ="))); err == nil {
				e := entries[current]
				e.exitStatus = &n
				entries[current] = e
			}
		}
	}
	return entries
}

func mapPBSState(state string, exitStatus *int) JobStatus {
	switch state {
	case "Q", "W", "T":
		return StatusNew
	case "R", "E":
		return StatusRunning
	case "H", "S":
		return StatusPaused
	case "F":
		if exitStatus != nil && *exitStatus != 0 {
			return StatusFailed
		}
		return StatusCompleted
	}
	return StatusRunning
}

func runQstat(jobIDs []string) (string, error) {
	args := append([]string{"-x", "-f"}, jobIDs...)
	out, err := exec.Command("qstat", args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
