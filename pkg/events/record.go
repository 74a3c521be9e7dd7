// Package events provides JSONL output for experiment lifecycle events.
//
// Events are structured as typed record envelopes containing launches,
// status transitions, completions, and the final summary. Each line is a
// self-contained JSON object that can be parsed independently, so run logs
// can be tailed or post-processed with standard tooling.
package events

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: simrun.<type>.v<version>
const (
	// TypeLaunch identifies step launch records.
	TypeLaunch = "simrun.launch.v1"

	// TypeStatus identifies status transition records.
	TypeStatus = "simrun.status.v1"

	// TypeCompleted identifies job completion records.
	TypeCompleted = "simrun.completed.v1"

	// TypeRestart identifies job restart records.
	TypeRestart = "simrun.restart.v1"

	// TypeSummary identifies final experiment summary records.
	TypeSummary = "simrun.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line contains a Record with a type-specific payload in the Data
// field. The type field determines how to interpret the payload.
type Record struct {
	// Type identifies the record type (e.g., "simrun.launch.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// Experiment is the experiment name the record belongs to.
	Experiment string `json:"experiment"`

	// Launcher identifies the launcher backend (e.g., "local", "slurm").
	Launcher string `json:"launcher"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// LaunchRecord is the data payload for a started step.
type LaunchRecord struct {
	// Entity is the launched entity's name.
	Entity string `json:"entity"`

	// StepName is the launcher step name.
	StepName string `json:"step_name"`

	// JID is the launcher-assigned job id.
	JID string `json:"jid"`

	// Kind distinguishes applications from feature-store jobs.
	Kind string `json:"kind"`

	// RunDir is the staged run directory.
	RunDir string `json:"run_dir,omitempty"`
}

// StatusRecord is the data payload for a status transition.
type StatusRecord struct {
	Entity string `json:"entity"`
	Status string `json:"status"`

	// LauncherStatus is the raw status string from the launcher, when the
	// backend provides one (e.g., sacct state).
	LauncherStatus string `json:"launcher_status,omitempty"`
}

// CompletedRecord is the data payload for a finished job.
type CompletedRecord struct {
	Entity     string `json:"entity"`
	Status     string `json:"status"`
	ReturnCode *int   `json:"return_code,omitempty"`

	// Runs is the zero-based run index at completion: 0 unless the job
	// was restarted.
	Runs int `json:"runs"`
}

// RestartRecord is the data payload for a relaunched entity.
type RestartRecord struct {
	Entity string `json:"entity"`

	// StepName and JID identify the new step.
	StepName string `json:"step_name"`
	JID      string `json:"jid"`

	// PriorRuns is the number of completed runs before this restart.
	PriorRuns int `json:"prior_runs"`
}

// SummaryRecord is the data payload emitted once the active set drains.
type SummaryRecord struct {
	// JobsCompleted is the number of jobs that reached COMPLETED.
	JobsCompleted int `json:"jobs_completed"`

	// JobsFailed is the number of jobs that reached FAILED or CANCELLED.
	JobsFailed int `json:"jobs_failed"`

	// Duration is the wall time from launch to drain.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "events: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
