// Package runstore persists experiment run records so past launches can be
// inspected after the process that ran them exits.
package runstore

import "time"

// RunState is the lifecycle state of an experiment run.
//
// NOTE: These values are persisted in run.json and are part of the stable
// on-disk contract.
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateSuccess RunState = "success"
	RunStatePartial RunState = "partial"
	RunStateFailed  RunState = "failed"
	RunStateStopped RunState = "stopped"
	RunStateUnknown RunState = "unknown"
)

// JobOutcome is the per-entity result recorded when a run finishes.
type JobOutcome struct {
	Entity     string `json:"entity"`
	StepName   string `json:"step_name"`
	JID        string `json:"jid"`
	Status     string `json:"status"`
	ReturnCode *int   `json:"return_code,omitempty"`
	Runs       int    `json:"runs,omitempty"`
}

// RunRecord is the persistent record written to run.json.
//
// The schema is designed for backward-compatible extension (additive
// fields).
type RunRecord struct {
	RunID        string   `json:"run_id"`
	Experiment   string   `json:"experiment"`
	State        RunState `json:"state"`
	Launcher     string   `json:"launcher"`
	ManifestPath string   `json:"manifest_path,omitempty"`
	PID          int      `json:"pid,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Jobs []JobOutcome `json:"jobs,omitempty"`

	EventsPath string `json:"events_path,omitempty"`
}
