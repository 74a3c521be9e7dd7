// Package jobmanager tracks the lifecycle of every step simrun launches.
//
// The Manager owns three collections of Jobs (applications, feature-store
// jobs, completed) behind one mutex and runs a single background polling
// goroutine that batches status queries to the launcher and migrates
// terminal jobs into the completed set.
package jobmanager

import (
	"fmt"
	"strings"

	"github.com/hpcforge/simrun/pkg/entity"
	"github.com/hpcforge/simrun/pkg/launcher"
)

// Job is one active or completed launch of an entity.
//
// A Job is mutated only by the Manager while its lock is held; callers get
// copies or read fields through Manager accessors.
type Job struct {
	// Name is the step name registered with the launcher.
	Name string

	// JID is the launcher-assigned identifier, reassigned on restart.
	JID string

	// Entity is the descriptor this job was launched from. The job does
	// not own the entity's lifecycle.
	Entity entity.Entity

	// Kind records whether this is an application or feature-store job,
	// decided by the caller at registration.
	Kind entity.Kind

	// Status is the current lifecycle status for the active run.
	Status launcher.JobStatus

	// ReturnCode is set once a terminal (or late running) status report
	// carries one.
	ReturnCode *int

	// Error and Output are the stderr/stdout capture locations from the
	// most recent status report.
	Error  string
	Output string

	// Hosts are the resolved network hosts for feature-store jobs,
	// recorded once launch is confirmed.
	Hosts []string

	// History is the append-only record of this job slot's past runs.
	History *History
}

// NewJob builds a Job in status NEW with an empty history.
func NewJob(stepName, jid string, ent entity.Entity, kind entity.Kind) *Job {
	return &Job{
		Name:    stepName,
		JID:     jid,
		Entity:  ent,
		Kind:    kind,
		Status:  launcher.StatusNew,
		History: NewHistory(),
	}
}

// SetStatus overwrites the job's live status fields from a launcher report.
func (j *Job) SetStatus(status launcher.JobStatus, returnCode *int, errFile, outFile string) {
	j.Status = status
	j.ReturnCode = returnCode
	j.Error = errFile
	j.Output = outFile
}

// RecordHistory appends the job's current state to its history under the
// current run index.
func (j *Job) RecordHistory() {
	j.History.Record(j.JID, j.Status, j.ReturnCode, j.Error, j.Output)
}

// Reset prepares the job for relaunch under a new step name and id: live
// state is cleared, status returns to NEW, and the history advances to a
// fresh run index so the prior run's record survives.
func (j *Job) Reset(newStepName, newJID string) {
	j.Name = newStepName
	j.JID = newJID
	j.Status = launcher.StatusNew
	j.ReturnCode = nil
	j.Error = ""
	j.Output = ""
	j.Hosts = nil
	j.History.NewRun()
}

// ErrorReport renders a structured description of a failed job for
// operator-facing warning logs.
func (j *Job) ErrorReport() string {
	rc := "unknown"
	if j.ReturnCode != nil {
		rc = fmt.Sprintf("%d", *j.ReturnCode)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed. See below for details\n", j.Name)
	fmt.Fprintf(&b, "%s %s produced the following error\n", j.Entity.Type(), j.Name)
	fmt.Fprintf(&b, "Error: %s\n", j.Error)
	fmt.Fprintf(&b, "Output: %s\n", j.Output)
	fmt.Fprintf(&b, "Job status at failure: %s\n", j.Status)
	fmt.Fprintf(&b, "Job returncode: %s\n", rc)
	fmt.Fprintf(&b, "For more information on the error, check the files below:\n")
	fmt.Fprintf(&b, "%s error file: %s\n", j.Entity.Type(), j.Entity.RunSetting("err_file"))
	fmt.Fprintf(&b, "%s output file: %s\n", j.Entity.Type(), j.Entity.RunSetting("out_file"))
	return b.String()
}

func (j *Job) String() string {
	return fmt.Sprintf("%s(%s): %s", j.Name, j.JID, j.Status)
}

// History is the append-only per-run record for one logical job slot.
// Indices are never reused or removed.
type History struct {
	// Runs is the zero-based index of the current run. Reset advances it;
	// a job that never restarted stays at 0.
	Runs int

	JIDs        map[int]string
	Statuses    map[int]launcher.JobStatus
	ReturnCodes map[int]*int
	Errors      map[int]string
	Outputs     map[int]string
}

// NewHistory returns an empty history at run index 0.
func NewHistory() *History {
	return &History{
		JIDs:        make(map[int]string),
		Statuses:    make(map[int]launcher.JobStatus),
		ReturnCodes: make(map[int]*int),
		Errors:      make(map[int]string),
		Outputs:     make(map[int]string),
	}
}

// Record stores the given state under the current run index.
func (h *History) Record(jid string, status launcher.JobStatus, returnCode *int, errFile, outFile string) {
	h.JIDs[h.Runs] = jid
	h.Statuses[h.Runs] = status
	h.ReturnCodes[h.Runs] = returnCode
	h.Errors[h.Runs] = errFile
	h.Outputs[h.Runs] = outFile
}

// NewRun advances the run index.
func (h *History) NewRun() {
	h.Runs++
}
