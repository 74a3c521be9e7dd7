package jobmanager

import (
	"sort"

	"github.com/hpcforge/simrun/pkg/entity"
	"github.com/hpcforge/simrun/pkg/launcher"
)

// JobSummary is an immutable view of one job for CLI tables and the admin
// API. Copies are taken under the manager lock.
type JobSummary struct {
	EntityName string             `json:"entity"`
	StepName   string             `json:"step"`
	JID        string             `json:"job_id"`
	Kind       entity.Kind        `json:"kind"`
	Status     launcher.JobStatus `json:"status"`
	ReturnCode *int               `json:"returncode,omitempty"`
	Hosts      []string           `json:"hosts,omitempty"`
	// Runs is the zero-based run index; restarts increment it.
	Runs       int                `json:"runs"`
	Completed  bool               `json:"completed"`
}

// Summary returns an immutable view of one entity's job, whichever
// collection currently holds it.
func (m *Manager) Summary(entityName string) (JobSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(entityName)
	if err != nil {
		return JobSummary{}, err
	}
	_, completed := m.completed[entityName]
	return summarize(job, completed), nil
}

// Snapshot returns summaries of every tracked job: applications, feature
// stores, then completed, each in name order.
func (m *Manager) Snapshot() []JobSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]JobSummary, 0, len(m.jobs)+len(m.dbJobs)+len(m.completed))
	for _, job := range m.activeLocked() {
		out = append(out, summarize(job, false))
	}
	for _, name := range sortedJobNames(m.completed) {
		out = append(out, summarize(m.completed[name], true))
	}
	return out
}

func summarize(job *Job, completed bool) JobSummary {
	var rc *int
	if job.ReturnCode != nil {
		v := *job.ReturnCode
		rc = &v
	}
	return JobSummary{
		EntityName: job.Entity.Name(),
		StepName:   job.Name,
		JID:        job.JID,
		Kind:       job.Kind,
		Status:     job.Status,
		ReturnCode: rc,
		Hosts:      append([]string(nil), job.Hosts...),
		Runs:       job.History.Runs,
		Completed:  completed,
	}
}

func sortedJobNames(jobs map[string]*Job) []string {
	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
