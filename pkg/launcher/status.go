package launcher

// JobStatus is the lifecycle status of a launched step as seen by simrun.
//
// The vocabulary is open: launchers may report additional values, but the
// constants below are the ones the job manager reasons about.
type JobStatus string

const (
	StatusNew       JobStatus = "NEW"
	StatusRunning   JobStatus = "RUNNING"
	StatusPaused    JobStatus = "PAUSED"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
	StatusCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether the status indicates the job will not progress
// further.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
