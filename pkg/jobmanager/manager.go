package jobmanager

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpcforge/simrun/pkg/entity"
	"github.com/hpcforge/simrun/pkg/launcher"
)

// State is the monitoring state of the Manager's polling loop.
type State string

const (
	// StateStopped means no polling goroutine is running. Start must be
	// called (again) to resume monitoring after new jobs are added.
	StateStopped State = "stopped"

	// StateMonitoring means the background polling goroutine is live.
	StateMonitoring State = "monitoring"
)

// Config carries Manager tuning.
type Config struct {
	// LocalInterval is the poll cadence for local launchers.
	LocalInterval time.Duration

	// WLMInterval is the poll cadence for workload-manager launchers,
	// kept long to bound scheduler load.
	WLMInterval time.Duration

	// Logger receives job lifecycle logs. Nil means no logging.
	Logger *zap.Logger
}

// DefaultConfig returns the default poll cadences.
func DefaultConfig() Config {
	return Config{
		LocalInterval: time.Second,
		WLMInterval:   10 * time.Second,
	}
}

// Manager tracks every launched job and polls the launcher for status.
//
// Exactly two threads of control touch a Manager: the caller's and the one
// background polling goroutine started by Start. All three job collections
// and every Job reachable from them are guarded by a single non-reentrant
// mutex; public methods hold it for their full duration and never call back
// into other locking methods.
type Manager struct {
	mu        sync.Mutex
	jobs      map[string]*Job // active application jobs, by entity name
	dbJobs    map[string]*Job // active feature-store jobs, by entity name
	completed map[string]*Job // terminal jobs, by entity name

	state State

	launcher launcher.Launcher
	cfg      Config
	log      *zap.Logger

	// resolveHost is swappable for tests; defaults to a DNS lookup.
	resolveHost func(host string) (string, error)
}

// New returns a Manager polling the given launcher.
func New(l launcher.Launcher, cfg Config) *Manager {
	if cfg.LocalInterval <= 0 {
		cfg.LocalInterval = DefaultConfig().LocalInterval
	}
	if cfg.WLMInterval <= 0 {
		cfg.WLMInterval = DefaultConfig().WLMInterval
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		jobs:        make(map[string]*Job),
		dbJobs:      make(map[string]*Job),
		completed:   make(map[string]*Job),
		state:       StateStopped,
		launcher:    l,
		cfg:         cfg,
		log:         log,
		resolveHost: lookupHost,
	}
}

// AddJob registers a launched step under its entity's name.
//
// The kind decides which active collection holds the job; the manager never
// inspects entity types. A name collision silently overwrites the prior
// job: callers must ensure entity names are unique before insertion.
func (m *Manager) AddJob(stepName, jid string, ent entity.Entity, kind entity.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := NewJob(stepName, jid, ent, kind)
	if kind == entity.KindFeatureStore {
		m.dbJobs[ent.Name()] = job
	} else {
		m.jobs[ent.Name()] = job
	}
}

// Get returns the job for an entity name, searching feature-store jobs,
// application jobs, then completed jobs. ErrNotFound if absent from all
// three.
func (m *Manager) Get(entityName string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(entityName)
}

func (m *Manager) getLocked(entityName string) (*Job, error) {
	if job, ok := m.dbJobs[entityName]; ok {
		return job, nil
	}
	if job, ok := m.jobs[entityName]; ok {
		return job, nil
	}
	if job, ok := m.completed[entityName]; ok {
		return job, nil
	}
	return nil, fmt.Errorf("%q: %w", entityName, ErrNotFound)
}

// Status returns the current status for an entity's job.
func (m *Manager) Status(entityName string) (launcher.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(entityName)
	if err != nil {
		return "", &EntityNotLaunchedError{Name: entityName}
	}
	return job.Status, nil
}

// IsFinished reports whether an entity's job is both in the completed set
// and carries a terminal status. The double check guards the window between
// a terminal status report and the completion move.
func (m *Manager) IsFinished(entityName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.completed[entityName]
	return ok && job.Status.Terminal()
}

// CheckJobs snapshots every active job, requests one batched status update
// from the launcher, and applies the reports positionally.
//
// The launcher contract requires reports aligned in order and count with
// the requested names; a short response only updates the jobs it covers.
func (m *Manager) CheckJobs() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := m.activeLocked()
	if len(active) == 0 {
		return nil
	}
	names := make([]string, len(active))
	for i, job := range active {
		names[i] = job.Name
	}

	reports, err := m.launcher.GetStepUpdate(names)
	if err != nil {
		return fmt.Errorf("status update for %d jobs: %w", len(names), err)
	}
	for i, report := range reports {
		if i >= len(active) {
			break
		}
		active[i].SetStatus(report.Status, report.ReturnCode, report.Error, report.Output)
	}
	return nil
}

// MoveToCompleted records history for a terminal job and migrates it from
// its active collection into the completed set.
func (m *Manager) MoveToCompleted(entityName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.dbJobs[entityName]
	if ok {
		delete(m.dbJobs, entityName)
	} else if job, ok = m.jobs[entityName]; ok {
		delete(m.jobs, entityName)
	} else {
		return fmt.Errorf("%q: %w", entityName, ErrNotFound)
	}

	job.RecordHistory()
	m.completed[entityName] = job
	return nil
}

// CancelJob marks an entity's job cancelled with the given return code,
// records history, and retires it into the completed set, all in one
// critical section. If the polling loop already retired the job, its final
// status is rewritten in place.
func (m *Manager) CancelJob(entityName string, returnCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rc := returnCode
	if job, ok := m.completed[entityName]; ok {
		job.SetStatus(launcher.StatusCancelled, &rc, job.Error, job.Output)
		job.RecordHistory()
		return nil
	}

	job, ok := m.dbJobs[entityName]
	if ok {
		delete(m.dbJobs, entityName)
	} else if job, ok = m.jobs[entityName]; ok {
		delete(m.jobs, entityName)
	} else {
		return fmt.Errorf("%q: %w", entityName, ErrNotFound)
	}
	job.SetStatus(launcher.StatusCancelled, &rc, job.Error, job.Output)
	job.RecordHistory()
	m.completed[entityName] = job
	return nil
}

// QueryRestart reports whether a prior completed run exists for the entity,
// i.e. whether a relaunch should go through RestartJob.
func (m *Manager) QueryRestart(entityName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.completed[entityName]
	return ok
}

// RestartJob resets a completed job for relaunch under a new step name and
// id and moves it back into its active collection.
func (m *Manager) RestartJob(stepName, jid, entityName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.completed[entityName]
	if !ok {
		return &NotCompletedError{Name: entityName}
	}
	delete(m.completed, entityName)
	job.Reset(stepName, jid)
	if job.Kind == entity.KindFeatureStore {
		m.dbJobs[entityName] = job
	} else {
		m.jobs[entityName] = job
	}
	return nil
}

// SetFeatureStoreHosts records the hosts assigned to a launched feature
// store so clients can be pointed at it. Must be called after launch is
// confirmed and before FeatureStoreAddresses.
//
// In batch mode the store's single job gets every assigned host; otherwise
// each node job gets its own host.
func (m *Manager) SetFeatureStoreHosts(fs *entity.FeatureStore) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fs.Batch {
		job, ok := m.dbJobs[fs.Name()]
		if !ok {
			return fmt.Errorf("%q: %w", fs.Name(), ErrNotFound)
		}
		job.Hosts = append([]string(nil), fs.Hosts...)
		return nil
	}
	for _, node := range fs.Nodes() {
		job, ok := m.dbJobs[node.Name()]
		if !ok {
			return fmt.Errorf("%q: %w", node.Name(), ErrNotFound)
		}
		job.Hosts = []string{node.Host}
	}
	return nil
}

// FeatureStoreAddresses returns every ip:port pair across all tracked
// feature-store jobs: the cartesian product of each job's resolved hosts
// with its configured ports.
func (m *Manager) FeatureStoreAddresses() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.dbJobs))
	for name := range m.dbJobs {
		names = append(names, name)
	}
	sort.Strings(names)

	var addresses []string
	for _, name := range names {
		job := m.dbJobs[name]
		ports := featureStorePorts(job.Entity)
		for _, host := range job.Hosts {
			ip, err := m.resolveHost(host)
			if err != nil {
				return nil, fmt.Errorf("resolve feature store host %q: %w", host, err)
			}
			for _, port := range ports {
				addresses = append(addresses, fmt.Sprintf("%s:%d", ip, port))
			}
		}
	}
	return addresses, nil
}

// Len returns the number of actively tracked jobs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs) + len(m.dbJobs)
}

// State returns the monitoring state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// activeLocked returns active jobs in deterministic name order,
// applications first, then feature-store jobs.
func (m *Manager) activeLocked() []*Job {
	names := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Job, 0, len(m.jobs)+len(m.dbJobs))
	for _, name := range names {
		out = append(out, m.jobs[name])
	}

	dbNames := make([]string, 0, len(m.dbJobs))
	for name := range m.dbJobs {
		dbNames = append(dbNames, name)
	}
	sort.Strings(dbNames)
	for _, name := range dbNames {
		out = append(out, m.dbJobs[name])
	}
	return out
}

func featureStorePorts(ent entity.Entity) []int {
	switch fs := ent.(type) {
	case *entity.FeatureStoreNode:
		return fs.Ports
	case *entity.FeatureStore:
		return fs.Ports
	}
	return nil
}

func lookupHost(host string) (string, error) {
	addrs, err := net.LookupHost(host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses for host %q", host)
	}
	return addrs[0], nil
}
