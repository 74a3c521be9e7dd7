package jobmanager

import (
	"time"

	"go.uber.org/zap"

	"github.com/hpcforge/simrun/pkg/launcher"
)

// Start transitions the manager from Stopped to Monitoring and launches the
// background polling goroutine. Starting an already monitoring manager is a
// no-op.
//
// The loop self-terminates once no jobs remain tracked; it never restarts
// itself. After the tracked set drains, a later AddJob must be followed by
// another Start call to resume monitoring.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.state == StateMonitoring {
		m.mu.Unlock()
		return
	}
	m.state = StateMonitoring
	m.mu.Unlock()

	go m.run()
}

func (m *Manager) run() {
	m.log.Debug("starting job monitor")

	for {
		time.Sleep(m.pollInterval())

		if err := m.CheckJobs(); err != nil {
			// A failed poll is retried next cycle; one bad round trip
			// must not kill monitoring.
			m.log.Warn("job status poll failed", zap.Error(err))
			continue
		}

		// The completion sweep runs outside the lock; CheckJobs and each
		// MoveToCompleted are individually atomic.
		for _, job := range m.activeSnapshot() {
			if !job.Status.Terminal() || job.ReturnCode == nil {
				continue
			}
			if *job.ReturnCode != 0 {
				m.log.Warn(job.String())
				m.log.Warn(job.ErrorReport())
			} else {
				m.log.Info(job.String())
			}
			if err := m.MoveToCompleted(job.Entity.Name()); err != nil {
				m.log.Warn("failed to complete job",
					zap.String("entity", job.Entity.Name()),
					zap.Error(err))
			}
		}

		if m.Len() == 0 {
			m.mu.Lock()
			m.state = StateStopped
			m.mu.Unlock()
			m.log.Debug("no jobs left to monitor, stopping")
			return
		}
	}
}

func (m *Manager) activeSnapshot() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

func (m *Manager) pollInterval() time.Duration {
	if m.launcher != nil && m.launcher.Family() == launcher.FamilyWLM {
		return m.cfg.WLMInterval
	}
	return m.cfg.LocalInterval
}
