package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// Store owns the on-disk run ledger for one experiment.
//
// Layout under root (normally <experiment>/.simrun/runs):
//
//	<run_id>/run.json      current RunRecord, rewritten whole on change
//	<run_id>/events.jsonl  lifecycle event log appended during the run
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

// RunDir returns the directory holding one run's record and event log.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.root, runID)
}

// EventsPath returns where a run's lifecycle event log lives.
func (s *Store) EventsPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "events.jsonl")
}

func (s *Store) recordPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "run.json")
}

// Write persists a record. The record is staged under a temp name and
// renamed into place so a concurrent reader never sees a torn run.json.
func (s *Store) Write(record *RunRecord) error {
	switch {
	case record == nil:
		return fmt.Errorf("nil run record")
	case strings.TrimSpace(record.RunID) == "":
		return fmt.Errorf("run record has no run_id")
	case s.root == "":
		return fmt.Errorf("run store has no root directory")
	}
	runID := strings.TrimSpace(record.RunID)

	if err := os.MkdirAll(s.RunDir(runID), 0755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	final := s.recordPath(runID)
	staged := fmt.Sprintf("%s.%d.tmp", final, os.Getpid())
	if err := os.WriteFile(staged, append(b, '\n'), 0644); err != nil {
		return fmt.Errorf("stage run record: %w", err)
	}
	if err := os.Rename(staged, final); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("commit run record: %w", err)
	}
	return nil
}

func (s *Store) Get(runID string) (*RunRecord, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	f, err := os.Open(s.recordPath(runID))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var record RunRecord
	if err := json.NewDecoder(f).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode run record %s: %w", runID, err)
	}
	s.demoteIfOrphaned(&record)
	return &record, nil
}

// demoteIfOrphaned downgrades a record that claims to be running after its
// launcher process died. Nobody is left to finish the run, so the final
// job outcomes are unknowable.
func (s *Store) demoteIfOrphaned(record *RunRecord) {
	if record.State != RunStateRunning || record.PID <= 0 {
		return
	}
	if processAlive(record.PID) {
		return
	}
	record.State = RunStateUnknown
	now := time.Now().UTC()
	record.EndedAt = &now
	_ = s.Write(record)
}

// List returns every readable run record under the root, newest first.
// Unreadable or foreign entries are skipped rather than failing the whole
// listing.
func (s *Store) List() ([]RunRecord, error) {
	if s.root == "" {
		return nil, fmt.Errorf("run store has no root directory")
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read run store root: %w", err)
	}

	var runs []RunRecord
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if r, err := s.Get(e.Name()); err == nil {
			runs = append(runs, *r)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].sortTime().After(runs[j].sortTime())
	})
	return runs, nil
}

func (r RunRecord) sortTime() time.Time {
	if r.StartedAt != nil {
		return *r.StartedAt
	}
	return r.CreatedAt
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks existence without delivering anything.
	return p.Signal(syscall.Signal(0)) == nil
}
