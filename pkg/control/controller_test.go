package control

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hpcforge/simrun/pkg/entity"
	"github.com/hpcforge/simrun/pkg/events"
	"github.com/hpcforge/simrun/pkg/launcher"
	"github.com/hpcforge/simrun/pkg/manifest"
	"github.com/hpcforge/simrun/pkg/strategy"
)

func testConfig() Config {
	return Config{
		Launcher:      "local",
		LocalInterval: 10 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func sweepManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m := &manifest.Manifest{
		Version:    "1.0",
		Experiment: manifest.ExperimentConfig{Name: "sweep", Path: t.TempDir()},
		Applications: []manifest.ApplicationConfig{
			{
				Name: "sim",
				Exe:  "echo",
				Ensemble: &manifest.EnsembleConfig{
					Params: map[string][]string{"STEPS": {"10", "20"}},
				},
			},
		},
	}
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		t.Fatalf("manifest invalid: %v", err)
	}
	return m
}

func TestNew_RejectsUnknownLauncher(t *testing.T) {
	_, err := New(Config{Launcher: "lsf"})
	if !strategy.IsConfigurationError(err) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

func TestLaunch_EnsembleEndToEnd(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := sweepManifest(t)

	if err := c.Launch(m); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return c.manager.Len() == 0 })

	for _, name := range []string{"sim_0", "sim_1"} {
		if !c.manager.IsFinished(name) {
			t.Fatalf("%s not finished", name)
		}
		job, err := c.manager.Get(name)
		if err != nil {
			t.Fatalf("Get %s: %v", name, err)
		}
		if job.Status != launcher.StatusCompleted {
			t.Fatalf("%s status = %s", name, job.Status)
		}
		if _, err := os.Stat(filepath.Join(m.Experiment.Path, name, name+".out")); err != nil {
			t.Fatalf("%s stdout capture missing: %v", name, err)
		}
	}
}

func TestLaunch_StagesAttachedFiles(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m := sweepManifest(t)
	input := filepath.Join(m.Experiment.Path, "input.dat")
	if err := os.WriteFile(input, []byte("payload"), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	m.Applications[0].Files.Copy = []string{"input.dat"}

	if err := c.Launch(m); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return c.manager.Len() == 0 })

	// Ensemble members inherit the parent config's attached files.
	for _, name := range []string{"sim_0", "sim_1"} {
		if _, err := os.Stat(filepath.Join(m.Experiment.Path, name, "input.dat")); err != nil {
			t.Fatalf("input not staged into %s: %v", name, err)
		}
	}
}

func TestLaunch_UnknownStrategy(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := sweepManifest(t)
	m.Applications[0].Ensemble.Strategy = "bogus"

	if err := c.Launch(m); !strategy.IsConfigurationError(err) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if c.manager.Len() != 0 {
		t.Fatal("no jobs should be tracked after a failed launch")
	}
}

func TestLaunch_RelaunchRestartsCompletedJobs(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := sweepManifest(t)

	if err := c.Launch(m); err != nil {
		t.Fatalf("first Launch: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return c.manager.Len() == 0 })

	if err := c.Launch(m); err != nil {
		t.Fatalf("second Launch: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return c.manager.Len() == 0 })

	job, err := c.manager.Get("sim_0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// The run index is zero-based; one restart advances it to 1, with run 0
	// still recorded in history.
	if job.History.Runs != 1 {
		t.Fatalf("run index = %d, want 1 after one restart", job.History.Runs)
	}
	if _, ok := job.History.Statuses[0]; !ok {
		t.Fatal("first run should remain recorded under index 0")
	}
}

func TestStop_CancelsRunningJob(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m := &manifest.Manifest{
		Version:    "1.0",
		Experiment: manifest.ExperimentConfig{Name: "long", Path: t.TempDir()},
		Applications: []manifest.ApplicationConfig{
			{Name: "napper", Exe: "sleep", ExeArgs: []string{"60"}},
		},
	}
	m.ApplyDefaults()

	if err := c.Launch(m); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	// Keep readers hot while cancelling; every mutation must stay behind
	// the manager lock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			c.manager.Snapshot()
		}
	}()
	if err := c.Stop("napper"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	<-done

	sum, err := c.manager.Summary("napper")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Status != launcher.StatusCancelled {
		t.Fatalf("status = %s, want %s", sum.Status, launcher.StatusCancelled)
	}
	if !c.manager.IsFinished("napper") {
		t.Fatal("cancelled job should be in the completed set")
	}
}

func TestAttachStep_RegistersWithManager(t *testing.T) {
	c, err := New(Config{Launcher: "slurm", WLMQueryInterval: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	app, err := entity.NewApplication("external", "echo", nil, nil, nil)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	c.AttachStep("external-0", "4217", app, entity.KindApplication)

	sum, err := c.manager.Summary("external")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.JID != "4217" {
		t.Fatalf("jid = %s, want 4217", sum.JID)
	}
}

func TestLaunch_EmitsLifecycleEvents(t *testing.T) {
	var buf syncBuffer
	cfg := testConfig()
	cfg.Events = events.NewJSONLWriter(&buf, "sweep", "local")

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Launch(sweepManifest(t)); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	c.Poll(10*time.Millisecond, false)

	counts := map[string]int{}
	scanner := bufio.NewScanner(strings.NewReader(buf.String()))
	for scanner.Scan() {
		var rec events.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("bad event line: %v", err)
		}
		counts[rec.Type]++
	}

	if counts[events.TypeLaunch] != 2 {
		t.Fatalf("expected 2 launch events, got %d", counts[events.TypeLaunch])
	}
	if counts[events.TypeCompleted] != 2 {
		t.Fatalf("expected 2 completed events, got %d", counts[events.TypeCompleted])
	}
	if counts[events.TypeSummary] != 1 {
		t.Fatalf("expected 1 summary event, got %d", counts[events.TypeSummary])
	}
}

// syncBuffer guards a bytes.Buffer; the monitor goroutine and Poll both
// write events.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLaunch_WLMLaunchersRequireAttach(t *testing.T) {
	c, err := New(Config{Launcher: "pbs", WLMQueryInterval: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Launch(sweepManifest(t)); !strategy.IsConfigurationError(err) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}
