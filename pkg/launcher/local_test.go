package launcher

import (
	"path/filepath"
	"testing"
	"time"
)

func startTestStep(t *testing.T, l *Local, name string, script string) string {
	t.Helper()
	dir := t.TempDir()
	id, err := l.Start(Step{
		Name:    name,
		Exe:     "/bin/sh",
		Args:    []string{"-c", script},
		Cwd:     dir,
		OutFile: filepath.Join(dir, name+".out"),
		ErrFile: filepath.Join(dir, name+".err"),
	})
	if err != nil {
		t.Fatalf("Start(%s) error: %v", name, err)
	}
	return id
}

func waitForTerminal(t *testing.T, l *Local, name string) StatusReport {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		reports, err := l.GetStepUpdate([]string{name})
		if err != nil {
			t.Fatalf("GetStepUpdate error: %v", err)
		}
		if reports[0].Status.Terminal() {
			return reports[0]
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("step %s never reached a terminal status", name)
	return StatusReport{}
}

func TestLocal_CompletedStep(t *testing.T) {
	l := NewLocal()
	id := startTestStep(t, l, "ok-step", "exit 0")
	if id == "" {
		t.Fatal("expected a non-empty step id")
	}

	report := waitForTerminal(t, l, "ok-step")
	if report.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", report.Status, StatusCompleted)
	}
	if report.ReturnCode == nil || *report.ReturnCode != 0 {
		t.Fatalf("unexpected return code: %v", report.ReturnCode)
	}
}

func TestLocal_FailedStepReportsExitCode(t *testing.T) {
	l := NewLocal()
	startTestStep(t, l, "bad-step", "exit 3")

	report := waitForTerminal(t, l, "bad-step")
	if report.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", report.Status, StatusFailed)
	}
	if report.ReturnCode == nil || *report.ReturnCode != 3 {
		t.Fatalf("unexpected return code: %v", report.ReturnCode)
	}
}

func TestLocal_ReportsOrderMatchesNames(t *testing.T) {
	l := NewLocal()
	startTestStep(t, l, "a", "exit 0")
	startTestStep(t, l, "b", "exit 1")

	waitForTerminal(t, l, "a")
	waitForTerminal(t, l, "b")

	reports, err := l.GetStepUpdate([]string{"b", "a"})
	if err != nil {
		t.Fatalf("GetStepUpdate error: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Status != StatusFailed || reports[1].Status != StatusCompleted {
		t.Fatalf("reports not positionally aligned: %v / %v", reports[0].Status, reports[1].Status)
	}
}

func TestLocal_UnknownStep(t *testing.T) {
	l := NewLocal()
	_, err := l.GetStepUpdate([]string{"ghost"})
	if err == nil {
		t.Fatal("expected an error for an unknown step")
	}
	if _, ok := err.(*UnknownStepError); !ok {
		t.Fatalf("expected UnknownStepError, got %T", err)
	}
}
