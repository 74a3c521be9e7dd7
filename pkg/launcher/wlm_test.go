package launcher

import (
	"testing"
	"time"
)

func TestSlurm_BatchedUpdate(t *testing.T) {
	s := NewSlurm(time.Millisecond)
	s.RegisterStep("sim-0", "1001")
	s.RegisterStep("sim-1", "1002")
	s.RegisterStep("sim-2", "1003")

	queries := 0
	s.runQuery = func(jobIDs []string) (string, error) {
		queries++
		if len(jobIDs) != 3 {
			t.Fatalf("expected one batched query for 3 jobs, got %v", jobIDs)
		}
		return "1001|COMPLETED|0:0|\n" +
			"1002|FAILED|1:0|\n" +
			"1003|RUNNING|0:0|\n", nil
	}

	reports, err := s.GetStepUpdate([]string{"sim-0", "sim-1", "sim-2"})
	if err != nil {
		t.Fatalf("GetStepUpdate error: %v", err)
	}
	if queries != 1 {
		t.Fatalf("expected exactly one sacct invocation, got %d", queries)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}

	if reports[0].Status != StatusCompleted || *reports[0].ReturnCode != 0 {
		t.Fatalf("sim-0 report: %+v", reports[0])
	}
	if reports[1].Status != StatusFailed || *reports[1].ReturnCode != 1 {
		t.Fatalf("sim-1 report: %+v", reports[1])
	}
	if reports[2].Status != StatusRunning || reports[2].ReturnCode != nil {
		t.Fatalf("sim-2 report: %+v", reports[2])
	}
}

func TestSlurm_MissingRecordMeansQueued(t *testing.T) {
	s := NewSlurm(time.Millisecond)
	s.RegisterStep("sim-0", "1001")
	s.runQuery = func([]string) (string, error) { return "", nil }

	reports, err := s.GetStepUpdate([]string{"sim-0"})
	if err != nil {
		t.Fatalf("GetStepUpdate error: %v", err)
	}
	if reports[0].Status != StatusNew {
		t.Fatalf("status = %s, want %s", reports[0].Status, StatusNew)
	}
}

func TestParseSacct_CancelledSuffix(t *testing.T) {
	entries := parseSacct("1001|CANCELLED by 5309|0:0|\n")
	entry, ok := entries["1001"]
	if !ok {
		t.Fatal("job 1001 not parsed")
	}
	if entry.state != "CANCELLED" {
		t.Fatalf("state = %q, want CANCELLED", entry.state)
	}
}

func TestPBS_ParseAndMap(t *testing.T) {
	p := NewPBS(time.Millisecond)
	p.RegisterStep("sim-0", "42.pbsserver")
	p.RegisterStep("sim-1", "43.pbsserver")

	p.runQuery = func(jobIDs []string) (string, error) {
		return "Job Id: 42.pbsserver\n" +
			"    job_state = F\n" +
			"    Exit_status = 0\n" +
			"Job Id: 43.pbsserver\n" +
			"    job_state = R\n", nil
	}

	reports, err := p.GetStepUpdate([]string{"sim-0", "sim-1"})
	if err != nil {
		t.Fatalf("GetStepUpdate error: %v", err)
	}
	if reports[0].Status != StatusCompleted || *reports[0].ReturnCode != 0 {
		t.Fatalf("sim-0 report: %+v", reports[0])
	}
	if reports[1].Status != StatusRunning {
		t.Fatalf("sim-1 report: %+v", reports[1])
	}
}

func TestPBS_FinishedJobAgedOut(t *testing.T) {
	p := NewPBS(time.Millisecond)
	p.RegisterStep("sim-0", "42.pbsserver")
	p.runQuery = func([]string) (string, error) { return "", nil }

	reports, err := p.GetStepUpdate([]string{"sim-0"})
	if err != nil {
		t.Fatalf("GetStepUpdate error: %v", err)
	}
	if reports[0].Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", reports[0].Status, StatusCompleted)
	}
}

func TestMapSlurmState(t *testing.T) {
	cases := map[string]JobStatus{
		"PENDING":   StatusNew,
		"RUNNING":   StatusRunning,
		"SUSPENDED": StatusPaused,
		"COMPLETED": StatusCompleted,
		"CANCELLED": StatusCancelled,
		"TIMEOUT":   StatusFailed,
	}
	for state, want := range cases {
		if got := mapSlurmState(state); got != want {
			t.Fatalf("mapSlurmState(%s) = %s, want %s", state, got, want)
		}
	}
}
