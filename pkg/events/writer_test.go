package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
)

func TestJSONLWriter_EnvelopeFields(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "thermo-sweep", "local")

	if err := w.WriteLaunch(&LaunchRecord{Entity: "sim_0", StepName: "sim_0", JID: "abc", Kind: "application"}); err != nil {
		t.Fatalf("WriteLaunch: %v", err)
	}

	var rec Record
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if rec.Type != TypeLaunch {
		t.Fatalf("type = %s, want %s", rec.Type, TypeLaunch)
	}
	if rec.Experiment != "thermo-sweep" || rec.Launcher != "local" {
		t.Fatalf("unexpected envelope: %+v", rec)
	}
	if rec.TS.IsZero() {
		t.Fatal("timestamp not set")
	}

	var launch LaunchRecord
	if err := json.Unmarshal(rec.Data, &launch); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if launch.Entity != "sim_0" || launch.JID != "abc" {
		t.Fatalf("unexpected payload: %+v", launch)
	}
}

func TestJSONLWriter_OneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "e", "local")

	rc := 0
	if err := w.WriteCompleted(&CompletedRecord{Entity: "sim_0", Status: "COMPLETED", ReturnCode: &rc, Runs: 1}); err != nil {
		t.Fatalf("WriteCompleted: %v", err)
	}
	if err := w.WriteSummary(&SummaryRecord{JobsCompleted: 1}); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var types []string
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		types = append(types, rec.Type)
	}
	if len(types) != 2 || types[0] != TypeCompleted || types[1] != TypeSummary {
		t.Fatalf("unexpected record types: %v", types)
	}
}

func TestJSONLWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "e", "local")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = w.WriteStatus(&StatusRecord{Entity: "sim", Status: "RUNNING"})
			}
		}()
	}
	wg.Wait()

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("interleaved output at line %d: %v", lines, err)
		}
		lines++
	}
	if lines != 200 {
		t.Fatalf("expected 200 lines, got %d", lines)
	}
}

func TestJSONLWriter_Closed(t *testing.T) {
	w := NewJSONLWriter(&bytes.Buffer{}, "e", "local")
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := w.WriteStatus(&StatusRecord{Entity: "sim", Status: "RUNNING"})
	if !errors.Is(err, ErrWriterClosed) {
		t.Fatalf("expected ErrWriterClosed, got %v", err)
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return 0, nil }

func TestJSONLWriter_ShortWrite(t *testing.T) {
	w := NewJSONLWriter(shortWriter{}, "e", "local")

	err := w.WriteStatus(&StatusRecord{Entity: "sim", Status: "RUNNING"})
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected a WriteError, got %v", err)
	}
	if !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected ErrShortWrite cause, got %v", err)
	}
}
