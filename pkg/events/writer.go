package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer emits JSONL records for experiment lifecycle events.
//
// Implementations must be safe for concurrent use: launches come from the
// controller thread while completions come from the polling goroutine.
type Writer interface {
	// WriteLaunch emits a step launch record.
	WriteLaunch(launch *LaunchRecord) error

	// WriteStatus emits a status transition record.
	WriteStatus(status *StatusRecord) error

	// WriteCompleted emits a job completion record.
	WriteCompleted(completed *CompletedRecord) error

	// WriteRestart emits a restart record.
	WriteRestart(restart *RestartRecord) error

	// WriteSummary emits the final summary record.
	WriteSummary(summary *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized with a mutex so lines are never interleaved.
type JSONLWriter struct {
	w          io.Writer
	experiment string
	launcher   string
	mu         sync.Mutex

	closed bool
}

// NewJSONLWriter creates a writer stamping every record with the
// experiment name and launcher backend.
func NewJSONLWriter(w io.Writer, experiment, launcher string) *JSONLWriter {
	return &JSONLWriter{
		w:          w,
		experiment: experiment,
		launcher:   launcher,
	}
}

// WriteLaunch emits a step launch record.
func (jw *JSONLWriter) WriteLaunch(launch *LaunchRecord) error {
	return jw.writeRecord(TypeLaunch, launch)
}

// WriteStatus emits a status transition record.
func (jw *JSONLWriter) WriteStatus(status *StatusRecord) error {
	return jw.writeRecord(TypeStatus, status)
}

// WriteCompleted emits a job completion record.
func (jw *JSONLWriter) WriteCompleted(completed *CompletedRecord) error {
	return jw.writeRecord(TypeCompleted, completed)
}

// WriteRestart emits a restart record.
func (jw *JSONLWriter) WriteRestart(restart *RestartRecord) error {
	return jw.writeRecord(TypeRestart, restart)
}

// WriteSummary emits the final summary record.
func (jw *JSONLWriter) WriteSummary(summary *SummaryRecord) error {
	return jw.writeRecord(TypeSummary, summary)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed. The
// caller owns the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line atomically.
func (jw *JSONLWriter) writeRecord(recordType string, data any) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:       recordType,
		TS:         time.Now().UTC(),
		Experiment: jw.experiment,
		Launcher:   jw.launcher,
		Data:       dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may return n < len(p) with nil error; a short write would
	// truncate a JSONL line and corrupt the log.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// NopWriter discards every record. Used when event output is disabled.
type NopWriter struct{}

func (NopWriter) WriteLaunch(*LaunchRecord) error       { return nil }
func (NopWriter) WriteStatus(*StatusRecord) error       { return nil }
func (NopWriter) WriteCompleted(*CompletedRecord) error { return nil }
func (NopWriter) WriteRestart(*RestartRecord) error     { return nil }
func (NopWriter) WriteSummary(*SummaryRecord) error     { return nil }
func (NopWriter) Close() error                          { return nil }

// Compile-time checks.
var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = NopWriter{}
)
