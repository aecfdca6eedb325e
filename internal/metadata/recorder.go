package metadata

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

/*
Metadata Collected
- Event timestamps, run/article ids, URLs, hashes, HTTP status codes.

Logging Goals
- Debuggable pipeline behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred: one JSON object per line.

Allowed:
- Primitive values, timestamps, URLs and hashes as plain values, identifiers.
Disallowed:
- Objects with behavior, full article bodies.
*/

// Sink is the structured-events contract every pipeline stage writes
// through. It never returns an error: emitting an event must never become a
// reason to fail a fetch, a parse, or a store.
type Sink interface {
	RecordEvent(eventType string, runID *string, fields map[string]any)
}

// Recorder writes one JSON object per line to an underlying writer
// (stdout by default). It is safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	out io.Writer
}

func NewRecorder(out io.Writer) *Recorder {
	if out == nil {
		out = os.Stdout
	}
	return &Recorder{out: out}
}

// RecordEvent marshals eventType, timestamp, run_id, and fields into a
// single JSON line. run_id may be nil only for schema-validation events.
func (r *Recorder) RecordEvent(eventType string, runID *string, fields map[string]any) {
	payload := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		payload[k] = v
	}
	payload["event_type"] = eventType
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	if runID != nil {
		payload["run_id"] = *runID
	} else {
		payload["run_id"] = nil
	}

	line, err := json.Marshal(payload)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.Write(line)
	r.out.Write([]byte("\n"))
}

// NopSink discards every event; useful for unit tests that don't assert on
// the event stream.
type NopSink struct{}

func (NopSink) RecordEvent(string, *string, map[string]any) {}
