package observe

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
	"time"
)

func TestLogSink_FormatsKeyValueLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewLogSink(log.New(&buf, "", 0), "run-1234")

	sink.Record(Event{
		Time:    time.Now(),
		Image:   "/boards/retro.jpg",
		Stage:   "structure",
		Model:   "google/gemini-2.0-flash",
		Attempt: 2,
		Outcome: "ok",
		Detail:  "duration=812ms",
	})

	line := buf.String()
	for _, want := range []string{
		"run=run-1234",
		"image=/boards/retro.jpg",
		"stage=structure",
		"model=google/gemini-2.0-flash",
		"attempt=2",
		"outcome=ok",
		"duration=812ms",
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestLogSink_OmitsEmptyFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewLogSink(log.New(&buf, "", 0), "run-1234")

	sink.Record(Event{Outcome: "ok"})

	line := buf.String()
	if strings.Contains(line, "image=") || strings.Contains(line, "attempt=") || strings.Contains(line, "error=") {
		t.Fatalf("empty fields must be omitted, got %q", line)
	}
}

func TestLogSink_RedactsSecretsInErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewLogSink(log.New(&buf, "", 0), "run-1234")

	sink.Record(Event{
		Outcome: "failed",
		Err:     errors.New("request with Bearer sk-or-v1-abcdef0123456789 rejected"),
	})

	line := buf.String()
	if strings.Contains(line, "sk-or-v1-abcdef0123456789") {
		t.Fatalf("secret leaked into log line: %q", line)
	}
	if !strings.Contains(line, "outcome=failed") || !strings.Contains(line, "error=") {
		t.Fatalf("line = %q", line)
	}
}

func TestNewRunID_Unique(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	if a == "" || a == b {
		t.Fatalf("run ids must be unique and non-empty: %q %q", a, b)
	}
}
