package observe

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/workshop-tools/boardscan/internal/util"
)

// Event is one observability record emitted by the executor or the pipeline.
// Empty fields are omitted from log output.
type Event struct {
	Time    time.Time
	Image   string
	Stage   string
	Model   string
	Attempt int
	Outcome string
	Err     error
	Detail  string
}

// Sink receives observability events. Implementations must be safe for
// sequential use from a single goroutine; the pipeline never records
// concurrently.
type Sink interface {
	Record(ev Event)
}

// NewRunID returns a fresh identifier correlating all events of one run.
func NewRunID() string {
	return uuid.NewString()
}

// LogSink formats events as run-prefixed key=value lines on a *log.Logger.
// Error strings pass through secret redaction before they are written.
type LogSink struct {
	logger *log.Logger
	runID  string
}

func NewLogSink(logger *log.Logger, runID string) *LogSink {
	return &LogSink{logger: logger, runID: runID}
}

func (s *LogSink) Record(ev Event) {
	parts := []string{"run=" + s.runID}
	if ev.Image != "" {
		parts = append(parts, "image="+ev.Image)
	}
	if ev.Stage != "" {
		parts = append(parts, "stage="+ev.Stage)
	}
	if ev.Model != "" {
		parts = append(parts, "model="+ev.Model)
	}
	if ev.Attempt > 0 {
		parts = append(parts, "attempt="+strconv.Itoa(ev.Attempt))
	}
	if ev.Outcome != "" {
		parts = append(parts, "outcome="+ev.Outcome)
	}
	if ev.Err != nil {
		parts = append(parts, "error="+strconv.Quote(util.RedactSecrets(ev.Err.Error())))
	}
	if ev.Detail != "" {
		parts = append(parts, ev.Detail)
	}
	s.logger.Print(strings.Join(parts, " "))
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}
