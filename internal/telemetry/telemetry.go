// Package telemetry records usage and feedback events. Every sink is
// fire-and-forget: recording never blocks the primary workflow and failures
// inside a sink never propagate to callers.
package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/stylecopilot/stylecopilot/internal/logging"
)

// Sink receives usage and error events.
type Sink interface {
	RecordUsage(event string, attrs map[string]string)
	RecordError(err error)
}

// Event is the wire payload sent to the collector.
type Event struct {
	Name      string            `json:"name"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ── HTTP sink ─────────────────────────────────────────────────────────────────

// HTTPSink posts events to a collector endpoint from a background goroutine.
// The event queue is bounded; when it is full new events are dropped rather
// than blocking the caller.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	queue    chan Event
}

// NewHTTPSink creates a sink posting to the given endpoint and starts its
// background sender.
func NewHTTPSink(endpoint string) *HTTPSink {
	s := &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		queue:    make(chan Event, 64),
	}
	go s.run()
	return s
}

func (s *HTTPSink) run() {
	defer func() {
		// A panic in the sink must never reach the workflow.
		if r := recover(); r != nil {
			telemetryLog.WithField("panic", r).Debug("telemetry sender stopped")
		}
	}()
	for ev := range s.queue {
		s.send(ev)
	}
}

func (s *HTTPSink) send(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StyleCopilot/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		telemetryLog.WithError(err).Debug("telemetry post failed")
		return
	}
	resp.Body.Close()
}

func (s *HTTPSink) enqueue(ev Event) {
	select {
	case s.queue <- ev:
	default:
		// Queue full: drop, never block.
	}
}

// RecordUsage queues a usage event.
func (s *HTTPSink) RecordUsage(event string, attrs map[string]string) {
	s.enqueue(Event{Name: event, Attrs: attrs, Timestamp: time.Now().UTC()})
}

// RecordError queues an error event.
func (s *HTTPSink) RecordError(err error) {
	if err == nil {
		return
	}
	s.enqueue(Event{Name: "error", Error: err.Error(), Timestamp: time.Now().UTC()})
}

// ── Log sink ──────────────────────────────────────────────────────────────────

// LogSink writes events to the debug log. Used when no collector endpoint is
// configured.
type LogSink struct{}

func (LogSink) RecordUsage(event string, attrs map[string]string) {
	e := telemetryLog.WithField("event", event)
	for k, v := range attrs {
		e = e.WithField(k, v)
	}
	e.Debug("usage")
}

func (LogSink) RecordError(err error) {
	if err == nil {
		return
	}
	telemetryLog.WithError(err).Debug("error event")
}

// ── Nop sink ──────────────────────────────────────────────────────────────────

// Nop discards all events. Used when telemetry is disabled.
type Nop struct{}

func (Nop) RecordUsage(string, map[string]string) {}
func (Nop) RecordError(error)                     {}

var telemetryLog = logging.Named("telemetry")
