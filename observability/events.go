// Package observability wires the marketplace engines' event stream into logs
// and Prometheus counters.
package observability

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"nftmarket/core/events"
	coretypes "nftmarket/core/types"
	"nftmarket/observability/logging"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking emitted marketplace events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of emitted marketplace events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordEvent increments the emitted-event counter for the supplied type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// payloadEvent is satisfied by the engines' event wrappers, which expose the
// underlying typed payload alongside the event type.
type payloadEvent interface {
	events.Event
	Event() *coretypes.Event
}

// Emitter logs every engine event and records it in the event counter. It is
// the default emitter installed by marketd.
type Emitter struct {
	logger *slog.Logger
}

// NewEmitter constructs an emitter writing to the supplied logger.
func NewEmitter(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{logger: logger}
}

// Emit implements events.Emitter.
func (e *Emitter) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	Events().RecordEvent(evt.EventType())
	args := []any{"type", evt.EventType()}
	if p, ok := evt.(payloadEvent); ok && p.Event() != nil {
		// Event payloads carry buyer and seller wallet addresses; only
		// allowlisted keys may be logged verbatim.
		for k, v := range p.Event().Attributes {
			args = append(args, logging.MaskField(k, v))
		}
	}
	e.logger.Info("marketplace event", args...)
}
