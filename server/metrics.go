package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/retailops/boardflow/core"
)

var (
	// SessionsStarted counts sessions created through the API.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "boardflow",
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Total number of sessions started",
		},
	)

	// SessionsFinished counts terminal sessions by outcome.
	// Labels: status (completed, blocked, aborted)
	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boardflow",
			Subsystem: "sessions",
			Name:      "finished_total",
			Help:      "Total number of sessions reaching a terminal status",
		},
		[]string{"status"},
	)

	// StageFailures counts failed stage nodes by node name.
	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boardflow",
			Subsystem: "stages",
			Name:      "failures_total",
			Help:      "Total number of stage node failures",
		},
		[]string{"stage"},
	)

	// EventsDropped counts events lost to lagging stream subscribers.
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "boardflow",
			Subsystem: "stream",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped for lagging subscribers",
		},
	)
)

// EventDropped is the orchestrator bus-drop hook.
func EventDropped(core.Event) { EventsDropped.Inc() }

// observeEvent updates the session and stage counters from one stream event.
func observeEvent(ev core.Event) {
	switch ev.Type {
	case core.EventSessionStart:
		SessionsStarted.Inc()
	case core.EventAgentError:
		if p, ok := ev.Payload.(core.AgentErrorPayload); ok {
			StageFailures.WithLabelValues(p.Agent).Inc()
		}
	case core.EventSessionComplete:
		if p, ok := ev.Payload.(core.SessionCompletePayload); ok {
			SessionsFinished.WithLabelValues(string(p.Status)).Inc()
		}
	}
}
