// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatpipeline"

var (
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound webhook events by outcome",
		},
		[]string{"provider", "outcome"}, // outcome: processed, from_me, duplicate, manual_session, ignored
	)

	RoutingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "decisions_total",
			Help:      "Routing decisions by topic and source",
		},
		[]string{"topic", "source"},
	)

	GatewayAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "attempts_total",
			Help:      "Outbound gateway attempts per variant",
		},
		[]string{"variant", "outcome"}, // outcome: ok, http_error, transport_error
	)

	GatewaySendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "send_seconds",
			Help:      "Latency of a full send including variant probing",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"classification"},
	)

	TextgenLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "textgen",
			Name:      "latency_seconds",
			Help:      "Latency of text generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 6, 8, 10},
		},
		[]string{"model", "reason"},
	)

	CampaignRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaigns",
			Name:      "records_total",
			Help:      "Campaign records by type, state and reason",
		},
		[]string{"type", "state", "reason"},
	)
)

func init() {
	prometheus.MustRegister(WebhookEvents, RoutingDecisions, GatewayAttempts, GatewaySendLatency, TextgenLatency, CampaignRecords)
}
