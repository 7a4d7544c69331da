// Package metrics defines and registers the custom Prometheus metrics of the
// type-approval portal. It is the single source of truth for metric names,
// labels and help strings.
//
// Metrics are registered with the default registry on package init through
// promauto; expose them with echoprometheus.NewHandler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionHydrationsTotal counts resolutions of a session from its credential.
// Label:
//   - outcome: "authenticated", "failed", "no_token" or "superseded"
var SessionHydrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_hydrations_total",
		Help:      "Total number of session hydrations, by outcome.",
	},
	[]string{"outcome"},
)

// SessionHydrationDuration measures the profile fetch performed by a hydration.
var SessionHydrationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_hydration_duration_seconds",
		Help:      "Duration of the profile fetch that resolves a session.",
		Buckets:   prometheus.DefBuckets,
	},
)

// SessionTransitionsTotal counts committed session state changes.
// Label:
//   - state: "authenticated" or "anonymous"
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Total number of committed session state changes.",
	},
	[]string{"state"},
)

// ── Guard metrics ─────────────────────────────────────────────────────────────

// GuardDecisionsTotal counts route guard decisions.
// Labels:
//   - guard: "auth" or "role"
//   - outcome: "allow", "wait", "redirect" or "deny"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions, by guard and outcome.",
	},
	[]string{"guard", "outcome"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit events by type and result.
// Labels:
//   - type: the audit event type (e.g. "signin", "access_denied")
//   - result: "stored", "failed", "throttled" or "dropped"
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of audit events handled, by type and result.",
	},
	[]string{"type", "result"},
)

// AuditQueueDepth tracks events waiting in each audit worker channel.
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Backend metrics ───────────────────────────────────────────────────────────

// BackendRequestsTotal counts calls made to the certification backend.
// Labels:
//   - endpoint: logical endpoint name (e.g. "profile", "signin")
//   - code: HTTP status code, or "error" on transport failure
var BackendRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Total number of requests made to the certification backend.",
	},
	[]string{"endpoint", "code"},
)
