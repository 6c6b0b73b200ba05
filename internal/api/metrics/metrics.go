// Package metrics defines and registers all custom Prometheus metrics for the
// grafeo API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry at package init
// through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "grafeo"

// ── Authentication metrics ────────────────────────────────────────────────────

// SignInsTotal counts sign-in attempts.
// Labels:
//   - method: "local", "federated" or "demo"
//   - result: "ok", "rejected" or "error"
var SignInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signins_total",
		Help:      "Total number of sign-in attempts, by method and result.",
	},
	[]string{"method", "result"},
)

// SignUpsTotal counts local account registrations.
// Label:
//   - result: "ok", "duplicate" or "error"
var SignUpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of sign-up attempts, by result.",
	},
	[]string{"result"},
)

// SessionRejectionsTotal counts bearer tokens refused by the auth middleware.
// Label:
//   - reason: "invalid", "expired", "principal_not_found" or "missing"
var SessionRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_rejections_total",
		Help:      "Total number of rejected session tokens, by reason.",
	},
	[]string{"reason"},
)

// ── Demo lifecycle metrics ────────────────────────────────────────────────────

// DemoIdentitiesCreatedTotal counts generated demo identities.
var DemoIdentitiesCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "demo_identities_created_total",
		Help:      "Total number of demo identities generated.",
	},
)

// DemoIdentitiesPurgedTotal counts demo identities removed by the sweep.
var DemoIdentitiesPurgedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "demo_identities_purged_total",
		Help:      "Total number of expired demo identities purged.",
	},
)

// DemoPurgeFailuresTotal counts per-identity purges that will be retried.
var DemoPurgeFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "demo_purge_failures_total",
		Help:      "Total number of failed demo identity purges.",
	},
)

// DemoSweepsTotal counts sweep cycles.
// Label:
//   - result: "ok", "error", "skipped" (lock held elsewhere) or "lock_error"
var DemoSweepsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "demo_sweeps_total",
		Help:      "Total number of demo sweep cycles, by result.",
	},
	[]string{"result"},
)

// DemoSweepDuration measures how long a completed sweep cycle takes.
var DemoSweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "demo_sweep_duration_seconds",
		Help:      "Duration of demo sweep cycles from enumeration to last purge.",
		Buckets:   prometheus.DefBuckets,
	},
)

// FederatedVerificationsTotal counts calls to the identity provider.
// Labels:
//   - provider: "facebook" or "oidc"
//   - result: "valid", "rejected", "unavailable" or "cached"
var FederatedVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "federated_verifications_total",
		Help:      "Total number of federated token verifications, by provider and result.",
	},
	[]string{"provider", "result"},
)
