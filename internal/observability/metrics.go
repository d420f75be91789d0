// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Monitor metrics
	SlotEventsEmitted *prometheus.CounterVec

	// Ledger metrics
	FlipTransitions      *prometheus.CounterVec
	FlipsCompleted       prometheus.Counter
	RealizedProfitCoins  prometheus.Counter
	TaxPaidCoins         prometheus.Counter
	AmbiguousMatches     prometheus.Counter
	ReconciliationGaps   prometheus.Counter
	StaleLinks           prometheus.Counter

	// Assistant metrics
	AutofillCommands  *prometheus.CounterVec
	SessionSteps      *prometheus.CounterVec
	InvalidStateCalls prometheus.Counter

	// Feed metrics
	FeedMessages   *prometheus.CounterVec
	FeedDecodeErrs prometheus.Counter

	// Retention metrics
	FlipsArchived  prometheus.Counter
	ArchiveErrors  prometheus.Counter
	FillsRecorded  prometheus.Counter
	LiveFlipsGauge prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "flip_assistant"
	}

	return &Metrics{
		SlotEventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "slot_events_total",
			Help:      "Total number of slot lifecycle events emitted by kind",
		}, []string{"kind"}),

		FlipTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "flip_transitions_total",
			Help:      "Total number of flip status transitions by target status",
		}, []string{"status"}),
		FlipsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "flips_completed_total",
			Help:      "Total number of flips that reached COMPLETED",
		}),
		RealizedProfitCoins: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "realized_profit_coins_total",
			Help:      "Cumulative realized profit of completed flips in coins",
		}),
		TaxPaidCoins: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "tax_paid_coins_total",
			Help:      "Cumulative sale tax paid in coins",
		}),
		AmbiguousMatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "ambiguous_matches_total",
			Help:      "Slot events with more than one equally-eligible flip, resolved by tie-break",
		}),
		ReconciliationGaps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reconciliation_gaps_total",
			Help:      "CLEARED events substituting for a missed terminal event",
		}),
		StaleLinks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "stale_links_total",
			Help:      "Linked slots whose contents no longer matched their flip",
		}),

		AutofillCommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "autofill_commands_total",
			Help:      "Auto-fill commands issued by target field",
		}, []string{"field"}),
		SessionSteps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "session_steps_total",
			Help:      "Guided-workflow step transitions by resulting step",
		}, []string{"step"}),
		InvalidStateCalls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "invalid_state_calls_total",
			Help:      "Auto-fill requests rejected for being outside an eligible step",
		}),

		FeedMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Host feed messages received by type",
		}, []string{"type"}),
		FeedDecodeErrs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Host feed messages that failed to decode",
		}),

		FlipsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "flips_archived_total",
			Help:      "Terminal flips handed to the history store",
		}),
		ArchiveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "archive_errors_total",
			Help:      "Failed history store inserts",
		}),
		FillsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "fills_recorded_total",
			Help:      "Fill increments recorded to the timeseries store",
		}),
		LiveFlipsGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "live_flips",
			Help:      "Number of non-terminal flips currently tracked",
		}),
	}
}

// DefaultMetrics is the package-level metrics instance.
var DefaultMetrics = NewMetrics("")

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSlotEvent increments the slot event counter for a kind.
func RecordSlotEvent(kind string) {
	DefaultMetrics.SlotEventsEmitted.WithLabelValues(kind).Inc()
}

// RecordFlipTransition increments the transition counter for a target status.
func RecordFlipTransition(status string) {
	DefaultMetrics.FlipTransitions.WithLabelValues(status).Inc()
}

// RecordFlipCompleted records a completed flip and its realized totals.
func RecordFlipCompleted(profit, tax int64) {
	DefaultMetrics.FlipsCompleted.Inc()
	if profit > 0 {
		DefaultMetrics.RealizedProfitCoins.Add(float64(profit))
	}
	if tax > 0 {
		DefaultMetrics.TaxPaidCoins.Add(float64(tax))
	}
}

// RecordAmbiguousMatch counts a tie-broken flip match.
func RecordAmbiguousMatch() {
	DefaultMetrics.AmbiguousMatches.Inc()
}

// RecordReconciliationGap counts a CLEARED-derived cancellation.
func RecordReconciliationGap() {
	DefaultMetrics.ReconciliationGaps.Inc()
}

// RecordStaleLink counts a defensive unlink.
func RecordStaleLink() {
	DefaultMetrics.StaleLinks.Inc()
}

// RecordAutofill counts an issued auto-fill command.
func RecordAutofill(field string) {
	DefaultMetrics.AutofillCommands.WithLabelValues(field).Inc()
}

// RecordSessionStep counts a workflow step transition.
func RecordSessionStep(step string) {
	DefaultMetrics.SessionSteps.WithLabelValues(step).Inc()
}

// RecordInvalidStateCall counts a rejected auto-fill request.
func RecordInvalidStateCall() {
	DefaultMetrics.InvalidStateCalls.Inc()
}

// RecordFeedMessage counts a received host feed message.
func RecordFeedMessage(msgType string) {
	DefaultMetrics.FeedMessages.WithLabelValues(msgType).Inc()
}

// RecordFeedDecodeError counts an undecodable host feed message.
func RecordFeedDecodeError() {
	DefaultMetrics.FeedDecodeErrs.Inc()
}

// UpdateLiveFlips updates the live flip gauge.
func UpdateLiveFlips(n int) {
	DefaultMetrics.LiveFlipsGauge.Set(float64(n))
}
