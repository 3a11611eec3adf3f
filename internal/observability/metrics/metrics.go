package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "finance_assistant_"

var (
	registerOnce sync.Once

	cacheLookups       *prometheus.CounterVec
	ledgerPages        *prometheus.CounterVec
	ledgerTruncations  prometheus.Counter
	ledgerScanLatency  *prometheus.HistogramVec
	modelRequests      *prometheus.CounterVec
	toolCalls          *prometheus.CounterVec
	conversationsSwept prometheus.Counter
)

// Init registers the assistant metrics with the default registry.
// Observe functions are no-ops until Init has run.
func Init() {
	registerOnce.Do(func() {
		cacheLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "balance_cache_lookups_total",
				Help: "Balance cache lookups by serving tier",
			},
			[]string{"source"},
		)
		ledgerPages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_pages_total",
				Help: "Ledger API pages fetched by resource",
			},
			[]string{"resource"},
		)
		ledgerTruncations = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_scan_truncated_total",
				Help: "Ledger scans stopped by the page ceiling",
			},
		)
		ledgerScanLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_scan_seconds",
				Help:    "Full ledger scan latency in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"result"},
		)
		modelRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "model_requests_total",
				Help: "Language model requests by outcome class",
			},
			[]string{"result"},
		)
		toolCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "tool_calls_total",
				Help: "Tool executions by tool and result",
			},
			[]string{"tool", "result"},
		)
		conversationsSwept = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "conversations_evicted_total",
				Help: "Conversation threads evicted after inactivity",
			},
		)

		prometheus.MustRegister(
			cacheLookups,
			ledgerPages,
			ledgerTruncations,
			ledgerScanLatency,
			modelRequests,
			toolCalls,
			conversationsSwept,
		)
	})
}

// Handler exposes the default registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncCacheLookup counts a balance lookup served by the given tier.
func IncCacheLookup(source string) {
	if cacheLookups != nil {
		cacheLookups.WithLabelValues(source).Inc()
	}
}

// IncLedgerPage counts one fetched page of accounts or journal entries.
func IncLedgerPage(resource string) {
	if ledgerPages != nil {
		ledgerPages.WithLabelValues(resource).Inc()
	}
}

// IncLedgerTruncation counts a scan that hit the page ceiling.
func IncLedgerTruncation() {
	if ledgerTruncations != nil {
		ledgerTruncations.Inc()
	}
}

// ObserveLedgerScan records the duration of a cold balance computation.
func ObserveLedgerScan(result string, duration time.Duration) {
	if ledgerScanLatency != nil {
		ledgerScanLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncModelRequest counts a model call by outcome ("success" or an error class).
func IncModelRequest(result string) {
	if result == "" {
		result = "unknown"
	}
	if modelRequests != nil {
		modelRequests.WithLabelValues(result).Inc()
	}
}

// IncToolCall counts a tool execution.
func IncToolCall(tool string, isError bool) {
	result := "success"
	if isError {
		result = "error"
	}
	if toolCalls != nil {
		toolCalls.WithLabelValues(tool, result).Inc()
	}
}

// AddConversationsEvicted counts threads dropped by the sweeper.
func AddConversationsEvicted(n int) {
	if conversationsSwept != nil && n > 0 {
		conversationsSwept.Add(float64(n))
	}
}
