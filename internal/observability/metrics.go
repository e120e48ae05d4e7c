// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stacks-fundraising/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Chain endpoint metrics
	ChainCallLatency *prometheus.HistogramVec
	ChainCallErrors  *prometheus.CounterVec
	BlockEvents      prometheus.Counter

	// Query metrics
	QueryRefreshes   *prometheus.CounterVec
	QueryLastSuccess *prometheus.GaugeVec

	// Campaign snapshot
	CampaignTotal         *prometheus.GaugeVec
	CampaignPurchaseCount prometheus.Gauge
	CampaignLifecycle     *prometheus.GaugeVec

	// Price metrics
	AssetPriceUSD *prometheus.GaugeVec
	PriceFetches  *prometheus.CounterVec

	// Transaction execution metrics
	Executions        *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	Notifications     *prometheus.CounterVec
	PendingSignatures prometheus.Gauge
	WSClients         prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "fundraising"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ChainCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stacks",
			Name:      "call_latency_seconds",
			Help:      "Stacks API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ChainCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stacks",
			Name:      "call_errors_total",
			Help:      "Total number of failed Stacks API calls by error kind",
		}, []string{"method", "kind"}),
		BlockEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stacks",
			Name:      "block_events_total",
			Help:      "Total number of new block notifications received",
		}),

		QueryRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "refreshes_total",
			Help:      "Total number of query refreshes by outcome",
		}, []string{"query", "outcome"}),
		QueryLastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "last_success_timestamp",
			Help:      "Unix timestamp of the last successful refresh",
		}, []string{"query"}),

		CampaignTotal: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "total_raised",
			Help:      "Total raised in the smallest unit of each asset",
		}, []string{"asset"}),
		CampaignPurchaseCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "purchase_count",
			Help:      "Number of purchases recorded by the contract",
		}),
		CampaignLifecycle: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "lifecycle",
			Help:      "1 for the current lifecycle state, 0 otherwise",
		}, []string{"state"}),

		AssetPriceUSD: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "usd",
			Help:      "Latest USD unit price per asset",
		}, []string{"asset"}),
		PriceFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "fetches_total",
			Help:      "Total number of price fetches by outcome",
		}, []string{"outcome"}),

		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total number of transaction executions by terminal state",
		}, []string{"action", "strategy", "state"}),
		ExecutionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "duration_seconds",
			Help:      "Time from submission to terminal state",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		}, []string{"strategy"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "notifications_total",
			Help:      "Total number of user notifications by level",
		}, []string{"level"}),
		PendingSignatures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "signer",
			Name:      "pending_requests",
			Help:      "Signing requests waiting for a wallet answer",
		}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_clients",
			Help:      "Connected websocket clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordChainCall records latency and, when err is set, its taxonomy kind.
func (m *Metrics) RecordChainCall(method string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.ChainCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		m.ChainCallErrors.WithLabelValues(method, domain.ErrorKind(err)).Inc()
	}
}

// RecordBlockEvent counts a new block notification.
func (m *Metrics) RecordBlockEvent() {
	if m == nil {
		return
	}
	m.BlockEvents.Inc()
}

// RecordQueryRefresh records one refresh of a named query.
func (m *Metrics) RecordQueryRefresh(query string, err error, unixTime float64) {
	if m == nil {
		return
	}
	if err != nil {
		m.QueryRefreshes.WithLabelValues(query, domain.ErrorKind(err)).Inc()
		return
	}
	m.QueryRefreshes.WithLabelValues(query, "ok").Inc()
	m.QueryLastSuccess.WithLabelValues(query).Set(unixTime)
}

// UpdateCampaign mirrors a campaign snapshot into gauges.
func (m *Metrics) UpdateCampaign(info domain.CampaignInfo) {
	if m == nil {
		return
	}
	m.CampaignTotal.WithLabelValues(string(domain.STX)).Set(float64(info.TotalSTX))
	m.CampaignTotal.WithLabelValues(string(domain.SBTC)).Set(float64(info.TotalSBTC))
	m.CampaignPurchaseCount.Set(float64(info.PurchaseCount))
	current := info.Lifecycle()
	for _, s := range []domain.Lifecycle{domain.Uninitialized, domain.Active, domain.Cancelled} {
		v := 0.0
		if s == current {
			v = 1
		}
		m.CampaignLifecycle.WithLabelValues(string(s)).Set(v)
	}
}

// UpdatePrices records a price fetch and the prices it returned.
func (m *Metrics) UpdatePrices(prices domain.PriceData, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PriceFetches.WithLabelValues("error").Inc()
		return
	}
	m.PriceFetches.WithLabelValues("ok").Inc()
	for asset, usd := range prices {
		m.AssetPriceUSD.WithLabelValues(string(asset)).Set(usd)
	}
}

// RecordExecution records a finished transaction execution.
func (m *Metrics) RecordExecution(action, strategy, state string, seconds float64) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(action, strategy, state).Inc()
	m.ExecutionDuration.WithLabelValues(strategy).Observe(seconds)
}

// RecordNotification counts a notification by level.
func (m *Metrics) RecordNotification(level string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(level).Inc()
}

// SetPendingSignatures sets the number of outstanding signing requests.
func (m *Metrics) SetPendingSignatures(n int) {
	if m == nil {
		return
	}
	m.PendingSignatures.Set(float64(n))
}

// SetWSClients sets the number of connected websocket clients.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}
