package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the document pipeline's Prometheus collectors. All methods
// are safe on a nil receiver so components may run without metrics.
type Metrics struct {
	// Ingest outcomes by error code ("ok" on success)
	IngestOutcome *prometheus.CounterVec

	// End-to-end ingest latency
	IngestLatency prometheus.Histogram

	// Which parser recognized a payload
	ParserMatches *prometheus.CounterVec

	// Parsed-document cache lookups by result ("hit", "miss")
	CacheLookups *prometheus.CounterVec

	// Redemption results by outcome
	Redemptions *prometheus.CounterVec

	// Documents removed by revalidation
	RevalidationRemovals prometheus.Counter

	// Identifier drift repairs during load
	Reconciliations prometheus.Counter

	// Open live-feed subscriptions
	FeedSubscribers prometheus.Gauge

	// HTTP request latency by method and status
	HTTPRequests *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IngestOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthpass_ingest_outcomes_total",
			Help: "Total ingest attempts by outcome code",
		}, []string{"code"}),

		IngestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthpass_ingest_duration_seconds",
			Help:    "Duration of a full ingest including parsing, validation and redemption",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		ParserMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthpass_parser_matches_total",
			Help: "Payloads recognized per parser",
		}, []string{"parser"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthpass_document_cache_lookups_total",
			Help: "Parsed-document cache lookups by result",
		}, []string{"result"}),

		Redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthpass_redemptions_total",
			Help: "Redemption attempts by outcome",
		}, []string{"outcome"}),

		RevalidationRemovals: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthpass_revalidation_removals_total",
			Help: "Documents removed because they no longer validate",
		}),

		Reconciliations: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthpass_identifier_reconciliations_total",
			Help: "Stored payloads re-keyed because their identifier changed",
		}),

		FeedSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "healthpass_feed_subscribers",
			Help: "Currently open live document feeds",
		}),

		HTTPRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthpass_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
}

func (m *Metrics) IncrementIngestOutcome(code string) {
	if m != nil {
		m.IngestOutcome.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) ObserveIngestLatency(d time.Duration) {
	if m != nil {
		m.IngestLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementParserMatch(parser string) {
	if m != nil {
		m.ParserMatches.WithLabelValues(parser).Inc()
	}
}

func (m *Metrics) IncrementCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// IncrementCacheLookupN records a batch of lookups.
func (m *Metrics) IncrementCacheLookupN(hits, misses int) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("hit").Add(float64(hits))
	m.CacheLookups.WithLabelValues("miss").Add(float64(misses))
}

func (m *Metrics) IncrementRedemption(outcome string) {
	if m != nil {
		m.Redemptions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AddRevalidationRemovals(n int) {
	if m != nil {
		m.RevalidationRemovals.Add(float64(n))
	}
}

func (m *Metrics) IncrementReconciliations() {
	if m != nil {
		m.Reconciliations.Inc()
	}
}

func (m *Metrics) FeedOpened() {
	if m != nil {
		m.FeedSubscribers.Inc()
	}
}

func (m *Metrics) FeedClosed() {
	if m != nil {
		m.FeedSubscribers.Dec()
	}
}

func (m *Metrics) ObserveHTTPRequest(method string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
	}
}
