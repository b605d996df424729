package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementIngestOutcome("ok")
	m.IncrementIngestOutcome("ok")
	m.IncrementCacheLookup(true)
	m.IncrementCacheLookup(false)
	m.AddRevalidationRemovals(3)
	m.FeedOpened()
	m.FeedOpened()
	m.FeedClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestOutcome.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RevalidationRemovals))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedSubscribers))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementIngestOutcome("ok")
		m.IncrementParserMatch("x")
		m.IncrementCacheLookup(true)
		m.IncrementRedemption("ok")
		m.AddRevalidationRemovals(1)
		m.IncrementReconciliations()
		m.FeedOpened()
		m.FeedClosed()
		m.ObserveHTTPRequest("GET", 200, time.Millisecond)
	})
}
