// Package monitoring exposes Prometheus metrics and a health endpoint.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	ScrapedTotal    *prometheus.CounterVec
	NewOffersTotal  *prometheus.CounterVec
	SourceErrors    *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	DeliveryErrors  prometheus.Counter
	StoreErrors     *prometheus.CounterVec
	CacheSize       prometheus.Gauge
	LastCycleUnixTs prometheus.Gauge
}

// NewMetrics registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carbot_cycles_total",
			Help: "Completed poll cycles by outcome",
		}, []string{"outcome"}), // ok, failed
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "carbot_cycle_duration_seconds",
			Help:    "Wall time of one poll cycle",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ScrapedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carbot_listings_scraped_total",
			Help: "Listings extracted per source",
		}, []string{"source"}),
		NewOffersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carbot_offers_delivered_total",
			Help: "New offers sent to the channel per source",
		}, []string{"source"}),
		SourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carbot_source_errors_total",
			Help: "Sources that failed after all retries",
		}, []string{"source"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carbot_fetch_duration_seconds",
			Help:    "Time to fetch and extract one source, retries included",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		DeliveryErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "carbot_delivery_errors_total",
			Help: "Messages the chat channel rejected",
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carbot_store_errors_total",
			Help: "Dedup store failures by operation",
		}, []string{"op"}), // load, append, evict
		CacheSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "carbot_cache_keys",
			Help: "Keys in today's sent-offer cache",
		}),
		LastCycleUnixTs: f.NewGauge(prometheus.GaugeOpts{
			Name: "carbot_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished",
		}),
	}
}

func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(d.Seconds())
	m.LastCycleUnixTs.SetToCurrentTime()
}

func (m *Metrics) AddScraped(source string, n int) {
	if m == nil {
		return
	}
	m.ScrapedTotal.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) IncSourceError(source string) {
	if m == nil {
		return
	}
	m.SourceErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) IncDelivered(source string) {
	if m == nil {
		return
	}
	m.NewOffersTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) IncDeliveryError() {
	if m == nil {
		return
	}
	m.DeliveryErrors.Inc()
}

func (m *Metrics) IncStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.CacheSize.Set(float64(n))
}
