package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scraper's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	dates         *prometheus.CounterVec
	items         *prometheus.CounterVec
	retries       *prometheus.CounterVec
	openPages     prometheus.Gauge
	pageLifetime  prometheus.Histogram
	cacheHits     prometheus.Counter
	scrapeSeconds prometheus.Histogram
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		dates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diario",
			Subsystem: "scraper",
			Name:      "dates_total",
			Help:      "Days searched, by outcome (ok, empty, failed).",
		}, []string{"outcome"}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diario",
			Subsystem: "scraper",
			Name:      "items_total",
			Help:      "Detail pages processed, by outcome.",
		}, []string{"outcome"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diario",
			Subsystem: "scraper",
			Name:      "retries_total",
			Help:      "Retried attempts, by stage.",
		}, []string{"stage"}),
		openPages: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "diario",
			Subsystem: "scraper",
			Name:      "open_detail_pages",
			Help:      "Detail pages currently open.",
		}),
		pageLifetime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "diario",
			Subsystem: "scraper",
			Name:      "detail_page_seconds",
			Help:      "Time a detail page stays open.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "diario",
			Subsystem: "scraper",
			Name:      "detail_cache_hits_total",
			Help:      "Detail pages served from cache.",
		}),
		scrapeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "diario",
			Subsystem: "scraper",
			Name:      "scrape_seconds",
			Help:      "Duration of whole scrape runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}
}

func (m *Metrics) date(outcome string) {
	if m != nil {
		m.dates.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) item(outcome string) {
	if m != nil {
		m.items.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) retried(stage string) {
	if m != nil {
		m.retries.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) pageOpened() {
	if m != nil {
		m.openPages.Inc()
	}
}

func (m *Metrics) pageClosed(open time.Duration) {
	if m != nil {
		m.openPages.Dec()
		m.pageLifetime.Observe(open.Seconds())
	}
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) scrapeDone(d time.Duration) {
	if m != nil {
		m.scrapeSeconds.Observe(d.Seconds())
	}
}
