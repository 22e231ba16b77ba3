package api

import (
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/search"
	"github.com/poiesic/moodshelf/vectorindex"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SearchResults   prometheus.Histogram
	Candidates      prometheus.Histogram
	Rejections      *prometheus.CounterVec
	IndexedBooks    prometheus.GaugeFunc
}

// NewMetrics registers the collectors with reg. indexedBooks is sampled on
// every scrape.
func NewMetrics(reg prometheus.Registerer, indexedBooks func() float64) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodshelf_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "moodshelf_http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
				// Embedding round trips dominate; flat scans are sub-millisecond.
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		SearchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "moodshelf_search_results",
			Help:    "Number of results returned per search",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		}),
		Candidates: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "moodshelf_search_candidates",
			Help:    "Number of index neighbors fetched per search pass",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		Rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodshelf_search_rejections_total",
				Help: "Candidates dropped by the search filters",
			},
			[]string{"reason"},
		),
		IndexedBooks: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "moodshelf_indexed_books",
			Help: "Number of books in the active index",
		}, indexedBooks),
	}
}

// searchMonitor feeds search stages into Metrics.
type searchMonitor struct {
	metrics *Metrics
}

var _ search.SearchMonitor = (*searchMonitor)(nil)

func (m *searchMonitor) Start(_ search.Query) {}

func (m *searchMonitor) AfterIndexSearch(_ int, neighbors []vectorindex.Neighbor) {
	m.metrics.Candidates.Observe(float64(len(neighbors)))
}

func (m *searchMonitor) Rejected(_ int, reason search.RejectReason) {
	m.metrics.Rejections.WithLabelValues(string(reason)).Inc()
}

func (m *searchMonitor) Finish(results []*core.SearchResult) {
	m.metrics.SearchResults.Observe(float64(len(results)))
}
