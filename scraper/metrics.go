package scraper

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester, plus plain mirror
// counters so the end-of-run summary does not have to scrape its own registry.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	PagesTotal      prometheus.Counter
	ItemsTotal      prometheus.Counter
	RowsWritten     prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec

	pages   int64
	items   int64
	rows    int64
	retries int64

	errMu     sync.Mutex
	errByType map[string]int
}

// Snapshot is a point-in-time copy of the mirror counters.
type Snapshot struct {
	Pages        int
	Items        int
	Rows         int
	Retries      int
	ErrorsByType map[string]int
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_requests_total",
			Help: "Total HTTP requests issued, by phase (listing, detail, tree).",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_listing_pages_total",
			Help: "Listing pages that yielded at least one summary.",
		},
	)
	items := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_items_total",
			Help: "Product summaries extracted from listing pages.",
		},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_rows_written_total",
			Help: "Rows persisted to the output file.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_retries_total",
			Help: "Retry attempts for transient fetch failures.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_errors_total",
			Help: "Errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, items, rows, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		PagesTotal:      pages,
		ItemsTotal:      items,
		RowsWritten:     rows,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		errByType:       make(map[string]int),
	}
}

// IncRequest increments the requests total counter for a phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the listing page counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
	atomic.AddInt64(&m.pages, 1)
}

// IncItems adds extracted summaries to the item counter.
func (m *Metrics) IncItems(n int) {
	if m == nil {
		return
	}
	m.ItemsTotal.Add(float64(n))
	atomic.AddInt64(&m.items, int64(n))
}

// AddRows adds persisted rows to the written counter.
func (m *Metrics) AddRows(n int) {
	if m == nil {
		return
	}
	m.RowsWritten.Add(float64(n))
	atomic.AddInt64(&m.rows, int64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
	atomic.AddInt64(&m.retries, 1)
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
	m.errMu.Lock()
	m.errByType[errorType]++
	m.errMu.Unlock()
}

// TakeSnapshot copies the mirror counters.
func (m *Metrics) TakeSnapshot() Snapshot {
	if m == nil {
		return Snapshot{ErrorsByType: map[string]int{}}
	}
	m.errMu.Lock()
	errs := make(map[string]int, len(m.errByType))
	for k, v := range m.errByType {
		errs[k] = v
	}
	m.errMu.Unlock()

	return Snapshot{
		Pages:        int(atomic.LoadInt64(&m.pages)),
		Items:        int(atomic.LoadInt64(&m.items)),
		Rows:         int(atomic.LoadInt64(&m.rows)),
		Retries:      int(atomic.LoadInt64(&m.retries)),
		ErrorsByType: errs,
	}
}
