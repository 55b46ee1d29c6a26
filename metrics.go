package stored

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors updated by readers configured with
// WithMetrics. A single Metrics value is meant to be shared by all the readers
// of a process; series are labeled by reader variant.
type Metrics struct {
	pagesLoaded    *prometheus.CounterVec
	pagesSkipped   *prometheus.CounterVec
	rowsRead       *prometheus.CounterVec
	rowsSkipped    *prometheus.CounterVec
	rowsReplayed   *prometheus.CounterVec
	levelBatchSize *prometheus.HistogramVec
}

// NewMetrics creates the reader metrics and registers them with reg. A nil
// registerer leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const subsystem = "stored_column_reader"
	labels := []string{"variant"}
	return &Metrics{
		pagesLoaded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "pages_loaded_total",
			Help:      "Total number of data pages loaded and decoded.",
		}, labels),
		pagesSkipped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "pages_skipped_total",
			Help:      "Total number of data pages skipped without being decoded.",
		}, labels),
		rowsRead: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "rows_read_total",
			Help:      "Total number of rows decoded into destination builders.",
		}, labels),
		rowsSkipped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "rows_skipped_total",
			Help:      "Total number of rows skipped by page selection.",
		}, labels),
		rowsReplayed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "rows_replayed_total",
			Help:      "Total number of skipped rows decoded again to reach a selected row of a page.",
		}, labels),
		levelBatchSize: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "level_batch_size",
			Help:      "Number of levels decoded per batch.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		}, labels),
	}
}

func (m *Metrics) variant(name string) variantMetrics {
	if m == nil {
		return variantMetrics{}
	}
	return variantMetrics{
		pagesLoaded:    m.pagesLoaded.WithLabelValues(name),
		pagesSkipped:   m.pagesSkipped.WithLabelValues(name),
		rowsRead:       m.rowsRead.WithLabelValues(name),
		rowsSkipped:    m.rowsSkipped.WithLabelValues(name),
		rowsReplayed:   m.rowsReplayed.WithLabelValues(name),
		levelBatchSize: m.levelBatchSize.WithLabelValues(name),
	}
}

// variantMetrics are the series of one reader variant; the zero value
// discards everything.
type variantMetrics struct {
	pagesLoaded    prometheus.Counter
	pagesSkipped   prometheus.Counter
	rowsRead       prometheus.Counter
	rowsSkipped    prometheus.Counter
	rowsReplayed   prometheus.Counter
	levelBatchSize prometheus.Observer
}

func (m variantMetrics) add(c prometheus.Counter, n int) {
	if c != nil && n > 0 {
		c.Add(float64(n))
	}
}

func (m variantMetrics) observeLevelBatch(n int) {
	if m.levelBatchSize != nil {
		m.levelBatchSize.Observe(float64(n))
	}
}

// Stats reports the work done by a reader.
type Stats struct {
	ColumnReadTime  time.Duration
	PageReadTime    time.Duration
	LevelDecodeTime time.Duration
	ValueDecodeTime time.Duration

	PagesLoaded  int64
	PagesSkipped int64
	RowsRead     int64
	RowsSkipped  int64
	RowsReplayed int64
}
