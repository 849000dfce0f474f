package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Placement results.
const (
	ResultCreated  = "created"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Line outcomes.
const (
	LineCommitted = "committed"
	LineSkipped   = "skipped"
)

// Metrics holds the order back office instruments. A nil *Metrics records nothing.
type Metrics struct {
	placements      *prometheus.CounterVec
	lines           *prometheus.CounterVec
	placementTime   prometheus.Histogram
	revenuePostings *prometheus.CounterVec
	settlements     *prometheus.CounterVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmadist",
			Name:      "order_placements_total",
			Help:      "Order placement attempts by result.",
		}, []string{"result"}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmadist",
			Name:      "order_lines_total",
			Help:      "Order lines by outcome.",
		}, []string{"outcome"}),
		placementTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pharmadist",
			Name:      "order_placement_duration_seconds",
			Help:      "Time spent placing an order, including settlement.",
			Buckets:   prometheus.DefBuckets,
		}),
		revenuePostings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmadist",
			Name:      "revenue_postings_total",
			Help:      "Revenue postings by result.",
		}, []string{"result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmadist",
			Name:      "settlements_total",
			Help:      "Settlement materializations by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.placements, m.lines, m.placementTime, m.revenuePostings, m.settlements)
	return m
}

func (m *Metrics) ObservePlacement(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.placements.WithLabelValues(result).Inc()
	m.placementTime.Observe(elapsed.Seconds())
}

func (m *Metrics) AddLines(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.lines.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) ObserveRevenuePosting(result string) {
	if m == nil {
		return
	}
	m.revenuePostings.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSettlement(result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(result).Inc()
}
