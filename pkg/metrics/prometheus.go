package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pointsInserted *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	ticks          *prometheus.CounterVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		pointsInserted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpull_points_inserted_total",
				Help: "Total number of price points written to the store",
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinpull_last_price",
				Help: "Last polled spot price for an asset",
			},
			[]string{"asset"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"operation"},
		),
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpull_live_ticks_total",
				Help: "Live polling ticks by outcome",
			},
			[]string{"result"},
		),
	}
}

// RecordPointsInserted counts points written by source ("seed" or "live").
func (r *Recorder) RecordPointsInserted(source string, n int) {
	r.pointsInserted.WithLabelValues(source).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for an asset.
func (r *Recorder) RecordLastPrice(assetID string, price float64) {
	r.lastPrice.WithLabelValues(assetID).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordTick(degraded bool) {
	result := "ok"
	if degraded {
		result = "degraded"
	}
	r.ticks.WithLabelValues(result).Inc()
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordPointsInserted(string, int) {}
func (Noop) RecordError(string)               {}
func (Noop) RecordLastPrice(string, float64)  {}
func (Noop) RecordLatency(string, float64)    {}
func (Noop) RecordTick(bool)                  {}
