package batch

import "github.com/zeromicro/go-zero/core/metric"

const metricNamespace = "candlekeep"

var (
	metricSymbols = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: metricNamespace,
		Subsystem: "batch",
		Name:      "symbols_total",
		Help:      "Symbols processed by outcome.",
		Labels:    []string{"kind", "outcome"},
	})
	metricSymbolDuration = metric.NewHistogramVec(&metric.HistogramVecOpts{
		Namespace: metricNamespace,
		Subsystem: "batch",
		Name:      "symbol_duration_ms",
		Help:      "Per-symbol processing time in milliseconds.",
		Labels:    []string{"kind"},
		Buckets:   []float64{50, 250, 1000, 5000, 15000, 60000, 180000},
	})
	metricRuns = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: metricNamespace,
		Subsystem: "batch",
		Name:      "runs_total",
		Help:      "Batch runs by kind and result.",
		Labels:    []string{"kind", "result"},
	})
)
