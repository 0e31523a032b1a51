package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candlesWritten *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	sinkErrors     prometheus.Counter
	sinkLatency    prometheus.Histogram
	lastClose      *prometheus.GaugeVec
	reconnects     *prometheus.CounterVec
	reclaimPasses  prometheus.Counter
	activeWorkers  prometheus.Gauge
	activeSymbols  prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candlesWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinefeed_candles_written_total",
				Help: "Total closed candles appended to the stream store",
			},
			[]string{"interval", "symbol"},
		),
		framesDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinefeed_frames_dropped_total",
				Help: "Frames discarded before reaching the sink",
			},
			[]string{"reason"},
		),
		sinkErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "klinefeed_sink_errors_total",
				Help: "Candles lost to stream store write failures",
			},
		),
		sinkLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "klinefeed_sink_write_duration_seconds",
				Help:    "Duration of stream store appends in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "klinefeed_last_close_price",
				Help: "Last closed-candle close price per symbol",
			},
			[]string{"symbol"},
		),
		reconnects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinefeed_reconnects_total",
				Help: "Provider reconnect attempts per batch",
			},
			[]string{"batch"},
		),
		reclaimPasses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "klinefeed_reclaim_passes_total",
				Help: "Completed memory reclamation passes",
			},
		),
		activeWorkers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "klinefeed_active_workers",
				Help: "Connection workers in the current fleet cycle",
			},
		),
		activeSymbols: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "klinefeed_active_symbols",
				Help: "Symbols in the published active set",
			},
		),
	}
}

func (r *Recorder) RecordCandleWritten(interval, symbol string) {
	r.candlesWritten.WithLabelValues(interval, symbol).Inc()
}

func (r *Recorder) RecordFrameDropped(reason string) {
	r.framesDropped.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordSinkError() {
	r.sinkErrors.Inc()
}

func (r *Recorder) RecordSinkLatency(seconds float64) {
	r.sinkLatency.Observe(seconds)
}

func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordReconnect(batchID string) {
	r.reconnects.WithLabelValues(batchID).Inc()
}

func (r *Recorder) RecordReclaim() {
	r.reclaimPasses.Inc()
}

func (r *Recorder) SetActiveWorkers(n int) {
	r.activeWorkers.Set(float64(n))
}

func (r *Recorder) SetActiveSymbols(n int) {
	r.activeSymbols.Set(float64(n))
}
