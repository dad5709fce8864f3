// Package metrics instruments compression sessions with Prometheus collectors.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mozjpeg"

// Session results.
const (
	ResultFinished = "finished"
	ResultAborted  = "aborted"
	ResultFailed   = "failed"
)

type Metrics struct {
	sessions       *prometheus.CounterVec
	sessionSeconds prometheus.Histogram
	rows           prometheus.Counter
	outputBytes    prometheus.Counter
	aborts         *prometheus.CounterVec
	memoryGrows    prometheus.Counter
	memoryBytes    prometheus.Gauge
	streamMessages *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		sessions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Compression sessions by how they ended.",
		}, []string{"result"}),
		sessionSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Time from init_compress to the end of the session.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		rows: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Scanlines handed to the module.",
		}),
		outputBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Codestream bytes captured from the module.",
		}),
		aborts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aborts_total",
			Help:      "Module exit calls by exit code.",
		}, []string{"code"}),
		memoryGrows: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_grow_total",
			Help:      "Linear memory growth notifications.",
		}),
		memoryBytes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_bytes",
			Help:      "Linear memory size after the most recent growth.",
		}),
		streamMessages: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_total",
			Help:      "Text messages written by the module per stream.",
		}, []string{"stream"}),
	}
}

// SessionDone records the end of a session started at start.
func (m *Metrics) SessionDone(result string, start time.Time) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(result).Inc()
	m.sessionSeconds.Observe(time.Since(start).Seconds())
}

func (m *Metrics) Row() {
	if m == nil {
		return
	}
	m.rows.Inc()
}

func (m *Metrics) Output(n int) {
	if m == nil {
		return
	}
	m.outputBytes.Add(float64(n))
}

func (m *Metrics) Abort(code int32) {
	if m == nil {
		return
	}
	m.aborts.WithLabelValues(strconv.Itoa(int(code))).Inc()
}

// MemoryGrown records a growth to total bytes.
func (m *Metrics) MemoryGrown(total uint32) {
	if m == nil {
		return
	}
	m.memoryGrows.Inc()
	m.memoryBytes.Set(float64(total))
}

func (m *Metrics) StreamMessage(stream string) {
	if m == nil {
		return
	}
	m.streamMessages.WithLabelValues(stream).Inc()
}
