package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 检测相关指标。reg 为 nil 时指标不注册（测试用）。
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	sidecarHits prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "detector",
			Name:      "runs_total",
			Help:      "Detection runs by outcome (model or fallback).",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "detector",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a detection run including fallback.",
			Buckets:   prometheus.DefBuckets,
		}),
		sidecarHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "detector",
			Name:      "sidecar_hits_total",
			Help:      "Detection requests answered from an existing sidecar.",
		}),
	}
}

func (m *Metrics) observeRun(fallback bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "model"
	if fallback {
		outcome = "fallback"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(seconds)
}

// SidecarHit 记录一次缓存命中
func (m *Metrics) SidecarHit() {
	if m == nil {
		return
	}
	m.sidecarHits.Inc()
}
