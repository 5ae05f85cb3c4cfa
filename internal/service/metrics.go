package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"mediaapi/internal/model"
)

// Metrics holds the upload pipeline's Prometheus collectors.
// A nil *Metrics records nothing.
type Metrics struct {
	uploads           *prometheus.CounterVec
	transcodeDuration prometheus.Histogram
	cleanupFailures   prometheus.Counter
}

// NewMetrics creates and registers the pipeline metrics on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploads_total",
				Help: "Upload attempts by category and outcome.",
			},
			[]string{"category", "outcome"},
		),
		transcodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_transcode_duration_seconds",
			Help:    "Time spent re-encoding uploaded images.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upload_temp_cleanup_failures_total",
			Help: "Raw upload files that could not be removed after transcoding.",
		}),
	}
	for _, c := range []prometheus.Collector{m.uploads, m.transcodeDuration, m.cleanupFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeUpload(cat model.Category, err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(string(cat), outcome(err)).Inc()
}

func (m *Metrics) observeTranscode(seconds float64) {
	if m == nil {
		return
	}
	m.transcodeDuration.Observe(seconds)
}

func (m *Metrics) cleanupFailed() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}

func outcome(err error) string {
	var te *TranscodeError
	switch {
	case err == nil:
		return "stored"
	case errors.Is(err, ErrUnsupportedType):
		return "rejected"
	case errors.Is(err, ErrPayloadTooLarge):
		return "too_large"
	case errors.As(err, &te):
		return "transcode_failed"
	}
	return "error"
}
