package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/vintner/pkg/db"
)

const (
	SequencerOutcomeAllocated = "allocated"
	SequencerOutcomeRetried   = "retried"
	SequencerOutcomeFailed    = "failed"
)

const (
	SequencerReasonDeadlineExceeded     = "deadline_exceeded"
	SequencerReasonLockBusy             = "lock_busy"
	SequencerReasonUniqueViolation      = "unique_violation"
	SequencerReasonSerializationFailure = "serialization_failure"
	SequencerReasonUnknown              = "unknown"
)

// SequencerMetrics captures invoice-number allocation health.
type SequencerMetrics struct {
	attempts  *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	duration  prometheus.Observer
	lockWait  prometheus.Observer
}

var (
	sequencerMetricsOnce sync.Once
	sequencerMetrics     *SequencerMetrics
)

// Sequencer returns the process-wide collector registered on the default registry.
func Sequencer() *SequencerMetrics {
	return SequencerWithConfig(Config{})
}

func SequencerWithConfig(cfg Config) *SequencerMetrics {
	sequencerMetricsOnce.Do(func() {
		sequencerMetrics = NewSequencerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return sequencerMetrics
}

// NewSequencerMetrics registers a fresh collector, for tests with their own registry.
func NewSequencerMetrics(registerer prometheus.Registerer, cfg Config) *SequencerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = cfg.namespace()
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        cfg.name("invoice_sequence_attempts_total"),
		Help:        "Invoice sequence allocation attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        cfg.name("invoice_sequence_conflicts_total"),
		Help:        "Invoice sequence allocation conflicts by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        cfg.name("invoice_sequence_allocation_seconds"),
		Help:        "Invoice sequence allocation latency including retries.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        cfg.name("invoice_sequence_lock_wait_seconds"),
		Help:        "Time spent acquiring the distributed sequence lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(attempts, conflicts, duration, lockWait)

	return &SequencerMetrics{
		attempts:  attempts,
		conflicts: conflicts,
		duration:  duration,
		lockWait:  lockWait,
	}
}

func (m *SequencerMetrics) IncAttempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *SequencerMetrics) IncConflict(reason string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(reason).Inc()
}

func (m *SequencerMetrics) ObserveAllocation(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *SequencerMetrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.lockWait.Observe(d.Seconds())
}

// ClassifySequencerReason maps an allocation error to a conflict reason.
func ClassifySequencerReason(err error) string {
	switch {
	case err == nil:
		return SequencerReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SequencerReasonDeadlineExceeded
	case db.IsDuplicateKeyErr(err):
		return SequencerReasonUniqueViolation
	case db.IsRetryableTxErr(err):
		return SequencerReasonSerializationFailure
	default:
		return SequencerReasonUnknown
	}
}
