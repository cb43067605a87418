package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySequencerReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SequencerReasonDeadlineExceeded},
		{name: "unique", err: gorm.ErrDuplicatedKey, want: SequencerReasonUniqueViolation},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: SequencerReasonSerializationFailure},
		{name: "unknown", err: errors.New("boom"), want: SequencerReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySequencerReason(tc.err))
		})
	}
}

func TestSequencerMetricsCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSequencerMetrics(registry, Config{ServiceName: "vintner", Environment: "test"})

	m.IncAttempt(SequencerOutcomeAllocated)
	m.IncAttempt(SequencerOutcomeAllocated)
	m.IncConflict(SequencerReasonLockBusy)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.attempts.WithLabelValues(SequencerOutcomeAllocated)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.conflicts.WithLabelValues(SequencerReasonLockBusy)))
}

func TestSequencerMetricsUseNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSequencerMetrics(registry, Config{Namespace: "harbor", Environment: "test"})
	m.IncAttempt(SequencerOutcomeAllocated)
	m.ObserveLockWait(-time.Second)

	count, err := testutil.GatherAndCount(registry, "harbor_invoice_sequence_attempts_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = testutil.GatherAndCount(registry, "vintner_invoice_sequence_attempts_total")
	assert.NoError(t, err)
	assert.Zero(t, count)
}
