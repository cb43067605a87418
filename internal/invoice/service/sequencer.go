package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	"github.com/smallbiznis/vintner/internal/invoice/domain"
	"github.com/smallbiznis/vintner/internal/invoice/format"
	"github.com/smallbiznis/vintner/internal/observability/logger"
	"github.com/smallbiznis/vintner/internal/observability/metrics"
	"github.com/smallbiznis/vintner/internal/observability/tracing"
	"github.com/smallbiznis/vintner/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	retryInitialInterval = 10 * time.Millisecond
	retryMaxInterval     = 250 * time.Millisecond
)

// NextInvoiceNumber commits the allocation on its own. A caller that
// abandons the number leaves an auditable gap; IssueInvoice does not.
func (s *Service) NextInvoiceNumber(ctx context.Context, tenantID snowflake.ID, customer customerdomain.Customer, deliveryDate time.Time) (string, error) {
	if tenantID == 0 {
		return "", domain.ErrInvalidTenant
	}
	if customer.TenantID != 0 && customer.TenantID != tenantID {
		return "", domain.ErrCustomerMismatch
	}

	code := s.jurisdictionCode(tenantID, customer)
	prefix := format.Prefix(code, deliveryDate)

	seq, err := s.allocateWith(ctx, tenantID, prefix, nil)
	if err != nil {
		return "", err
	}

	number := format.FormatInvoiceNumber(code, deliveryDate.Year(), int(seq))
	s.metrics.RecordInvoiceNumber(ctx, code)
	logger.WithContext(ctx, s.log).Info("invoice number allocated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_number", number),
	)
	return number, nil
}

func (s *Service) jurisdictionCode(tenantID snowflake.ID, customer customerdomain.Customer) string {
	return format.JurisdictionCode(format.Customer{
		InvoiceStateCode: customer.InvoiceStateCode,
		IsTaxExempt:      customer.IsTaxExempt,
		State:            customer.State,
	}, s.policy.Get().FallbackFor(tenantID.String()))
}

// allocateWith reserves the next sequence for (tenant, prefix) and runs fn in
// the same transaction. A failed fn rolls the counter back with it. Contention
// is retried with exponential backoff up to the configured attempts.
func (s *Service) allocateWith(ctx context.Context, tenantID snowflake.ID, prefix string, fn func(tx *gorm.DB, seq int64) error) (int64, error) {
	ctx, span := tracing.Start(ctx, "invoice.sequence.allocate",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("prefix", prefix),
	)
	defer span.End()

	started := time.Now()
	defer func() { s.seqMetrics.ObserveAllocation(time.Since(started)) }()

	policy := s.policy.Get().Sequence
	maxTries := policy.MaxAttempts
	if maxTries <= 0 {
		maxTries = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval

	log := logger.WithContext(ctx, s.log)
	seq, err := backoff.Retry(ctx, func() (int64, error) {
		seq, err := s.allocateOnce(ctx, tenantID, prefix, fn)
		if err == nil {
			return seq, nil
		}
		if isContention(err) && ctx.Err() == nil {
			return 0, err
		}
		return 0, backoff.Permanent(err)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(maxTries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.seqMetrics.IncAttempt(metrics.SequencerOutcomeRetried)
			s.seqMetrics.IncConflict(conflictReason(err))
			log.Debug("invoice sequence contention, retrying",
				zap.String("prefix", prefix),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		s.seqMetrics.IncAttempt(metrics.SequencerOutcomeFailed)
		span.RecordError(err)
		if isContention(err) {
			s.seqMetrics.IncConflict(conflictReason(err))
			log.Warn("invoice sequence retries exhausted",
				zap.String("prefix", prefix),
				zap.Int("attempts", maxTries),
				zap.Error(err),
			)
			return 0, fmt.Errorf("%w: %s after %d attempts: %v", domain.ErrSequenceConflict, prefix, maxTries, err)
		}
		return 0, err
	}

	s.seqMetrics.IncAttempt(metrics.SequencerOutcomeAllocated)
	span.SetAttributes(attribute.Int64("sequence", seq))
	return seq, nil
}

func (s *Service) allocateOnce(ctx context.Context, tenantID snowflake.ID, prefix string, fn func(tx *gorm.DB, seq int64) error) (int64, error) {
	release, err := s.acquire(ctx, tenantID, prefix)
	if err != nil {
		return 0, err
	}
	defer release()

	var seq int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		value, err := s.increment(ctx, tx, tenantID, prefix)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(tx, value); err != nil {
				return err
			}
		}
		seq = value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// increment seeds the counter from issued invoices the first time a prefix
// is seen, then bumps it. The counter never drops below an issued sequence
// and never moves backwards when invoices are deleted.
func (s *Service) increment(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, prefix string) (int64, error) {
	floor, err := s.repo.MaxIssuedSequence(ctx, tx, tenantID, prefix)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	if err := s.repo.SeedSequence(ctx, tx, &domain.InvoiceSequence{
		TenantID:  tenantID,
		Prefix:    prefix,
		LastValue: floor,
		UpdatedAt: now,
	}); err != nil {
		return 0, err
	}

	affected, err := s.repo.IncrementSequence(ctx, tx, tenantID, prefix, floor, now)
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, fmt.Errorf("invoice sequence %s not seeded", prefix)
	}

	value, err := s.repo.CurrentSequence(ctx, tx, tenantID, prefix)
	if err != nil {
		return 0, err
	}
	if value > format.MaxSequence {
		return 0, domain.ErrSequenceExhausted
	}
	return value, nil
}

func (s *Service) acquire(ctx context.Context, tenantID snowflake.ID, prefix string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	started := time.Now()
	release, err := s.locker.Acquire(ctx, tenantID, prefix)
	s.seqMetrics.ObserveLockWait(time.Since(started))
	if err != nil {
		return nil, err
	}
	return func() {
		// Released on a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.log.Warn("release invoice sequence lock failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}, nil
}

func isContention(err error) bool {
	return errors.Is(err, domain.ErrLockBusy) || db.IsRetryableTxErr(err)
}

func conflictReason(err error) string {
	if errors.Is(err, domain.ErrLockBusy) {
		return metrics.SequencerReasonLockBusy
	}
	return metrics.ClassifySequencerReason(err)
}
