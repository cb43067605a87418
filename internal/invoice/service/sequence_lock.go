package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/config"
	"github.com/smallbiznis/vintner/internal/distlock"
	"github.com/smallbiznis/vintner/internal/invoice/domain"
)

const keySequenceLock = "invoice:sequence:lock:%s:%s"

type sequenceLock struct {
	locker *distlock.Locker
	policy *config.PolicyHolder
}

// NewSequenceLock returns nil without a Redis-backed locker.
func NewSequenceLock(locker *distlock.Locker, policy *config.PolicyHolder) domain.SequenceLocker {
	if locker == nil {
		return nil
	}
	return &sequenceLock{locker: locker, policy: policy}
}

func (l *sequenceLock) Acquire(ctx context.Context, tenantID snowflake.ID, prefix string) (func(context.Context) error, error) {
	key := fmt.Sprintf(keySequenceLock, tenantID.String(), prefix)
	policy := l.policy.Get().Sequence
	token, ok, err := l.locker.Lock(ctx, key, policy.LockTTL, policy.LockWait)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrLockBusy
	}
	return func(ctx context.Context) error {
		return l.locker.Release(ctx, key, token)
	}, nil
}
