package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/clock"
	"github.com/smallbiznis/vintner/internal/customer/domain"
	"github.com/smallbiznis/vintner/internal/customer/repository"
	"github.com/smallbiznis/vintner/pkg/apperr"
	"github.com/smallbiznis/vintner/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    dbtest.Open(t, &domain.Customer{}),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tenantID := snowflake.ID(100)
	code := " md "

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{
		TenantID:         tenantID,
		Name:             " Harbor Wines ",
		State:            "va",
		InvoiceStateCode: &code,
	})
	require.NoError(t, err)
	assert.Equal(t, "Harbor Wines", created.Name)
	assert.Equal(t, "VA", created.State)
	assert.Equal(t, 30, created.PaymentTermsDays)
	require.NotNil(t, created.InvoiceStateCode)
	assert.Equal(t, "MD", *created.InvoiceStateCode)

	got, err := svc.GetByID(ctx, tenantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "VA", got.State)
	require.NotNil(t, got.InvoiceStateCode)
	assert.Equal(t, "MD", *got.InvoiceStateCode)
	assert.Nil(t, got.CustomPriceListID)

	_, err = svc.GetByID(ctx, snowflake.ID(999), created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCreateValidates(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateCustomerRequest{TenantID: 1, Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(context.Background(), domain.CreateCustomerRequest{TenantID: 1, Name: "x", State: "V4"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestAssignPriceList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{TenantID: 1, Name: "Cellar"})
	require.NoError(t, err)

	listID := snowflake.ID(555)
	require.NoError(t, svc.AssignPriceList(ctx, 1, created.ID, &listID))

	got, err := svc.GetByID(ctx, 1, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CustomPriceListID)
	assert.Equal(t, listID, *got.CustomPriceListID)

	assert.ErrorIs(t, svc.AssignPriceList(ctx, 1, snowflake.ID(12345), &listID), domain.ErrNotFound)
}
