package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/vintner/internal/audit/domain"
	"github.com/smallbiznis/vintner/internal/authorization"
	"github.com/smallbiznis/vintner/internal/clock"
	"github.com/smallbiznis/vintner/internal/config"
	"github.com/smallbiznis/vintner/internal/pricelist/domain"
	"github.com/smallbiznis/vintner/internal/pricelist/repository"
	"github.com/smallbiznis/vintner/pkg/apperr"
	"github.com/smallbiznis/vintner/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type auditStub struct {
	actions []string
}

func (a *auditStub) AuditLog(_ context.Context, _ snowflake.ID, _ string, action string, _ string, _ string, _ map[string]any) error {
	a.actions = append(a.actions, action)
	return nil
}

func (a *auditStub) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

var (
	system   = authorization.Actor{ID: "pricing-job", Role: authorization.RoleSystem}
	salesRep = authorization.Actor{ID: "17", Role: authorization.RoleSalesRep}
)

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	audit *auditStub
}

func newFixture(t *testing.T, policy config.Policy) fixture {
	t.Helper()
	return newFixtureWithRepo(t, policy, repository.Provide())
}

func newFixtureWithRepo(t *testing.T, policy config.Policy, repo domain.Repository) fixture {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	db := dbtest.Open(t, &domain.PriceList{}, &domain.PriceListItem{})
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	audit := &auditStub{}
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Policy:   config.NewStaticPolicyHolder(policy),
		Repo:     repo,
		AuthzSvc: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		AuditSvc: audit,
	})
	return fixture{svc: svc, db: db, audit: audit}
}

func intPtr(v int) *int { return &v }

func mustList(t *testing.T, svc domain.Service, req domain.CreatePriceListRequest) domain.PriceList {
	t.Helper()
	list, err := svc.CreatePriceList(context.Background(), req)
	require.NoError(t, err)
	return list
}

func mustItem(t *testing.T, svc domain.Service, list domain.PriceList, sku snowflake.ID, price string, min int, max *int) domain.PriceListItem {
	t.Helper()
	item, err := svc.AddItem(context.Background(), domain.AddItemRequest{
		TenantID:    list.TenantID,
		PriceListID: list.ID,
		SKUID:       sku,
		Price:       decimal.RequireFromString(price),
		MinQuantity: min,
		MaxQuantity: max,
	})
	require.NoError(t, err)
	return item
}

func TestCreatePriceList(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy())
	ctx := context.Background()

	state := mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID:          1,
		Name:              "Virginia",
		JurisdictionType:  "state",
		JurisdictionValue: "va",
	})
	assert.Equal(t, domain.JurisdictionState, state.JurisdictionType)
	assert.Equal(t, "VA", state.JurisdictionValue)
	assert.Equal(t, "USD", state.Currency)
	assert.True(t, state.IsActive)

	_, err := f.svc.CreatePriceList(ctx, domain.CreatePriceListRequest{
		TenantID: 1, Name: "Region", JurisdictionType: domain.JurisdictionRegion,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidJurisdiction)

	_, err = f.svc.CreatePriceList(ctx, domain.CreatePriceListRequest{
		TenantID: 1, Name: "Odd", JurisdictionType: "COUNTY", JurisdictionValue: "x",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidJurisdiction)

	def := mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House", JurisdictionType: domain.JurisdictionDefault,
	})
	assert.True(t, def.IsDefault)

	_, err = f.svc.CreatePriceList(ctx, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House 2", JurisdictionType: domain.JurisdictionDefault,
	})
	assert.ErrorIs(t, err, domain.ErrDefaultPriceListExists)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// another tenant keeps its own default
	mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 2, Name: "House", JurisdictionType: domain.JurisdictionDefault,
	})

	// a disabled default frees the slot
	require.NoError(t, f.svc.DisablePriceList(ctx, 1, def.ID))
	mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House 2", JurisdictionType: domain.JurisdictionDefault,
	})
	assert.Contains(t, f.audit.actions, auditdomain.ActionPriceListDisabled)

	active, err := f.svc.ListPriceLists(ctx, domain.ListPriceListsRequest{TenantID: 1, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)
	all, err := f.svc.ListPriceLists(ctx, domain.ListPriceListsRequest{TenantID: 1})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAddItemRejectsOverlap(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy())
	list := mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House", JurisdictionType: domain.JurisdictionDefault,
	})
	sku := snowflake.ID(77)

	mustItem(t, f.svc, list, sku, "10.00", 1, intPtr(5))
	mustItem(t, f.svc, list, sku, "9.00", 6, intPtr(11))
	mustItem(t, f.svc, list, sku, "8.00", 12, nil)
	mustItem(t, f.svc, list, snowflake.ID(78), "20.00", 1, nil)

	cases := []struct {
		name string
		min  int
		max  *int
		err  error
	}{
		{name: "inside existing tier", min: 3, max: intPtr(4), err: domain.ErrOverlappingTier},
		{name: "unbounded over open tier", min: 100, max: nil, err: domain.ErrOverlappingTier},
		{name: "inverted range", min: 5, max: intPtr(2), err: domain.ErrInvalidQuantityRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.AddItem(context.Background(), domain.AddItemRequest{
				TenantID: 1, PriceListID: list.ID, SKUID: sku,
				Price: decimal.NewFromInt(1), MinQuantity: tc.min, MaxQuantity: tc.max,
			})
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := f.svc.AddItem(context.Background(), domain.AddItemRequest{
		TenantID: 1, PriceListID: list.ID, SKUID: 99, Price: decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = f.svc.AddItem(context.Background(), domain.AddItemRequest{
		TenantID: 1, PriceListID: 424242, SKUID: 99, Price: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.svc.GetPriceList(context.Background(), 1, list.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 4)
}

func TestBulkAdjustPrices(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy())
	list := mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House", JurisdictionType: domain.JurisdictionDefault,
	})
	a := mustItem(t, f.svc, list, 1, "10.00", 1, nil)
	b := mustItem(t, f.svc, list, 2, "19.99", 1, nil)
	untouched := mustItem(t, f.svc, list, 3, "5.00", 1, nil)

	res, err := f.svc.BulkAdjustPrices(context.Background(), domain.BulkAdjustRequest{
		TenantID:      1,
		PriceListID:   list.ID,
		SKUIDs:        []snowflake.ID{1, 2},
		PercentChange: decimal.RequireFromString("12.5"),
		Actor:         system,
	})
	require.NoError(t, err)
	require.Len(t, res.Updated, 2)
	assert.Empty(t, res.Rejected)

	prices := currentPrices(t, f.svc, list)
	assert.Equal(t, "11.25", prices[a.ID])
	assert.Equal(t, "22.49", prices[b.ID])
	assert.Equal(t, "5.00", prices[untouched.ID])
	assert.Contains(t, f.audit.actions, auditdomain.ActionPriceListBulkAdjusted)
}

func TestBulkAdjustPricesIsAllOrNothing(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy())
	list := mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House", JurisdictionType: domain.JurisdictionDefault,
	})
	a := mustItem(t, f.svc, list, 1, "10.00", 1, nil)
	b := mustItem(t, f.svc, list, 2, "0.00", 1, nil)

	// -150% leaves the zero-priced tier at zero but drives the other negative
	res, err := f.svc.BulkAdjustPrices(context.Background(), domain.BulkAdjustRequest{
		TenantID:      1,
		PriceListID:   list.ID,
		SKUIDs:        []snowflake.ID{1, 2},
		PercentChange: decimal.NewFromInt(-150),
		Actor:         system,
	})
	require.ErrorIs(t, err, domain.ErrNegativePrice)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, res.Updated)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, a.ID, res.Rejected[0].PriceListItemID)

	prices := currentPrices(t, f.svc, list)
	assert.Equal(t, "10.00", prices[a.ID])
	assert.Equal(t, "0.00", prices[b.ID])
}

func TestBulkAdjustRounding(t *testing.T) {
	item := "0.10"
	cases := []struct {
		mode config.RoundingMode
		want string
	}{
		// 0.10 * 1.25 = 0.125
		{mode: config.RoundingHalfUp, want: "0.13"},
		{mode: config.RoundingHalfEven, want: "0.12"},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			policy := config.DefaultPolicy()
			policy.Rounding = tc.mode
			f := newFixture(t, policy)
			list := mustList(t, f.svc, domain.CreatePriceListRequest{
				TenantID: 1, Name: "House", JurisdictionType: domain.JurisdictionDefault,
			})
			created := mustItem(t, f.svc, list, 1, item, 1, nil)

			_, err := f.svc.BulkAdjustPrices(context.Background(), domain.BulkAdjustRequest{
				TenantID: 1, PriceListID: list.ID, SKUIDs: []snowflake.ID{1}, PercentChange: decimal.NewFromInt(25),
				Actor: system,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, currentPrices(t, f.svc, list)[created.ID])
		})
	}
}

func TestBulkAdjustValidation(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy())
	_, err := f.svc.BulkAdjustPrices(context.Background(), domain.BulkAdjustRequest{TenantID: 1, PriceListID: 1, Actor: system})
	assert.ErrorIs(t, err, domain.ErrEmptySelection)

	_, err = f.svc.BulkAdjustPrices(context.Background(), domain.BulkAdjustRequest{
		TenantID: 1, PriceListID: 1, SKUIDs: []snowflake.ID{1}, Actor: system,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func currentPrices(t *testing.T, svc domain.Service, list domain.PriceList) map[snowflake.ID]string {
	t.Helper()
	got, err := svc.GetPriceList(context.Background(), list.TenantID, list.ID)
	require.NoError(t, err)
	out := make(map[snowflake.ID]string, len(got.Items))
	for _, item := range got.Items {
		out[item.ID] = item.Price.StringFixed(2)
	}
	return out
}

func TestBulkAdjustRequiresPermission(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy())
	list := mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House", JurisdictionType: domain.JurisdictionDefault,
	})
	item := mustItem(t, f.svc, list, 1, "10.00", 1, nil)

	for _, actor := range []authorization.Actor{
		salesRep,
		{ID: "42", Role: authorization.RoleManager},
	} {
		_, err := f.svc.BulkAdjustPrices(context.Background(), domain.BulkAdjustRequest{
			TenantID: 1, PriceListID: list.ID, SKUIDs: []snowflake.ID{1}, PercentChange: decimal.NewFromInt(10),
			Actor: actor,
		})
		require.ErrorIs(t, err, authorization.ErrForbidden, actor.Role)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	}

	_, err := f.svc.BulkAdjustPrices(context.Background(), domain.BulkAdjustRequest{
		TenantID: 1, PriceListID: list.ID, SKUIDs: []snowflake.ID{1}, PercentChange: decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, authorization.ErrInvalidActor)
	assert.Equal(t, "10.00", currentPrices(t, f.svc, list)[item.ID])

	_, err = f.svc.BulkAdjustPrices(context.Background(), domain.BulkAdjustRequest{
		TenantID: 1, PriceListID: list.ID, SKUIDs: []snowflake.ID{1}, PercentChange: decimal.NewFromInt(10),
		Actor: authorization.Actor{ID: "1", Role: authorization.RoleAdmin},
	})
	require.NoError(t, err)
	assert.Equal(t, "11.00", currentPrices(t, f.svc, list)[item.ID])
}

func TestDisabledListRejectsChanges(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy())
	ctx := context.Background()
	list := mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "Virginia", JurisdictionType: domain.JurisdictionState, JurisdictionValue: "VA",
	})
	item := mustItem(t, f.svc, list, 1, "10.00", 1, intPtr(11))
	require.NoError(t, f.svc.DisablePriceList(ctx, 1, list.ID))

	_, err := f.svc.AddItem(ctx, domain.AddItemRequest{
		TenantID: 1, PriceListID: list.ID, SKUID: 1, Price: decimal.NewFromInt(9), MinQuantity: 12,
	})
	require.ErrorIs(t, err, domain.ErrPriceListDisabled)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.BulkAdjustPrices(ctx, domain.BulkAdjustRequest{
		TenantID: 1, PriceListID: list.ID, SKUIDs: []snowflake.ID{1}, PercentChange: decimal.NewFromInt(10),
		Actor: system,
	})
	require.ErrorIs(t, err, domain.ErrPriceListDisabled)

	got, err := f.svc.GetPriceList(ctx, 1, list.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "10.00", got.Items[0].Price.StringFixed(2))
	assert.Equal(t, item.ID, got.Items[0].ID)
}

// staleDefaultRepo never sees an existing default, as if a concurrent create
// committed between the check and the insert.
type staleDefaultRepo struct {
	domain.Repository
}

func (staleDefaultRepo) FindActiveDefault(context.Context, *gorm.DB, snowflake.ID) (*domain.PriceList, error) {
	return nil, nil
}

func TestCreatePriceListDefaultRaceMapsToConflict(t *testing.T) {
	f := newFixtureWithRepo(t, config.DefaultPolicy(), staleDefaultRepo{Repository: repository.Provide()})
	ctx := context.Background()

	mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House", JurisdictionType: domain.JurisdictionDefault,
	})
	_, err := f.svc.CreatePriceList(ctx, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House 2", JurisdictionType: domain.JurisdictionDefault,
	})
	require.ErrorIs(t, err, domain.ErrDefaultPriceListExists)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// non-default lists are not affected by the index
	mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "Virginia", JurisdictionType: domain.JurisdictionState, JurisdictionValue: "VA",
	})

	lists, err := f.svc.ListPriceLists(ctx, domain.ListPriceListsRequest{TenantID: 1, ActiveOnly: true})
	require.NoError(t, err)
	defaults := 0
	for _, list := range lists {
		if list.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestCreatePriceListConcurrentDefaults(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy())

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreatePriceList(context.Background(), domain.CreatePriceListRequest{
				TenantID: 1, Name: "House", JurisdictionType: domain.JurisdictionDefault,
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrDefaultPriceListExists)
	}
	assert.Equal(t, 1, created)
}

func TestAddItemConcurrentOverlap(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy())
	list := mustList(t, f.svc, domain.CreatePriceListRequest{
		TenantID: 1, Name: "House", JurisdictionType: domain.JurisdictionDefault,
	})

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every range covers quantity 12
			_, errs[i] = f.svc.AddItem(context.Background(), domain.AddItemRequest{
				TenantID: 1, PriceListID: list.ID, SKUID: 77,
				Price: decimal.NewFromInt(int64(10 + i)), MinQuantity: 12 - i, MaxQuantity: intPtr(12 + i),
			})
		}(i)
	}
	wg.Wait()

	added := 0
	for _, err := range errs {
		if err == nil {
			added++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrOverlappingTier)
	}
	assert.Equal(t, 1, added)

	got, err := f.svc.GetPriceList(context.Background(), 1, list.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
}
