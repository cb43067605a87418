// Package resolver selects the applicable price tier from a catalog snapshot.
// It performs no I/O.
package resolver

import (
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	pricelistdomain "github.com/smallbiznis/vintner/internal/pricelist/domain"
	"github.com/smallbiznis/vintner/internal/pricing/domain"
)

const unranked = -1

type rule struct {
	rank    int
	matches func(list pricelistdomain.PriceList, customer customerdomain.Customer) bool
}

// rules is ordered most to least specific; a list takes the rank of the first
// rule it satisfies.
var rules = []rule{
	{rank: 0, matches: assignedCustom},
	{rank: 1, matches: stateMatch},
	{rank: 2, matches: regionMatch},
	{rank: 3, matches: tenantDefault},
}

type candidate struct {
	rank int
	list pricelistdomain.PriceList
}

// Resolve returns the tier with the highest qualifying MinQuantity from the
// most specific list that has one.
func Resolve(catalog []pricelistdomain.PriceList, customer customerdomain.Customer, skuID snowflake.ID, quantity int, at time.Time) (domain.PriceResolution, error) {
	if quantity < 1 {
		return domain.PriceResolution{}, domain.ErrInvalidQuantity
	}

	for _, c := range rankLists(catalog, customer, at) {
		item, ok := SelectTier(c.list.Items, skuID, quantity)
		if !ok {
			continue
		}
		return domain.PriceResolution{
			PriceListID:         c.list.ID,
			PriceListItemID:     item.ID,
			JurisdictionType:    c.list.JurisdictionType,
			Price:               item.Price,
			Currency:            c.list.Currency,
			MinQuantity:         item.MinQuantity,
			MaxQuantity:         item.MaxQuantity,
			AllowManualOverride: c.list.AllowManualOverride,
		}, nil
	}
	return domain.PriceResolution{}, domain.ErrPriceNotFound
}

// rankLists orders the lists eligible for customer at t. Ties break by creation
// time, then ID.
func rankLists(catalog []pricelistdomain.PriceList, customer customerdomain.Customer, at time.Time) []candidate {
	out := make([]candidate, 0, len(catalog))
	for _, list := range catalog {
		if list.TenantID != customer.TenantID || !list.EffectiveAt(at) {
			continue
		}
		if rank := rankOf(list, customer); rank != unranked {
			out = append(out, candidate{rank: rank, list: list})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if !a.list.CreatedAt.Equal(b.list.CreatedAt) {
			return a.list.CreatedAt.Before(b.list.CreatedAt)
		}
		return a.list.ID < b.list.ID
	})
	return out
}

// SelectTier picks, among the items for skuID that contain quantity, the one
// with the highest MinQuantity.
func SelectTier(items []pricelistdomain.PriceListItem, skuID snowflake.ID, quantity int) (pricelistdomain.PriceListItem, bool) {
	var (
		best  pricelistdomain.PriceListItem
		found bool
	)
	for _, item := range items {
		if item.SKUID != skuID || !item.Contains(quantity) {
			continue
		}
		if !found || item.MinQuantity > best.MinQuantity {
			best = item
			found = true
		}
	}
	return best, found
}

func rankOf(list pricelistdomain.PriceList, customer customerdomain.Customer) int {
	for _, r := range rules {
		if r.matches(list, customer) {
			return r.rank
		}
	}
	return unranked
}

func assignedCustom(list pricelistdomain.PriceList, customer customerdomain.Customer) bool {
	if list.JurisdictionType != pricelistdomain.JurisdictionCustom {
		return false
	}
	if customer.CustomPriceListID != nil && *customer.CustomPriceListID == list.ID {
		return true
	}
	return strings.TrimSpace(list.JurisdictionValue) == customer.ID.String()
}

func stateMatch(list pricelistdomain.PriceList, customer customerdomain.Customer) bool {
	return list.JurisdictionType == pricelistdomain.JurisdictionState && sameValue(list.JurisdictionValue, customer.State)
}

func regionMatch(list pricelistdomain.PriceList, customer customerdomain.Customer) bool {
	return list.JurisdictionType == pricelistdomain.JurisdictionRegion && sameValue(list.JurisdictionValue, customer.Territory)
}

func tenantDefault(list pricelistdomain.PriceList, _ customerdomain.Customer) bool {
	return list.IsDefault
}

func sameValue(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
