// Package quantity converts bottle counts into wholesale case units for display.
//
// All conversions use exact decimal arithmetic. Case values are rounded
// half away from zero to two places, so 106 bottles of a 12-bottle case
// read as 8.83 cases.
package quantity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const DefaultBottlesPerCase = 12

const casePlaces = 2

// Display is the rendering decision for one quantity.
type Display struct {
	Cases       decimal.Decimal `json:"cases"`
	Bottles     int             `json:"bottles"`
	ShowCases   bool            `json:"show_cases"`
	ShowBottles bool            `json:"show_bottles"`
	CasesText   string          `json:"cases_text"`
}

// Formatter applies a configured default case size when a SKU has none.
type Formatter struct {
	defaultPerCase int
}

func NewFormatter(defaultPerCase int) Formatter {
	if defaultPerCase <= 0 {
		defaultPerCase = DefaultBottlesPerCase
	}
	return Formatter{defaultPerCase: defaultPerCase}
}

func (f Formatter) caseSize(perCase *int) int {
	if perCase != nil && *perCase > 0 {
		return *perCase
	}
	if f.defaultPerCase > 0 {
		return f.defaultPerCase
	}
	return DefaultBottlesPerCase
}

// CasesFromBottles returns bottles / perCase rounded to two places.
func (f Formatter) CasesFromBottles(bottles int, perCase *int) decimal.Decimal {
	size := f.caseSize(perCase)
	return decimal.NewFromInt(int64(bottles)).DivRound(decimal.NewFromInt(int64(size)), casePlaces)
}

// BottlesFromCases returns the nearest whole bottle count for cases.
func (f Formatter) BottlesFromCases(cases decimal.Decimal, perCase *int) int {
	size := f.caseSize(perCase)
	return int(cases.Mul(decimal.NewFromInt(int64(size))).Round(0).IntPart())
}

// DisplayFormat shows bottles only below one full case, otherwise both units.
func (f Formatter) DisplayFormat(bottles int, perCase *int) Display {
	size := f.caseSize(perCase)
	cases := f.CasesFromBottles(bottles, &size)
	showCases := bottles >= size
	return Display{
		Cases:       cases,
		Bottles:     bottles,
		ShowCases:   showCases,
		ShowBottles: true,
		CasesText:   cases.StringFixed(casePlaces),
	}
}

// Format is DisplayFormat under the name used by invoice renderers.
func (f Formatter) Format(bottles int, perCase *int) Display {
	return f.DisplayFormat(bottles, perCase)
}

var std = NewFormatter(DefaultBottlesPerCase)

func CasesFromBottles(bottles int, perCase *int) decimal.Decimal {
	return std.CasesFromBottles(bottles, perCase)
}

func BottlesFromCases(cases decimal.Decimal, perCase *int) int {
	return std.BottlesFromCases(cases, perCase)
}

func DisplayFormat(bottles int, perCase *int) Display {
	return std.DisplayFormat(bottles, perCase)
}

func Format(bottles int, perCase *int) Display {
	return std.Format(bottles, perCase)
}

// LineLabel renders a display as printed on invoice lines.
func LineLabel(d Display) string {
	if !d.ShowCases {
		return fmt.Sprintf("%d btl", d.Bottles)
	}
	return fmt.Sprintf("%s cs / %d btl", d.CasesText, d.Bottles)
}
