package quantity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestCasesFromBottles(t *testing.T) {
	cases := []struct {
		name    string
		bottles int
		perCase *int
		want    string
	}{
		{name: "repeating fraction", bottles: 106, perCase: intPtr(12), want: "8.83"},
		{name: "whole cases", bottles: 84, perCase: intPtr(12), want: "7.00"},
		{name: "default case size", bottles: 18, perCase: nil, want: "1.50"},
		{name: "zero case size falls back", bottles: 6, perCase: intPtr(0), want: "0.50"},
		{name: "round half up", bottles: 1, perCase: intPtr(8), want: "0.13"},
		{name: "six pack", bottles: 20, perCase: intPtr(6), want: "3.33"},
		{name: "zero bottles", bottles: 0, perCase: intPtr(24), want: "0.00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CasesFromBottles(tc.bottles, tc.perCase)
			assert.Equal(t, tc.want, got.StringFixed(2))
			assert.LessOrEqual(t, -got.Exponent(), int32(2))
		})
	}
}

func TestCasesFromBottlesIsNotFloat(t *testing.T) {
	got := CasesFromBottles(106, intPtr(12))
	assert.True(t, got.Equal(decimal.RequireFromString("8.83")))
	assert.NotEqual(t, "8.833333", got.String())
}

func TestBottlesFromCases(t *testing.T) {
	assert.Equal(t, 106, BottlesFromCases(decimal.RequireFromString("8.83"), intPtr(12)))
	assert.Equal(t, 84, BottlesFromCases(decimal.RequireFromString("7"), nil))
	assert.Equal(t, 3, BottlesFromCases(decimal.RequireFromString("0.25"), intPtr(12)))
	assert.Equal(t, 4, BottlesFromCases(decimal.RequireFromString("0.3"), intPtr(12)))
}

func TestDisplayFormat(t *testing.T) {
	small := DisplayFormat(6, intPtr(12))
	assert.False(t, small.ShowCases)
	assert.True(t, small.ShowBottles)
	assert.Equal(t, "0.50", small.CasesText)
	assert.Equal(t, "6 btl", LineLabel(small))

	exact := DisplayFormat(84, intPtr(12))
	assert.True(t, exact.ShowCases)
	assert.True(t, exact.ShowBottles)
	assert.Equal(t, "7.00", exact.CasesText)

	mixed := Format(106, intPtr(12))
	assert.Equal(t, "8.83", mixed.CasesText)
	assert.Equal(t, "8.83 cs / 106 btl", LineLabel(mixed))

	edge := DisplayFormat(11, intPtr(12))
	assert.False(t, edge.ShowCases)
}

func TestFormatterUsesConfiguredDefault(t *testing.T) {
	f := NewFormatter(24)
	assert.Equal(t, "2.00", f.CasesFromBottles(48, nil).StringFixed(2))
	assert.Equal(t, "4.00", f.CasesFromBottles(48, intPtr(12)).StringFixed(2))
	assert.False(t, f.DisplayFormat(12, nil).ShowCases)

	assert.Equal(t, "1.00", NewFormatter(-1).CasesFromBottles(12, nil).StringFixed(2))
}
