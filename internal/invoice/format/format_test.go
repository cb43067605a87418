package format

import (
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(v string) *string { return &v }

func TestJurisdictionCode(t *testing.T) {
	cases := []struct {
		name     string
		customer Customer
		fallback string
		want     string
	}{
		{name: "explicit code wins", customer: Customer{InvoiceStateCode: strPtr("dc"), IsTaxExempt: true, State: "MD"}, fallback: "VA", want: "DC"},
		{name: "blank explicit code ignored", customer: Customer{InvoiceStateCode: strPtr("  "), State: "md"}, fallback: "VA", want: "MD"},
		{name: "tax exempt", customer: Customer{IsTaxExempt: true, State: "MD"}, fallback: "VA", want: "TE"},
		{name: "state", customer: Customer{State: "md"}, fallback: "VA", want: "MD"},
		{name: "fallback", customer: Customer{}, fallback: "va", want: "VA"},
		{name: "truncated", customer: Customer{State: "Maryland"}, fallback: "VA", want: "MA"},
		{name: "padded", customer: Customer{State: "m"}, fallback: "VA", want: "MX"},
		{name: "digits dropped", customer: Customer{State: "N1"}, fallback: "VA", want: "NX"},
		{name: "no ascii letters falls back", customer: Customer{State: "é"}, fallback: "VA", want: "VA"},
		{name: "explicit code without letters ignored", customer: Customer{InvoiceStateCode: strPtr("12"), State: "MD"}, fallback: "VA", want: "MD"},
		{name: "unusable fallback", customer: Customer{}, fallback: "7", want: "XX"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, JurisdictionCode(tc.customer, tc.fallback))
		})
	}
}

func TestPrefix(t *testing.T) {
	delivery := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "MD26", Prefix("md", delivery))
	assert.Equal(t, "VA05", Prefix("VA", time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "MD2600001", FormatInvoiceNumber("MD", 2026, 1))
	assert.Equal(t, "MD2600002", FormatInvoiceNumber("md", 26, 2))
	assert.Equal(t, "TE2699999", FormatInvoiceNumber("TE", 2026, MaxSequence))
}

func TestParseInvoiceNumber(t *testing.T) {
	parsed, err := ParseInvoiceNumber("MD2600042")
	require.NoError(t, err)
	assert.Equal(t, Parsed{StateCode: "MD", Year: 26, Sequence: 42}, parsed)
	assert.Equal(t, "MD26", parsed.Prefix())
}

func TestParseInvoiceNumberRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"MD260001",
		"MD26000001",
		"MD26ABCDE",
		"md2600001",
		"M12600001",
		"MDX600001",
		"MD26-0001",
		"MD26+0001",
		"MD2600000",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseInvoiceNumber(input)
			assert.ErrorIs(t, err, ErrInvalidInvoiceNumber)
			assert.False(t, IsValidInvoiceNumber(input))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	codes := []string{"MD", "VA", "TE", "DC", "ZZ"}
	years := []int{2000, 2009, 2026, 2099}
	seqs := []int{1, 9, 10, 4242, MaxSequence}
	for _, code := range codes {
		for _, year := range years {
			for _, seq := range seqs {
				number := FormatInvoiceNumber(code, year, seq)
				require.True(t, IsValidInvoiceNumber(number), number)
				parsed, err := ParseInvoiceNumber(number)
				require.NoError(t, err)
				assert.Equal(t, number, parsed.String())
				assert.Equal(t, number, FormatInvoiceNumber(parsed.StateCode, parsed.Year, parsed.Sequence))
			}
		}
	}
}

func TestGeneratedNumbersAlwaysParse(t *testing.T) {
	delivery := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	check := func(state, explicit, fallback string, exempt bool, seq uint16) bool {
		customer := Customer{State: state, IsTaxExempt: exempt}
		if explicit != "" {
			customer.InvoiceStateCode = &explicit
		}
		code := JurisdictionCode(customer, fallback)
		n := int(seq)%MaxSequence + 1
		number := FormatInvoiceNumber(code, delivery.Year(), n)

		parsed, err := ParseInvoiceNumber(number)
		if err != nil {
			t.Logf("state=%q explicit=%q fallback=%q: %s: %v", state, explicit, fallback, number, err)
			return false
		}
		return parsed.Prefix() == Prefix(code, delivery) && parsed.Sequence == n && parsed.String() == number
	}
	require.NoError(t, quick.Check(check, &quick.Config{MaxCount: 2000}))

	for _, state := range []string{"", " ", "N1", "é", "ÉÉ", "Ω", "m-d", "12", "\x00", "Maryland", "\u00e9md"} {
		assert.True(t, check(state, "", "7", false, 1), state)
		assert.True(t, check("", state, "va", false, 42), state)
	}
}

func TestIsStateCode(t *testing.T) {
	for code, want := range map[string]bool{
		"VA": true, "md": true, "V": false, "VAX": false, "7X": false, "é": false, "": false,
	} {
		assert.Equal(t, want, IsStateCode(code), code)
	}
}
