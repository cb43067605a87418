// Package format builds and parses SSYYNNNNN invoice numbers.
//
// SS is a two-letter jurisdiction code, YY the last two digits of the
// delivery year and NNNNN a zero-padded sequence within that prefix.
package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	CodeLength     = 2
	PrefixLength   = 4
	SequenceDigits = 5
	NumberLength   = PrefixLength + SequenceDigits

	// MaxSequence is the largest sequence a prefix can hold.
	MaxSequence = 99999

	TaxExemptCode = "TE"
	padChar       = "X"
)

var ErrInvalidInvoiceNumber = errors.New("invalid invoice number")

// Customer is the subset of customer fields that decide the jurisdiction code.
type Customer struct {
	InvoiceStateCode *string
	IsTaxExempt      bool
	State            string
}

// Parsed is a decoded invoice number.
type Parsed struct {
	StateCode string `json:"state_code"`
	Year      int    `json:"year"`
	Sequence  int    `json:"sequence"`
}

// Prefix returns the SSYY allocation key.
func (p Parsed) Prefix() string {
	return p.StateCode + twoDigitYear(p.Year)
}

func (p Parsed) String() string {
	return FormatInvoiceNumber(p.StateCode, p.Year, p.Sequence)
}

// JurisdictionCode picks the explicit invoice code, then TE for exempt
// customers, then the customer state, then fallback. A candidate without any
// A-Z letter is skipped.
func JurisdictionCode(c Customer, fallback string) string {
	if c.InvoiceStateCode != nil && codeLetters(*c.InvoiceStateCode) != "" {
		return NormalizeCode(*c.InvoiceStateCode)
	}
	if c.IsTaxExempt {
		return TaxExemptCode
	}
	if codeLetters(c.State) != "" {
		return NormalizeCode(c.State)
	}
	return NormalizeCode(fallback)
}

// NormalizeCode keeps the first two ASCII letters of code, upper-cased, and
// pads with X. The result always parses back as a state code.
func NormalizeCode(code string) string {
	letters := codeLetters(code)
	return letters + strings.Repeat(padChar, CodeLength-len(letters))
}

// IsStateCode reports whether code is exactly two ASCII letters.
func IsStateCode(code string) bool {
	code = strings.TrimSpace(code)
	return len(code) == CodeLength && codeLetters(code) == strings.ToUpper(code)
}

func codeLetters(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if r < 'A' || r > 'Z' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == CodeLength {
			break
		}
	}
	return b.String()
}

// Prefix returns SSYY for a delivery date.
func Prefix(code string, deliveryDate time.Time) string {
	return NormalizeCode(code) + twoDigitYear(deliveryDate.Year())
}

// FormatInvoiceNumber renders code, year and sequence as SSYYNNNNN.
func FormatInvoiceNumber(code string, year, seq int) string {
	return fmt.Sprintf("%s%s%0*d", NormalizeCode(code), twoDigitYear(year), SequenceDigits, seq)
}

// ParseInvoiceNumber decodes s. Year is the two-digit year as written.
func ParseInvoiceNumber(s string) (Parsed, error) {
	if len(s) != NumberLength {
		return Parsed{}, fmt.Errorf("%w: length %d", ErrInvalidInvoiceNumber, len(s))
	}
	code := s[:CodeLength]
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return Parsed{}, fmt.Errorf("%w: state code %q", ErrInvalidInvoiceNumber, code)
		}
	}
	year, ok := digits(s[CodeLength:PrefixLength])
	if !ok {
		return Parsed{}, fmt.Errorf("%w: year %q", ErrInvalidInvoiceNumber, s[CodeLength:PrefixLength])
	}
	seq, ok := digits(s[PrefixLength:])
	if !ok || seq == 0 {
		return Parsed{}, fmt.Errorf("%w: sequence %q", ErrInvalidInvoiceNumber, s[PrefixLength:])
	}
	return Parsed{StateCode: code, Year: year, Sequence: seq}, nil
}

func IsValidInvoiceNumber(s string) bool {
	_, err := ParseInvoiceNumber(s)
	return err == nil
}

func twoDigitYear(year int) string {
	if year < 0 {
		year = -year
	}
	return fmt.Sprintf("%02d", year%100)
}

// digits accepts ASCII digits only, so signs and spaces are rejected.
func digits(s string) (int, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
