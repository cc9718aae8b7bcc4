package enums

import "strings"

// Currency is an ISO-4217 code accepted for order totals.
type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyUSD Currency = "USD"
)

var currencies = []Currency{CurrencyBRL, CurrencyUSD}

func (c Currency) String() string { return string(c) }

// Lower is the form card processors expect.
func (c Currency) Lower() string { return strings.ToLower(string(c)) }

func (c Currency) IsValid() bool { return member(c, currencies) }

// ParseCurrency is case-insensitive.
func ParseCurrency(value string) (Currency, error) {
	return parse("currency", strings.ToUpper(strings.TrimSpace(value)), currencies)
}
