package gst

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultRate is applied when an HSN code has no entry in the rate table.
var DefaultRate = decimal.NewFromInt(18)

// defaultHSNRates is the built-in HSN to GST rate table. Entries loaded from the
// database are layered on top with Resolver.WithOverrides.
var defaultHSNRates = map[string]string{
	"0401": "0",    // fresh milk
	"0402": "5",    // milk powder, condensed milk
	"0701": "0",    // fresh potatoes
	"0713": "0",    // dried pulses
	"0901": "5",    // coffee
	"0902": "5",    // tea
	"1001": "0",    // wheat
	"1006": "5",    // branded rice
	"1101": "5",    // wheat flour
	"1507": "5",    // soya bean oil
	"1701": "5",    // sugar
	"1704": "18",   // sugar confectionery
	"1806": "18",   // chocolate
	"1905": "18",   // biscuits, bakery
	"2106": "18",   // food preparations n.e.s.
	"2201": "18",   // packaged water
	"2202": "28",   // aerated beverages
	"2402": "28",   // cigarettes
	"3004": "12",   // medicaments
	"3305": "18",   // hair preparations
	"3306": "18",   // oral hygiene
	"3401": "18",   // soap
	"3402": "18",   // detergents
	"4818": "18",   // tissue and toilet paper
	"4820": "12",   // notebooks, registers
	"6109": "5",    // t-shirts
	"6403": "18",   // footwear
	"7102": "0.25", // diamonds
	"7113": "3",    // jewellery
	"8415": "28",   // air conditioners
	"8471": "18",   // computers
	"8517": "18",   // telephones
	"8528": "28",   // television sets
	"9403": "18",   // furniture
}

// Resolver maps HSN codes to suggested GST rates. It is immutable after construction
// and safe for concurrent use.
type Resolver struct {
	rates    map[string]decimal.Decimal
	fallback decimal.Decimal
}

// NewResolver builds a resolver over the built-in table with the given fallback rate.
func NewResolver(fallback decimal.Decimal) *Resolver {
	rates := make(map[string]decimal.Decimal, len(defaultHSNRates))
	for code, rate := range defaultHSNRates {
		rates[code] = decimal.RequireFromString(rate)
	}
	return &Resolver{rates: rates, fallback: fallback}
}

// WithOverrides returns a new resolver whose table is the receiver's table plus the
// given entries. Overrides win on conflict.
func (r *Resolver) WithOverrides(overrides map[string]decimal.Decimal) *Resolver {
	if r == nil {
		r = defaultResolver
	}
	rates := make(map[string]decimal.Decimal, len(r.rates)+len(overrides))
	for code, rate := range r.rates {
		rates[code] = rate
	}
	for code, rate := range overrides {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		rates[code] = rate
	}
	return &Resolver{rates: rates, fallback: r.fallback}
}

// LookupRate returns the rate for an exact HSN match. Unknown codes return the
// fallback rate with found=false; they never block billing.
func (r *Resolver) LookupRate(hsnCode string) (rate decimal.Decimal, found bool) {
	if r == nil {
		return DefaultRate, false
	}
	if rate, ok := r.rates[strings.TrimSpace(hsnCode)]; ok {
		return rate, true
	}
	return r.fallback, false
}

// Fallback returns the rate used for unknown HSN codes.
func (r *Resolver) Fallback() decimal.Decimal {
	if r == nil {
		return DefaultRate
	}
	return r.fallback
}

var defaultResolver = NewResolver(DefaultRate)

// LookupRate resolves an HSN code against the built-in table with the 18% fallback.
func LookupRate(hsnCode string) (decimal.Decimal, bool) {
	return defaultResolver.LookupRate(hsnCode)
}
