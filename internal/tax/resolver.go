// Package tax resolves the applicable tax-rate entries for an address and
// computes tax amounts, including compound (tax-on-tax) rates and
// tax-inclusive back-out.
package tax

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/money"
)

// Basis selects which address a taxable amount is resolved against.
type Basis string

const (
	BasisShipping Basis = "shipping"
	BasisBilling  Basis = "billing"
	BasisStore    Basis = "store"
)

// Address is the region a tax lookup is resolved for.
type Address struct {
	Country  string
	State    string
	City     string
	Postcode string
}

// Rate is one configured tax-rate entry for a tax classification.
type Rate struct {
	ID      string
	Label   string
	Percent decimal.Decimal

	// Region match fields. Empty matches everything; Postcode supports a
	// trailing '*' wildcard.
	Country  string
	State    string
	Postcode string

	Compound          bool
	AppliesToShipping bool
}

// Matches reports whether the rate applies to the address.
func (r Rate) Matches(addr Address) bool {
	if r.Country != "" && !strings.EqualFold(r.Country, addr.Country) {
		return false
	}
	if r.State != "" && !strings.EqualFold(r.State, addr.State) {
		return false
	}
	if r.Postcode != "" {
		if prefix, ok := strings.CutSuffix(r.Postcode, "*"); ok {
			if !strings.HasPrefix(strings.ToUpper(addr.Postcode), strings.ToUpper(prefix)) {
				return false
			}
		} else if !strings.EqualFold(r.Postcode, addr.Postcode) {
			return false
		}
	}
	return true
}

// Options are the store-wide tax settings.
type Options struct {
	PricesIncludeTax bool
	RoundAtSubtotal  bool
	BasedOn          Basis
}

// BreakdownItem is the computed amount for one applied rate.
type BreakdownItem struct {
	RateID   string
	Label    string
	Percent  decimal.Decimal
	Amount   money.Money
	Compound bool
}

// Result is the outcome of one tax calculation.
type Result struct {
	Items []BreakdownItem
	// Total is the aggregate tax. With Options.RoundAtSubtotal it is the
	// exact sum rounded once; otherwise it is the sum of the per-item
	// rounded amounts. The two modes may legitimately differ by one minor
	// unit; callers must not reconcile them.
	Total money.Money
	// Exact is the unrounded aggregate, kept so that callers rounding at
	// the subtotal level can sum lines before rounding.
	Exact decimal.Decimal
}

// ForAddress filters the configured rates down to those matching the
// address and orders them for application: non-compound first, compound
// after, preserving configured order within each kind.
func ForAddress(rates []Rate, addr Address) []Rate {
	matched := make([]Rate, 0, len(rates))
	for _, r := range rates {
		if r.Matches(addr) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return !matched[i].Compound && matched[j].Compound
	})
	return matched
}

// ShippingRates keeps only the rates flagged as applying to shipping.
func ShippingRates(rates []Rate) []Rate {
	out := make([]Rate, 0, len(rates))
	for _, r := range rates {
		if r.AppliesToShipping {
			out = append(out, r)
		}
	}
	return out
}

// Calc computes tax for the base amount using rates already filtered and
// ordered by ForAddress. An empty rate set yields zero tax: a
// classification with no configured rates for the region is tax-exempt by
// omission, not an error.
func Calc(base money.Money, rates []Rate, opts Options) Result {
	if len(rates) == 0 || base <= 0 {
		return Result{Exact: decimal.Zero}
	}
	exact := make([]decimal.Decimal, len(rates))
	if opts.PricesIncludeTax {
		backOut(base, rates, exact)
	} else {
		addOn(base, rates, exact)
	}

	res := Result{Items: make([]BreakdownItem, len(rates))}
	var roundedSum money.Money
	for i, r := range rates {
		amount := money.FromDecimal(exact[i])
		res.Items[i] = BreakdownItem{
			RateID:   r.ID,
			Label:    r.Label,
			Percent:  r.Percent,
			Amount:   amount,
			Compound: r.Compound,
		}
		roundedSum += amount
		res.Exact = res.Exact.Add(exact[i])
	}
	if opts.RoundAtSubtotal {
		res.Total = money.FromDecimal(res.Exact)
	} else {
		res.Total = roundedSum
	}
	return res
}

// addOn computes tax on top of a tax-exclusive base. Non-compound rates
// apply to the original base; each compound rate applies to the base plus
// all tax accumulated before it.
func addOn(base money.Money, rates []Rate, exact []decimal.Decimal) {
	running := money.ToDecimal(base)
	for i, r := range rates {
		if r.Compound {
			exact[i] = running.Mul(r.Percent).Div(decimal.NewFromInt(100))
		} else {
			exact[i] = money.PercentOf(base, r.Percent)
		}
		running = running.Add(exact[i])
	}
}

// backOut extracts the tax portion from a tax-inclusive base:
// amount = base - base/(1+rate), unwinding compound rates in reverse
// application order before splitting the remaining inclusive amount
// across the non-compound rates.
func backOut(base money.Money, rates []Rate, exact []decimal.Decimal) {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	working := money.ToDecimal(base)
	for i := len(rates) - 1; i >= 0; i-- {
		if !rates[i].Compound {
			continue
		}
		divisor := one.Add(rates[i].Percent.Div(hundred))
		tax := working.Sub(working.Div(divisor))
		exact[i] = tax
		working = working.Sub(tax)
	}
	var ncSum decimal.Decimal
	for _, r := range rates {
		if !r.Compound {
			ncSum = ncSum.Add(r.Percent)
		}
	}
	if ncSum.IsZero() {
		return
	}
	divisor := one.Add(ncSum.Div(hundred))
	ncTax := working.Sub(working.Div(divisor))
	for i, r := range rates {
		if !r.Compound {
			exact[i] = ncTax.Mul(r.Percent).Div(ncSum)
		}
	}
}
