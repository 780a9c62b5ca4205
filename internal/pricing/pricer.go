// Package pricing resolves the unit price and subtotal for a single cart
// line from the catalog's regular price, an optional time-bounded sale
// price, and an optional quantity tier table.
package pricing

import (
	"errors"
	"time"

	"github.com/noah-isme/backend-kasir/internal/money"
)

// ErrInvalidQuantity is returned when a line quantity is not positive.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// TierPrice grants a unit price once the requested quantity reaches MinQty.
type TierPrice struct {
	MinQty    int
	UnitPrice money.Money
}

// SalePrice overrides the regular price inside an optional validity window.
// A nil boundary leaves that side of the window open.
type SalePrice struct {
	Price money.Money
	From  *time.Time
	To    *time.Time
}

// Active reports whether the sale applies at the given instant.
func (s SalePrice) Active(asOf time.Time) bool {
	if s.From != nil && asOf.Before(*s.From) {
		return false
	}
	if s.To != nil && asOf.After(*s.To) {
		return false
	}
	return true
}

// Input carries everything needed to price one line.
type Input struct {
	Qty          int
	RegularPrice money.Money
	Sale         *SalePrice
	Tiers        []TierPrice
}

// Quote is the resolved price for one line.
type Quote struct {
	UnitPrice   money.Money
	Subtotal    money.Money
	SaleApplied bool
	TierMinQty  int // 0 when no tier matched
}

// Price resolves the unit price for a line at the given instant.
//
// A currently-active sale price overrides the regular price. Tiers are then
// evaluated: the tier with the highest MinQty that is still <= qty wins and
// replaces the unit price entirely. Tier prices are applied as configured
// even when they exceed the regular price; tier tables are the catalog
// author's responsibility.
func Price(in Input, asOf time.Time) (Quote, error) {
	if in.Qty <= 0 {
		return Quote{}, ErrInvalidQuantity
	}
	q := Quote{UnitPrice: in.RegularPrice}
	if in.Sale != nil && in.Sale.Active(asOf) {
		q.UnitPrice = in.Sale.Price
		q.SaleApplied = true
	}
	for _, tier := range in.Tiers {
		if tier.MinQty <= in.Qty && tier.MinQty > q.TierMinQty {
			q.UnitPrice = tier.UnitPrice
			q.TierMinQty = tier.MinQty
		}
	}
	if q.UnitPrice < 0 {
		q.UnitPrice = 0
	}
	q.Subtotal = int64(in.Qty) * q.UnitPrice
	return q, nil
}
