// Package discount validates submitted discount codes against the priced
// cart, computes each accepted code's amount, and allocates the amounts
// back onto the matched lines.
package discount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/money"
)

var (
	// ErrDuplicateCodes is a batch-level validation failure raised before
	// any per-code evaluation.
	ErrDuplicateCodes = errors.New("duplicate discount codes submitted")
	// ErrExpired is returned when the code is past its expiry.
	ErrExpired = errors.New("discount code expired")
	// ErrUsageLimitReached indicates the code has exhausted its usage cap.
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	// ErrEmailNotAllowed indicates the customer is not on the code's allow-list.
	ErrEmailNotAllowed = errors.New("discount code not available for this customer")
	// ErrMinimumSpendUnmet indicates the cart subtotal is below the code's minimum.
	ErrMinimumSpendUnmet = errors.New("discount code minimum spend not met")
	// ErrMaximumSpendExceeded indicates the cart subtotal is above the code's maximum.
	ErrMaximumSpendExceeded = errors.New("discount code maximum spend exceeded")
	// ErrNotApplicable indicates no cart line falls inside the code's scope.
	ErrNotApplicable = errors.New("discount code not applicable to cart contents")
)

// Kind distinguishes how a code's value is interpreted.
type Kind string

const (
	KindPercent      Kind = "percent"
	KindFixedCart    Kind = "fixed_cart"
	KindFixedProduct Kind = "fixed_product"
)

// Code is a discount code record as consumed from the lookup collaborator.
type Code struct {
	Code         string
	Kind         Kind
	Percent      decimal.Decimal // percent kinds, e.g. 10 for 10%
	Amount       money.Money     // fixed kinds
	FreeShipping bool

	MinSpend   *money.Money
	MaxSpend   *money.Money
	ExpiresAt  *time.Time
	UsageLimit *int32
	UsedCount  int32

	ProductIDs          []uuid.UUID
	ExcludedProductIDs  []uuid.UUID
	CategoryIDs         []uuid.UUID
	ExcludedCategoryIDs []uuid.UUID
	AllowedEmails       []string
}

// Line is a priced cart line eligible for discount evaluation. Index is
// the line's position in the cart and identifies it in allocations.
type Line struct {
	Index       int
	ProductID   uuid.UUID
	CategoryIDs []uuid.UUID
	Qty         int
	Subtotal    money.Money
}

// LineShare is one line's allocated portion of an applied discount.
type LineShare struct {
	LineIndex int
	Amount    money.Money
}

// Applied is the resolved effect of one accepted code.
type Applied struct {
	Code         string
	Amount       money.Money
	FreeShipping bool
	Shares       []LineShare
}

// Rejection records why a submitted code was not applied. Rejections are
// non-fatal; the rest of the cart computes normally.
type Rejection struct {
	Code   string
	Reason string
}

// Outcome aggregates the evaluation of one code batch.
type Outcome struct {
	Applied       []Applied
	Rejections    []Rejection
	TotalDiscount money.Money
	FreeShipping  bool
}

// Validate checks the code's eligibility gates against the pre-discount
// cart subtotal, the customer email and the evaluation instant.
func (c Code) Validate(asOf time.Time, cartSubtotal money.Money, email string) error {
	if c.ExpiresAt != nil && asOf.After(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.UsageLimit != nil && *c.UsageLimit >= 0 && c.UsedCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if len(c.AllowedEmails) > 0 && !emailAllowed(c.AllowedEmails, email) {
		return ErrEmailNotAllowed
	}
	if c.MinSpend != nil && cartSubtotal < *c.MinSpend {
		return ErrMinimumSpendUnmet
	}
	if c.MaxSpend != nil && cartSubtotal > *c.MaxSpend {
		return ErrMaximumSpendExceeded
	}
	return nil
}

// Matches reports whether the line falls inside the code's scope.
// Exclusion sets take precedence over inclusion sets.
func (c Code) Matches(line Line) bool {
	if containsUUID(c.ExcludedProductIDs, line.ProductID) {
		return false
	}
	for _, cat := range line.CategoryIDs {
		if containsUUID(c.ExcludedCategoryIDs, cat) {
			return false
		}
	}
	if len(c.ProductIDs) == 0 && len(c.CategoryIDs) == 0 {
		return true
	}
	if containsUUID(c.ProductIDs, line.ProductID) {
		return true
	}
	for _, cat := range line.CategoryIDs {
		if containsUUID(c.CategoryIDs, cat) {
			return true
		}
	}
	return false
}

// Evaluate processes the submitted codes in order. Duplicate codes fail
// the whole batch; every other failure is recorded as a per-code
// rejection. Accepted codes stack additively: each code is computed
// against the line bases remaining after the codes before it, which keeps
// the total discount from ever exceeding the pre-discount subtotal.
func Evaluate(codes []Code, lines []Line, email string, asOf time.Time) (Outcome, error) {
	submitted := make([]string, len(codes))
	for i, c := range codes {
		submitted[i] = c.Code
	}
	if err := CheckDuplicates(submitted); err != nil {
		return Outcome{}, err
	}
	var cartSubtotal money.Money
	remaining := make([]money.Money, len(lines))
	for i, l := range lines {
		cartSubtotal += l.Subtotal
		remaining[i] = l.Subtotal
	}

	var out Outcome
	for _, c := range codes {
		if err := c.Validate(asOf, cartSubtotal, email); err != nil {
			out.Rejections = append(out.Rejections, Rejection{Code: c.Code, Reason: err.Error()})
			continue
		}
		applied, err := apply(c, lines, remaining)
		if err != nil {
			out.Rejections = append(out.Rejections, Rejection{Code: c.Code, Reason: err.Error()})
			continue
		}
		for _, share := range applied.Shares {
			remaining[share.LineIndex] -= share.Amount
		}
		out.Applied = append(out.Applied, applied)
		out.TotalDiscount += applied.Amount
		if applied.FreeShipping {
			out.FreeShipping = true
		}
	}
	return out, nil
}

func apply(c Code, lines []Line, remaining []money.Money) (Applied, error) {
	matched := make([]Line, 0, len(lines))
	var base money.Money
	for i, l := range lines {
		if c.Matches(l) && remaining[i] > 0 {
			l.Index = i
			matched = append(matched, l)
			base += remaining[i]
		}
	}
	if len(matched) == 0 || base <= 0 {
		return Applied{}, ErrNotApplicable
	}

	applied := Applied{Code: c.Code, FreeShipping: c.FreeShipping}
	switch c.Kind {
	case KindFixedProduct:
		// Per-line amounts are direct rather than proportional: flat amount
		// times line quantity, capped at what is left of that line.
		for _, l := range matched {
			amount := money.Clamp(c.Amount*int64(l.Qty), remaining[l.Index])
			if amount == 0 {
				continue
			}
			applied.Shares = append(applied.Shares, LineShare{LineIndex: l.Index, Amount: amount})
			applied.Amount += amount
		}
		if applied.Amount == 0 {
			return Applied{}, ErrNotApplicable
		}
		return applied, nil
	case KindPercent:
		if c.Percent.Sign() <= 0 {
			return Applied{}, fmt.Errorf("invalid percent value: %w", ErrNotApplicable)
		}
		applied.Amount = money.Clamp(money.ApplyPercent(base, c.Percent), base)
	default: // KindFixedCart
		applied.Amount = money.Clamp(c.Amount, base)
	}
	if applied.Amount == 0 {
		return Applied{}, ErrNotApplicable
	}
	applied.Shares = allocate(applied.Amount, matched, remaining, base)
	return applied, nil
}

// allocate distributes amount across the matched lines proportionally to
// each line's share of the matched base. Every share is capped at what is
// left of its line, so no line is ever pushed negative; rounding residue
// is settled onto matched lines that still have capacity. The caller
// clamps amount to base, which guarantees the residue always fits.
func allocate(amount money.Money, matched []Line, remaining []money.Money, base money.Money) []LineShare {
	amountDec := money.ToDecimal(amount)
	baseDec := money.ToDecimal(base)
	shares := make([]money.Money, len(matched))
	var distributed money.Money
	for i, l := range matched {
		share := money.FromDecimal(amountDec.Mul(money.ToDecimal(remaining[l.Index])).Div(baseDec))
		share = money.Clamp(share, remaining[l.Index])
		if distributed+share > amount {
			share = amount - distributed
		}
		shares[i] = share
		distributed += share
	}
	for i := len(matched) - 1; i >= 0 && distributed < amount; i-- {
		extra := money.Clamp(amount-distributed, remaining[matched[i].Index]-shares[i])
		shares[i] += extra
		distributed += extra
	}
	out := make([]LineShare, 0, len(matched))
	for i, l := range matched {
		out = append(out, LineShare{LineIndex: l.Index, Amount: shares[i]})
	}
	return out
}

// CheckDuplicates validates a submitted code batch before any per-code
// evaluation. Comparison is case-insensitive.
func CheckDuplicates(codes []string) error {
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateCodes, c)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func emailAllowed(allowed []string, email string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

func containsUUID(set []uuid.UUID, id uuid.UUID) bool {
	for _, el := range set {
		if el == id {
			return true
		}
	}
	return false
}
