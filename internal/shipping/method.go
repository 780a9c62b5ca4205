package shipping

import "github.com/noah-isme/backend-kasir/internal/money"

// MethodKind discriminates the shipping method variants.
type MethodKind string

const (
	KindFlatRate     MethodKind = "flat_rate"
	KindFreeShipping MethodKind = "free_shipping"
	KindLocalPickup  MethodKind = "local_pickup"
	KindCarrier      MethodKind = "carrier"
)

// Method is the closed set of shipping method variants a zone can carry.
// Each variant holds exactly one payload; there is no record with four
// nullable configurations to validate.
type Method interface {
	ID() string
	Title() string
	Kind() MethodKind
	isMethod()
}

// ClassSurcharge adds a per-shipping-class cost to a flat-rate method.
// When a class has multiple configured entries the one with the highest
// Specificity wins.
type ClassSurcharge struct {
	ClassID     string
	Cost        money.Money
	Specificity int
}

// FlatRate charges a base cost plus per-class surcharges.
type FlatRate struct {
	MethodID    string
	MethodTitle string
	BaseCost    money.Money
	Surcharges  []ClassSurcharge
}

func (m FlatRate) ID() string       { return m.MethodID }
func (m FlatRate) Title() string    { return m.MethodTitle }
func (m FlatRate) Kind() MethodKind { return KindFlatRate }
func (FlatRate) isMethod()          {}

// Condition gates when a free-shipping method is eligible.
type Condition string

const (
	ConditionAlways            Condition = "always"
	ConditionCoupon            Condition = "coupon"
	ConditionMinAmount         Condition = "min_amount"
	ConditionMinAmountOrCoupon Condition = "min_amount_or_coupon"
	// ConditionMinAmountAndCoupon requires both the spend threshold and a
	// free-shipping-granting coupon.
	ConditionMinAmountAndCoupon Condition = "min_amount_and_coupon"
)

// FreeShipping is eligible only while its configured condition holds.
type FreeShipping struct {
	MethodID    string
	MethodTitle string
	Requires    Condition
	MinAmount   money.Money
	// MinAmountAfterDiscount compares the spend threshold against the
	// subtotal after coupon deduction instead of the default pre-discount
	// subtotal. Kept as a per-method flag; there is no global policy.
	MinAmountAfterDiscount bool
}

func (m FreeShipping) ID() string       { return m.MethodID }
func (m FreeShipping) Title() string    { return m.MethodTitle }
func (m FreeShipping) Kind() MethodKind { return KindFreeShipping }
func (FreeShipping) isMethod()          {}

// LocalPickup charges a fixed cost independent of weight or class.
type LocalPickup struct {
	MethodID    string
	MethodTitle string
	Cost        money.Money
}

func (m LocalPickup) ID() string       { return m.MethodID }
func (m LocalPickup) Title() string    { return m.MethodTitle }
func (m LocalPickup) Kind() MethodKind { return KindLocalPickup }
func (LocalPickup) isMethod()          {}

// CarrierRate quotes its cost from an external carrier rate client.
type CarrierRate struct {
	MethodID    string
	MethodTitle string
	Courier     string
	Service     string
}

func (m CarrierRate) ID() string       { return m.MethodID }
func (m CarrierRate) Title() string    { return m.MethodTitle }
func (m CarrierRate) Kind() MethodKind { return KindCarrier }
func (CarrierRate) isMethod()          {}
