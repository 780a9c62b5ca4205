// Package cart orchestrates the pricing-resolution pipeline: line pricing,
// discount evaluation, shipping resolution and tax calculation, assembled
// into one immutable calculation result.
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/discount"
	"github.com/noah-isme/backend-kasir/internal/money"
	"github.com/noah-isme/backend-kasir/internal/shipping"
	"github.com/noah-isme/backend-kasir/internal/tax"
)

// Address is a customer or store address as supplied by the caller.
type Address struct {
	Country  string `json:"country" validate:"required"`
	State    string `json:"state"`
	City     string `json:"city"`
	Postcode string `json:"postalCode"`
}

// LineInput identifies one requested cart line.
type LineInput struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId"`
	Qty       int        `json:"qty" validate:"gt=0"`
}

// Input is the cart as submitted for calculation.
type Input struct {
	Lines                    []LineInput `json:"lines" validate:"required,min=1,dive"`
	DiscountCodes            []string    `json:"discountCodes"`
	SelectedShippingMethodID string      `json:"selectedShippingMethodId"`
}

// Context carries the calculation environment: addresses, customer
// identity and the instant every time-window check is evaluated at. The
// engine never reads the system clock; identical Input+Context yield an
// identical Result.
type Context struct {
	ShippingAddress *Address  `json:"shippingAddress"`
	BillingAddress  *Address  `json:"billingAddress"`
	CustomerEmail   string    `json:"customerEmail"`
	AsOf            time.Time `json:"asOf"`
}

// AppliedDiscount is the resolved effect of one accepted code.
type AppliedDiscount struct {
	Code         string      `json:"code"`
	Amount       money.Money `json:"amount"`
	FreeShipping bool        `json:"freeShipping"`
}

// DiscountShare is a line's allocated portion of one applied code.
type DiscountShare struct {
	Code   string      `json:"code"`
	Amount money.Money `json:"amount"`
}

// LineResult is the full breakdown for one priced cart line.
type LineResult struct {
	ProductID     uuid.UUID           `json:"productId"`
	VariantID     *uuid.UUID          `json:"variantId,omitempty"`
	Title         string              `json:"title"`
	Qty           int                 `json:"qty"`
	UnitPrice     money.Money         `json:"unitPrice"`
	RegularPrice  money.Money         `json:"regularPrice"`
	SaleApplied   bool                `json:"saleApplied"`
	TierMinQty    int                 `json:"tierMinQty,omitempty"`
	Subtotal      money.Money         `json:"subtotal"`
	Discounts     []DiscountShare     `json:"discounts,omitempty"`
	DiscountTotal money.Money         `json:"discountTotal"`
	Total         money.Money         `json:"total"`
	Tax           money.Money         `json:"tax"`
	TaxBreakdown  []tax.BreakdownItem `json:"taxBreakdown,omitempty"`
}

// Rejection mirrors discount.Rejection in the response payload.
type Rejection struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Result is the terminal output of one calculation. It is constructed
// once and never mutated; a new cart state requires a new calculation.
type Result struct {
	Currency         string    `json:"currency"`
	PricesIncludeTax bool      `json:"pricesIncludeTax"`
	TaxDisplayMode   string    `json:"taxDisplayMode"`
	CalculatedAt     time.Time `json:"calculatedAt"`

	Lines []LineResult `json:"lines"`

	Subtotal               money.Money       `json:"subtotal"`
	DiscountTotal          money.Money       `json:"discountTotal"`
	SubtotalAfterDiscounts money.Money       `json:"subtotalAfterDiscounts"`
	AppliedDiscounts       []AppliedDiscount `json:"appliedDiscounts"`
	DiscountRejections     []Rejection       `json:"discountRejections,omitempty"`
	FreeShippingApplied    bool              `json:"freeShippingApplied"`

	ShippingOptions  []shipping.Option `json:"shippingOptions"`
	SelectedShipping *shipping.Option  `json:"selectedShipping,omitempty"`
	ShippingTotal    money.Money       `json:"shippingTotal"`
	ShippingTax      money.Money       `json:"shippingTax"`
	CannotShip       bool              `json:"cannotShip"`
	ShippingNote     string            `json:"shippingNote,omitempty"`

	ItemsTax     money.Money         `json:"itemsTax"`
	TaxBreakdown []tax.BreakdownItem `json:"taxBreakdown"`

	GrandTotal money.Money `json:"grandTotal"`
}

// CatalogLookup supplies per-line pricing inputs.
type CatalogLookup interface {
	Get(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (catalog.Record, error)
}

// TaxConfigLookup supplies the configured tax rates and global options.
type TaxConfigLookup interface {
	Options(ctx context.Context) (tax.Options, error)
	Rates(ctx context.Context, taxClassID string) ([]tax.Rate, error)
}

// ShippingConfigLookup supplies the configured shipping zones.
type ShippingConfigLookup interface {
	Zones(ctx context.Context) ([]shipping.Zone, error)
}

// DiscountLookup resolves a submitted code to its record plus live usage
// counter. A missing code is reported via found=false, not an error.
type DiscountLookup interface {
	Code(ctx context.Context, code string) (discount.Code, bool, error)
}

// StoreAddressLookup supplies the store's own address for tax resolution
// when the store basis is configured.
type StoreAddressLookup interface {
	StoreAddress(ctx context.Context) (Address, error)
}
