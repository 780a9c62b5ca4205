// Package catalog defines the catalog lookup collaborator: the per-product
// pricing inputs the engine consumes but never stores.
package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/money"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// StockRef identifies the stock record backing a catalog entry. It is a
// closed variant: stock belongs to either a product or a variant, never to
// two nullable foreign keys at once.
type StockRef interface {
	RefID() uuid.UUID
	isStockRef()
}

// ProductStock references product-level stock.
type ProductStock struct {
	ProductID uuid.UUID
}

func (s ProductStock) RefID() uuid.UUID { return s.ProductID }
func (ProductStock) isStockRef()        {}

// VariantStock references variant-level stock.
type VariantStock struct {
	VariantID uuid.UUID
}

func (s VariantStock) RefID() uuid.UUID { return s.VariantID }
func (VariantStock) isStockRef()        {}

// Record carries everything the pricing pipeline needs to know about one
// product or variant.
type Record struct {
	ProductID       uuid.UUID
	VariantID       *uuid.UUID
	Title           string
	RegularPrice    money.Money
	Sale            *pricing.SalePrice
	Tiers           []pricing.TierPrice
	TaxClassID      string
	ShippingClassID string
	WeightGram      int
	CategoryIDs     []uuid.UUID
	Stock           StockRef
}

// Lookup fetches catalog records. When variantID is set the variant's
// price and weight take precedence over the product's.
type Lookup interface {
	Get(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (Record, error)
}
