// Package repo contains the read-only reference-data repositories backing
// the lookup collaborators. The engine only ever reads this data; writes
// belong to the administration surface, not this service.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/money"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// ErrNotFound indicates the requested reference record does not exist.
var ErrNotFound = errors.New("record not found")

// CatalogRepo loads catalog records from Postgres.
type CatalogRepo struct {
	Pool *pgxpool.Pool
}

const productQuery = `
SELECT p.id::text, p.title, p.price, p.sale_price, p.sale_from, p.sale_to,
       p.tax_class_id, p.shipping_class_id, p.weight_gram
FROM products p
WHERE p.id = $1`

const variantQuery = `
SELECT v.price, v.weight_gram
FROM product_variants v
WHERE v.id = $1 AND v.product_id = $2`

const tierQuery = `
SELECT min_qty, price
FROM product_price_tiers
WHERE product_id = $1
ORDER BY min_qty`

const categoryQuery = `
SELECT category_id::text
FROM product_categories
WHERE product_id = $1`

// Get implements the catalog lookup collaborator.
func (r CatalogRepo) Get(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (catalog.Record, error) {
	var (
		id              string
		title           string
		price           int64
		salePrice       pgtype.Int8
		saleFrom        pgtype.Timestamptz
		saleTo          pgtype.Timestamptz
		taxClassID      pgtype.Text
		shippingClassID pgtype.Text
		weightGram      pgtype.Int4
	)
	row := r.Pool.QueryRow(ctx, productQuery, productID)
	if err := row.Scan(&id, &title, &price, &salePrice, &saleFrom, &saleTo, &taxClassID, &shippingClassID, &weightGram); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Record{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		return catalog.Record{}, fmt.Errorf("load product: %w", err)
	}

	rec := catalog.Record{
		ProductID:       productID,
		Title:           title,
		RegularPrice:    money.Money(price),
		TaxClassID:      taxClassID.String,
		ShippingClassID: shippingClassID.String,
		WeightGram:      int(weightGram.Int32),
		Stock:           catalog.ProductStock{ProductID: productID},
	}
	if salePrice.Valid {
		sale := &pricing.SalePrice{Price: salePrice.Int64}
		if saleFrom.Valid {
			from := saleFrom.Time
			sale.From = &from
		}
		if saleTo.Valid {
			to := saleTo.Time
			sale.To = &to
		}
		rec.Sale = sale
	}

	if variantID != nil {
		var vPrice int64
		var vWeight pgtype.Int4
		vrow := r.Pool.QueryRow(ctx, variantQuery, *variantID, productID)
		if err := vrow.Scan(&vPrice, &vWeight); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return catalog.Record{}, fmt.Errorf("variant %s: %w", *variantID, ErrNotFound)
			}
			return catalog.Record{}, fmt.Errorf("load variant: %w", err)
		}
		vid := *variantID
		rec.VariantID = &vid
		rec.RegularPrice = money.Money(vPrice)
		if vWeight.Valid {
			rec.WeightGram = int(vWeight.Int32)
		}
		rec.Stock = catalog.VariantStock{VariantID: vid}
	}

	tiers, err := r.tiers(ctx, productID)
	if err != nil {
		return catalog.Record{}, err
	}
	rec.Tiers = tiers

	cats, err := r.categories(ctx, productID)
	if err != nil {
		return catalog.Record{}, err
	}
	rec.CategoryIDs = cats
	return rec, nil
}

func (r CatalogRepo) tiers(ctx context.Context, productID uuid.UUID) ([]pricing.TierPrice, error) {
	rows, err := r.Pool.Query(ctx, tierQuery, productID)
	if err != nil {
		return nil, fmt.Errorf("load price tiers: %w", err)
	}
	defer rows.Close()
	var tiers []pricing.TierPrice
	for rows.Next() {
		var t pricing.TierPrice
		if err := rows.Scan(&t.MinQty, &t.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan price tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

func (r CatalogRepo) categories(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.Pool.Query(ctx, categoryQuery, productID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse category id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
