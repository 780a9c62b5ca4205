package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/discount"
	"github.com/noah-isme/backend-kasir/internal/money"
)

// DiscountRepo loads discount code records plus their live usage counter.
type DiscountRepo struct {
	Pool *pgxpool.Pool
}

const discountQuery = `
SELECT d.code, d.kind, d.percent, d.amount, d.free_shipping,
       d.min_spend, d.max_spend, d.expires_at, d.usage_limit,
       (SELECT count(*) FROM discount_redemptions r WHERE r.code = d.code) AS used_count,
       d.product_ids::text[], d.excluded_product_ids::text[],
       d.category_ids::text[], d.excluded_category_ids::text[],
       d.allowed_emails
FROM discount_codes d
WHERE lower(d.code) = lower($1)`

// Code resolves a submitted code string. A missing code is not an error;
// it is reported through the found flag so the engine can record a
// per-code rejection instead of failing the calculation.
func (r DiscountRepo) Code(ctx context.Context, code string) (discount.Code, bool, error) {
	var (
		rec               discount.Code
		kind              string
		percent           pgtype.Text
		amount            pgtype.Int8
		minSpend          pgtype.Int8
		maxSpend          pgtype.Int8
		expiresAt         pgtype.Timestamptz
		usageLimit        pgtype.Int4
		usedCount         int64
		productIDs        []string
		excludedProducts  []string
		categoryIDs       []string
		excludedCats      []string
		allowedEmails     []string
	)
	row := r.Pool.QueryRow(ctx, discountQuery, code)
	err := row.Scan(&rec.Code, &kind, &percent, &amount, &rec.FreeShipping,
		&minSpend, &maxSpend, &expiresAt, &usageLimit, &usedCount,
		&productIDs, &excludedProducts, &categoryIDs, &excludedCats, &allowedEmails)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.Code{}, false, nil
		}
		return discount.Code{}, false, fmt.Errorf("load discount code: %w", err)
	}

	rec.Kind = discount.Kind(kind)
	if percent.Valid {
		rec.Percent, err = decimal.NewFromString(percent.String)
		if err != nil {
			return discount.Code{}, false, fmt.Errorf("parse discount percent: %w", err)
		}
	}
	rec.Amount = money.Money(amount.Int64)
	if minSpend.Valid {
		v := money.Money(minSpend.Int64)
		rec.MinSpend = &v
	}
	if maxSpend.Valid {
		v := money.Money(maxSpend.Int64)
		rec.MaxSpend = &v
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		rec.ExpiresAt = &t
	}
	if usageLimit.Valid {
		l := usageLimit.Int32
		rec.UsageLimit = &l
	}
	rec.UsedCount = int32(usedCount)
	rec.AllowedEmails = allowedEmails

	if rec.ProductIDs, err = parseUUIDs(productIDs); err != nil {
		return discount.Code{}, false, err
	}
	if rec.ExcludedProductIDs, err = parseUUIDs(excludedProducts); err != nil {
		return discount.Code{}, false, err
	}
	if rec.CategoryIDs, err = parseUUIDs(categoryIDs); err != nil {
		return discount.Code{}, false, err
	}
	if rec.ExcludedCategoryIDs, err = parseUUIDs(excludedCats); err != nil {
		return discount.Code{}, false, err
	}
	return rec, true, nil
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse uuid %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}
