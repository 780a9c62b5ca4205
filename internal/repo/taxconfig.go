package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/tax"
)

// TaxConfigRepo loads tax rates and the store-wide tax options.
type TaxConfigRepo struct {
	Pool *pgxpool.Pool
}

const taxOptionsQuery = `
SELECT prices_include_tax, round_at_subtotal, based_on
FROM tax_settings
LIMIT 1`

const taxRatesQuery = `
SELECT id, label, percent, country, state, postcode, compound, applies_to_shipping
FROM tax_rates
WHERE tax_class_id = $1
ORDER BY priority, id`

// Options returns the global tax options. Absent configuration falls back
// to exclusive prices taxed on the shipping address.
func (r TaxConfigRepo) Options(ctx context.Context) (tax.Options, error) {
	var (
		includeTax bool
		roundSub   bool
		basedOn    string
	)
	row := r.Pool.QueryRow(ctx, taxOptionsQuery)
	if err := row.Scan(&includeTax, &roundSub, &basedOn); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tax.Options{BasedOn: tax.BasisShipping}, nil
		}
		return tax.Options{}, fmt.Errorf("load tax settings: %w", err)
	}
	opts := tax.Options{
		PricesIncludeTax: includeTax,
		RoundAtSubtotal:  roundSub,
		BasedOn:          tax.Basis(basedOn),
	}
	if opts.BasedOn == "" {
		opts.BasedOn = tax.BasisShipping
	}
	return opts, nil
}

// Rates returns the configured rate entries for a tax classification, in
// configured priority order. An empty result is valid configuration.
func (r TaxConfigRepo) Rates(ctx context.Context, taxClassID string) ([]tax.Rate, error) {
	rows, err := r.Pool.Query(ctx, taxRatesQuery, taxClassID)
	if err != nil {
		return nil, fmt.Errorf("load tax rates: %w", err)
	}
	defer rows.Close()
	var out []tax.Rate
	for rows.Next() {
		var rate tax.Rate
		var percent string
		if err := rows.Scan(&rate.ID, &rate.Label, &percent, &rate.Country, &rate.State, &rate.Postcode, &rate.Compound, &rate.AppliesToShipping); err != nil {
			return nil, fmt.Errorf("scan tax rate: %w", err)
		}
		rate.Percent, err = decimal.NewFromString(percent)
		if err != nil {
			return nil, fmt.Errorf("parse tax rate percent: %w", err)
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}
