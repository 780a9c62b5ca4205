package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-kasir/internal/cart"
)

// StoreRepo loads the store's own address, used when tax is based on the
// store location.
type StoreRepo struct {
	Pool *pgxpool.Pool
}

const storeAddressQuery = `
SELECT country, state, city, postcode
FROM store_settings
LIMIT 1`

// StoreAddress implements the store address lookup collaborator.
func (r StoreRepo) StoreAddress(ctx context.Context) (cart.Address, error) {
	var addr cart.Address
	row := r.Pool.QueryRow(ctx, storeAddressQuery)
	if err := row.Scan(&addr.Country, &addr.State, &addr.City, &addr.Postcode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Address{}, fmt.Errorf("store address: %w", ErrNotFound)
		}
		return cart.Address{}, fmt.Errorf("load store address: %w", err)
	}
	return addr, nil
}
