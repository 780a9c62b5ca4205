package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-kasir/internal/money"
	"github.com/noah-isme/backend-kasir/internal/shipping"
)

// ShippingConfigRepo loads shipping zones and their methods.
type ShippingConfigRepo struct {
	Pool *pgxpool.Pool
}

const zonesQuery = `
SELECT id, name, origin
FROM shipping_zones
ORDER BY position, id`

const zoneLocationsQuery = `
SELECT country, state, postcode
FROM shipping_zone_locations
WHERE zone_id = $1
ORDER BY id`

const zoneMethodsQuery = `
SELECT id, title, kind, base_cost, free_condition, min_amount, min_after_discount, courier, service
FROM shipping_zone_methods
WHERE zone_id = $1
ORDER BY position, id`

const surchargesQuery = `
SELECT class_id, cost, specificity
FROM shipping_class_surcharges
WHERE method_id = $1
ORDER BY id`

// Zones returns the zone configuration in configured order. The first
// matching zone wins downstream, so order here is part of the contract.
func (r ShippingConfigRepo) Zones(ctx context.Context) ([]shipping.Zone, error) {
	rows, err := r.Pool.Query(ctx, zonesQuery)
	if err != nil {
		return nil, fmt.Errorf("load shipping zones: %w", err)
	}
	defer rows.Close()
	var zones []shipping.Zone
	for rows.Next() {
		var z shipping.Zone
		var origin pgtype.Text
		if err := rows.Scan(&z.ID, &z.Name, &origin); err != nil {
			return nil, fmt.Errorf("scan shipping zone: %w", err)
		}
		z.Origin = origin.String
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range zones {
		if zones[i].Locations, err = r.locations(ctx, zones[i].ID); err != nil {
			return nil, err
		}
		if zones[i].Methods, err = r.methods(ctx, zones[i].ID); err != nil {
			return nil, err
		}
	}
	return zones, nil
}

func (r ShippingConfigRepo) locations(ctx context.Context, zoneID string) ([]shipping.LocationRule, error) {
	rows, err := r.Pool.Query(ctx, zoneLocationsQuery, zoneID)
	if err != nil {
		return nil, fmt.Errorf("load zone locations: %w", err)
	}
	defer rows.Close()
	var out []shipping.LocationRule
	for rows.Next() {
		var l shipping.LocationRule
		if err := rows.Scan(&l.Country, &l.State, &l.Postcode); err != nil {
			return nil, fmt.Errorf("scan zone location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// methods builds the method variants from their stored kind tag. A row
// with an unknown kind is skipped rather than failing the whole zone.
func (r ShippingConfigRepo) methods(ctx context.Context, zoneID string) ([]shipping.Method, error) {
	rows, err := r.Pool.Query(ctx, zoneMethodsQuery, zoneID)
	if err != nil {
		return nil, fmt.Errorf("load zone methods: %w", err)
	}
	defer rows.Close()

	type methodRow struct {
		id, title, kind  string
		baseCost         pgtype.Int8
		freeCondition    pgtype.Text
		minAmount        pgtype.Int8
		minAfterDiscount pgtype.Bool
		courier, service pgtype.Text
	}
	var raw []methodRow
	for rows.Next() {
		var m methodRow
		if err := rows.Scan(&m.id, &m.title, &m.kind, &m.baseCost, &m.freeCondition, &m.minAmount, &m.minAfterDiscount, &m.courier, &m.service); err != nil {
			return nil, fmt.Errorf("scan zone method: %w", err)
		}
		raw = append(raw, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var methods []shipping.Method
	for _, m := range raw {
		switch shipping.MethodKind(m.kind) {
		case shipping.KindFlatRate:
			surcharges, err := r.surcharges(ctx, m.id)
			if err != nil {
				return nil, err
			}
			methods = append(methods, shipping.FlatRate{
				MethodID:    m.id,
				MethodTitle: m.title,
				BaseCost:    money.Money(m.baseCost.Int64),
				Surcharges:  surcharges,
			})
		case shipping.KindFreeShipping:
			methods = append(methods, shipping.FreeShipping{
				MethodID:               m.id,
				MethodTitle:            m.title,
				Requires:               shipping.Condition(m.freeCondition.String),
				MinAmount:              money.Money(m.minAmount.Int64),
				MinAmountAfterDiscount: m.minAfterDiscount.Bool,
			})
		case shipping.KindLocalPickup:
			methods = append(methods, shipping.LocalPickup{
				MethodID:    m.id,
				MethodTitle: m.title,
				Cost:        money.Money(m.baseCost.Int64),
			})
		case shipping.KindCarrier:
			methods = append(methods, shipping.CarrierRate{
				MethodID:    m.id,
				MethodTitle: m.title,
				Courier:     m.courier.String,
				Service:     m.service.String,
			})
		}
	}
	return methods, nil
}

func (r ShippingConfigRepo) surcharges(ctx context.Context, methodID string) ([]shipping.ClassSurcharge, error) {
	rows, err := r.Pool.Query(ctx, surchargesQuery, methodID)
	if err != nil {
		return nil, fmt.Errorf("load class surcharges: %w", err)
	}
	defer rows.Close()
	var out []shipping.ClassSurcharge
	for rows.Next() {
		var s shipping.ClassSurcharge
		if err := rows.Scan(&s.ClassID, &s.Cost, &s.Specificity); err != nil {
			return nil, fmt.Errorf("scan class surcharge: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
