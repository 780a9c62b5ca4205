package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/discount"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/shipping"
	"github.com/noah-isme/backend-kasir/internal/tax"
)

var (
	asOf     = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	product1 = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	product2 = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

type stubCatalog struct {
	records map[uuid.UUID]catalog.Record
	err     error
}

func (s stubCatalog) Get(_ context.Context, productID uuid.UUID, _ *uuid.UUID) (catalog.Record, error) {
	if s.err != nil {
		return catalog.Record{}, s.err
	}
	rec, ok := s.records[productID]
	if !ok {
		return catalog.Record{}, errors.New("record not found")
	}
	return rec, nil
}

type stubTaxCfg struct {
	opts  tax.Options
	rates map[string][]tax.Rate
}

func (s stubTaxCfg) Options(context.Context) (tax.Options, error) { return s.opts, nil }
func (s stubTaxCfg) Rates(_ context.Context, classID string) ([]tax.Rate, error) {
	return s.rates[classID], nil
}

type stubShippingCfg struct {
	zones []shipping.Zone
	err   error
}

func (s stubShippingCfg) Zones(context.Context) ([]shipping.Zone, error) {
	return s.zones, s.err
}

type stubDiscounts map[string]discount.Code

func (s stubDiscounts) Code(_ context.Context, code string) (discount.Code, bool, error) {
	rec, ok := s[code]
	return rec, ok, nil
}

type stubStore struct {
	addr Address
}

func (s stubStore) StoreAddress(context.Context) (Address, error) { return s.addr, nil }

func testService(overrides ...func(*Service)) *Service {
	svc := &Service{
		Catalog: stubCatalog{records: map[uuid.UUID]catalog.Record{
			product1: {
				ProductID:    product1,
				Title:        "Kopi Arabika 500g",
				RegularPrice: 10_000,
				TaxClassID:   "standard",
				WeightGram:   500,
				Stock:        catalog.ProductStock{ProductID: product1},
			},
			product2: {
				ProductID:    product2,
				Title:        "Teh Hijau 250g",
				RegularPrice: 5_000,
				TaxClassID:   "standard",
				WeightGram:   250,
				Stock:        catalog.ProductStock{ProductID: product2},
			},
		}},
		TaxCfg: stubTaxCfg{
			opts: tax.Options{BasedOn: tax.BasisShipping},
			rates: map[string][]tax.Rate{
				"standard": {{
					ID:                "vat-id",
					Label:             "PPN",
					Percent:           decimal.NewFromInt(10),
					Country:           "ID",
					AppliesToShipping: true,
				}},
			},
		},
		ShippingCfg: stubShippingCfg{zones: []shipping.Zone{{
			ID:        "id-zone",
			Name:      "Indonesia",
			Locations: []shipping.LocationRule{{Country: "ID"}},
			Methods: []shipping.Method{
				shipping.FlatRate{MethodID: "flat", MethodTitle: "Flat rate", BaseCost: 2_000},
			},
		}}},
		Discounts: stubDiscounts{
			"TEN": {Code: "TEN", Kind: discount.KindPercent, Percent: decimal.NewFromInt(10)},
			"SHIPFREE": {
				Code:         "SHIPFREE",
				Kind:         discount.KindFixedCart,
				Amount:       1_000,
				FreeShipping: true,
			},
		},
		Store:          stubStore{addr: Address{Country: "ID", State: "JK", Postcode: "10110"}},
		Carrier:        shipping.MockClient{},
		Currency:       "IDR",
		TaxDisplayMode: "excl",
	}
	for _, o := range overrides {
		o(svc)
	}
	return svc
}

func testInput() (Input, Context) {
	in := Input{Lines: []LineInput{
		{ProductID: product1, Qty: 2},
		{ProductID: product2, Qty: 1},
	}}
	cc := Context{
		ShippingAddress: &Address{Country: "ID", State: "JB", City: "Bandung", Postcode: "40131"},
		CustomerEmail:   "pembeli@example.com",
		AsOf:            asOf,
	}
	return in, cc
}

func TestCalculateFullPipeline(t *testing.T) {
	svc := testService()
	in, cc := testInput()
	in.DiscountCodes = []string{"TEN"}

	res, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)

	require.Equal(t, "IDR", res.Currency)
	require.Equal(t, asOf, res.CalculatedAt)
	require.Equal(t, int64(25_000), res.Subtotal)
	require.Equal(t, int64(2_500), res.DiscountTotal)
	require.Equal(t, int64(22_500), res.SubtotalAfterDiscounts)
	require.Equal(t, int64(2_000), res.ShippingTotal)
	require.Equal(t, int64(2_250), res.ItemsTax)
	require.Equal(t, int64(200), res.ShippingTax)
	require.Equal(t, int64(26_950), res.GrandTotal)

	require.Len(t, res.Lines, 2)
	require.Equal(t, int64(20_000), res.Lines[0].Subtotal)
	require.Equal(t, int64(2_000), res.Lines[0].DiscountTotal)
	require.Equal(t, int64(18_000), res.Lines[0].Total)
	require.Equal(t, int64(1_800), res.Lines[0].Tax)
	require.Equal(t, int64(5_000), res.Lines[1].Subtotal)
	require.Equal(t, int64(500), res.Lines[1].DiscountTotal)

	var lineSubtotals, lineDiscounts int64
	for _, l := range res.Lines {
		lineSubtotals += l.Subtotal
		lineDiscounts += l.DiscountTotal
	}
	require.Equal(t, res.Subtotal, lineSubtotals)
	require.Equal(t, res.DiscountTotal, lineDiscounts)

	require.Len(t, res.TaxBreakdown, 1)
	require.Equal(t, "vat-id", res.TaxBreakdown[0].RateID)
	require.Equal(t, int64(2_450), res.TaxBreakdown[0].Amount)

	require.NotNil(t, res.SelectedShipping)
	require.Equal(t, "flat", res.SelectedShipping.MethodID)
}

func TestCalculateIdempotent(t *testing.T) {
	svc := testService()
	in, cc := testInput()
	in.DiscountCodes = []string{"TEN"}

	first, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	second, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCalculateFreeShippingCouponZeroesSelection(t *testing.T) {
	svc := testService()
	in, cc := testInput()
	in.DiscountCodes = []string{"SHIPFREE"}

	res, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.True(t, res.FreeShippingApplied)
	require.Zero(t, res.ShippingTotal)
	require.Zero(t, res.ShippingTax)
	require.NotNil(t, res.SelectedShipping)
	require.Zero(t, res.SelectedShipping.Cost)
	require.True(t, res.SelectedShipping.FreeShipping)
}

func TestCalculateCannotShipStillPrices(t *testing.T) {
	svc := testService()
	in, cc := testInput()
	cc.ShippingAddress = &Address{Country: "SG", City: "Singapore", Postcode: "018956"}

	res, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.True(t, res.CannotShip)
	require.NotEmpty(t, res.ShippingNote)
	require.Zero(t, res.ShippingTotal)
	require.Nil(t, res.SelectedShipping)
	require.Equal(t, int64(25_000), res.Subtotal)
	// No Indonesian rate matches the Singapore address either.
	require.Zero(t, res.ItemsTax)
	require.Equal(t, int64(25_000), res.GrandTotal)
}

func TestCalculateUnknownCodeRejected(t *testing.T) {
	svc := testService()
	in, cc := testInput()
	in.DiscountCodes = []string{"NOPE"}

	res, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.Empty(t, res.AppliedDiscounts)
	require.Len(t, res.DiscountRejections, 1)
	require.Equal(t, "NOPE", res.DiscountRejections[0].Code)
	require.Equal(t, "discount code not found", res.DiscountRejections[0].Reason)
	require.Zero(t, res.DiscountTotal)
}

func TestCalculateUpstreamFailure(t *testing.T) {
	svc := testService(func(s *Service) {
		s.Catalog = stubCatalog{err: errors.New("connection refused")}
	})
	in, cc := testInput()

	_, err := svc.Calculate(context.Background(), in, cc)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestCalculateValidation(t *testing.T) {
	svc := testService()
	validIn, validCC := testInput()

	cases := []struct {
		name   string
		mutate func(*Input, *Context)
	}{
		{"no lines", func(in *Input, _ *Context) { in.Lines = nil }},
		{"zero qty", func(in *Input, _ *Context) { in.Lines[0].Qty = 0 }},
		{"no shipping address", func(_ *Input, cc *Context) { cc.ShippingAddress = nil }},
		{"zero timestamp", func(_ *Input, cc *Context) { cc.AsOf = time.Time{} }},
		{"duplicate codes", func(in *Input, _ *Context) { in.DiscountCodes = []string{"TEN", "ten"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, cc := validIn, validCC
			in.Lines = append([]LineInput(nil), validIn.Lines...)
			tc.mutate(&in, &cc)
			_, err := svc.Calculate(context.Background(), in, cc)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCalculateBillingBasis(t *testing.T) {
	svc := testService(func(s *Service) {
		cfg := s.TaxCfg.(stubTaxCfg)
		cfg.opts.BasedOn = tax.BasisBilling
		s.TaxCfg = cfg
	})
	in, cc := testInput()
	// Billing address outside any configured rate region.
	cc.BillingAddress = &Address{Country: "SG", Postcode: "018956"}

	res, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.Zero(t, res.ItemsTax)

	// Without a billing address the shipping address is used instead.
	cc.BillingAddress = nil
	res, err = svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.NotZero(t, res.ItemsTax)
}

func TestCalculateStoreBasis(t *testing.T) {
	svc := testService(func(s *Service) {
		cfg := s.TaxCfg.(stubTaxCfg)
		cfg.opts.BasedOn = tax.BasisStore
		s.TaxCfg = cfg
	})
	in, cc := testInput()
	// Even a foreign shipping address taxes against the store's location.
	cc.ShippingAddress = &Address{Country: "ID", State: "JK", Postcode: "10110"}

	res, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.NotZero(t, res.ItemsTax)
}

func TestCalculateInclusivePrices(t *testing.T) {
	svc := testService(func(s *Service) {
		cfg := s.TaxCfg.(stubTaxCfg)
		cfg.opts.PricesIncludeTax = true
		s.TaxCfg = cfg
	})
	in, cc := testInput()

	res, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.True(t, res.PricesIncludeTax)
	// Tax is informational: already inside the line prices and the
	// shipping cost, so the grand total does not add it again.
	require.Equal(t, res.SubtotalAfterDiscounts+res.ShippingTotal, res.GrandTotal)
	require.NotZero(t, res.ItemsTax)
}

func TestCalculateSalePriceUsesAsOf(t *testing.T) {
	saleFrom := asOf.Add(-24 * time.Hour)
	saleTo := asOf.Add(24 * time.Hour)
	svc := testService(func(s *Service) {
		cat := s.Catalog.(stubCatalog)
		rec := cat.records[product1]
		rec.Sale = &pricing.SalePrice{Price: 8_000, From: &saleFrom, To: &saleTo}
		cat.records[product1] = rec
	})
	in, cc := testInput()

	res, err := svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.True(t, res.Lines[0].SaleApplied)
	require.Equal(t, int64(8_000), res.Lines[0].UnitPrice)
	require.Equal(t, int64(16_000), res.Lines[0].Subtotal)

	// One hour after the sale window closes, same input, different price.
	cc.AsOf = saleTo.Add(time.Hour)
	res, err = svc.Calculate(context.Background(), in, cc)
	require.NoError(t, err)
	require.False(t, res.Lines[0].SaleApplied)
	require.Equal(t, int64(10_000), res.Lines[0].UnitPrice)
}
