package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/discount"
	"github.com/noah-isme/backend-kasir/internal/money"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/shipping"
	"github.com/noah-isme/backend-kasir/internal/tax"
)

// ErrInvalidInput is returned when the submitted cart fails validation
// before any computation starts.
var ErrInvalidInput = errors.New("invalid input")

// ErrUpstream is returned when a reference-data lookup fails. No partial
// result is produced; a missing input would silently break the
// reconciliation invariants.
var ErrUpstream = errors.New("upstream lookup failed")

// Service runs the calculation pipeline against the configured lookup
// collaborators. It holds no mutable state and is safe for concurrent use.
type Service struct {
	Catalog     CatalogLookup
	TaxCfg      TaxConfigLookup
	ShippingCfg ShippingConfigLookup
	Discounts   DiscountLookup
	Store       StoreAddressLookup
	Carrier     shipping.Client

	Currency       string
	TaxDisplayMode string
}

// inputs is everything fetched up front so the computation itself never
// blocks on I/O.
type inputs struct {
	records      []catalog.Record
	taxOpts      tax.Options
	ratesByClass map[string][]tax.Rate
	zones        []shipping.Zone
	codes        []codeRecord
	storeAddr    Address
}

type codeRecord struct {
	submitted string
	rec       discount.Code
	found     bool
}

// Calculate runs the full pipeline: price lines, evaluate discounts,
// resolve shipping, compute taxes, and assemble the immutable result.
func (s *Service) Calculate(ctx context.Context, in Input, cc Context) (*Result, error) {
	if err := s.validate(in, cc); err != nil {
		return nil, err
	}
	fetched, err := s.fetch(ctx, in)
	if err != nil {
		return nil, err
	}

	lines, subtotal, err := s.priceLines(in, fetched, cc)
	if err != nil {
		return nil, err
	}

	dlines := make([]discount.Line, len(lines))
	for i, l := range lines {
		dlines[i] = discount.Line{
			Index:       i,
			ProductID:   l.ProductID,
			CategoryIDs: fetched.records[i].CategoryIDs,
			Qty:         l.Qty,
			Subtotal:    l.Subtotal,
		}
	}
	codes := make([]discount.Code, 0, len(fetched.codes))
	var rejections []Rejection
	for _, c := range fetched.codes {
		if !c.found {
			rejections = append(rejections, Rejection{Code: c.submitted, Reason: "discount code not found"})
			continue
		}
		codes = append(codes, c.rec)
	}
	outcome, err := discount.Evaluate(codes, dlines, cc.CustomerEmail, cc.AsOf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	for _, applied := range outcome.Applied {
		for _, share := range applied.Shares {
			lines[share.LineIndex].Discounts = append(lines[share.LineIndex].Discounts, DiscountShare{
				Code:   applied.Code,
				Amount: share.Amount,
			})
			lines[share.LineIndex].DiscountTotal += share.Amount
		}
	}
	for i := range lines {
		lines[i].Total = lines[i].Subtotal - lines[i].DiscountTotal
	}
	for _, r := range outcome.Rejections {
		rejections = append(rejections, Rejection{Code: r.Code, Reason: r.Reason})
	}
	subtotalAfter := subtotal - outcome.TotalDiscount

	quote, err := s.quoteShipping(ctx, in, cc, fetched, subtotal, subtotalAfter, outcome.FreeShipping)
	if err != nil {
		return nil, err
	}
	shippingTotal := money.Money(0)
	var selected *shipping.Option
	if opt, ok := quote.Selected(); ok {
		shippingTotal = opt.Cost
		if outcome.FreeShipping {
			shippingTotal = 0
			for i := range quote.Options {
				if quote.Options[i].Selected {
					quote.Options[i].Cost = 0
					quote.Options[i].FreeShipping = true
				}
			}
			opt, _ = quote.Selected()
		}
		selected = &opt
	}

	taxAddr, err := s.taxAddress(cc, fetched)
	if err != nil {
		return nil, err
	}
	itemsTax, shippingTax, shippingTaxItems := s.applyTaxes(lines, fetched, taxAddr, shippingTotal)

	res := &Result{
		Currency:         s.Currency,
		PricesIncludeTax: fetched.taxOpts.PricesIncludeTax,
		TaxDisplayMode:   s.TaxDisplayMode,
		CalculatedAt:     cc.AsOf,
		Lines:            lines,

		Subtotal:               subtotal,
		DiscountTotal:          outcome.TotalDiscount,
		SubtotalAfterDiscounts: subtotalAfter,
		DiscountRejections:     rejections,
		FreeShippingApplied:    outcome.FreeShipping,

		ShippingOptions:  quote.Options,
		SelectedShipping: selected,
		ShippingTotal:    shippingTotal,
		ShippingTax:      shippingTax,
		CannotShip:       quote.CannotShip,
		ShippingNote:     quote.Note,

		ItemsTax:     itemsTax,
		TaxBreakdown: mergeBreakdowns(lines, shippingTaxItems),
	}
	for _, applied := range outcome.Applied {
		res.AppliedDiscounts = append(res.AppliedDiscounts, AppliedDiscount{
			Code:         applied.Code,
			Amount:       applied.Amount,
			FreeShipping: applied.FreeShipping,
		})
	}
	if res.PricesIncludeTax {
		res.GrandTotal = subtotalAfter + shippingTotal
	} else {
		res.GrandTotal = subtotalAfter + itemsTax + shippingTotal + shippingTax
	}
	return res, nil
}

func (s *Service) validate(in Input, cc Context) error {
	if len(in.Lines) == 0 {
		return fmt.Errorf("cart has no lines: %w", ErrInvalidInput)
	}
	for i, l := range in.Lines {
		if l.Qty <= 0 {
			return fmt.Errorf("line %d: %w: %s", i, ErrInvalidInput, pricing.ErrInvalidQuantity)
		}
	}
	if cc.ShippingAddress == nil {
		return fmt.Errorf("shipping address is required: %w", ErrInvalidInput)
	}
	if cc.AsOf.IsZero() {
		return fmt.Errorf("calculation timestamp is required: %w", ErrInvalidInput)
	}
	if err := discount.CheckDuplicates(in.DiscountCodes); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	return nil
}

// fetch issues every upstream lookup concurrently and waits for all of
// them before computation starts. Any failure aborts the calculation.
func (s *Service) fetch(ctx context.Context, in Input) (*inputs, error) {
	fetched := &inputs{
		records: make([]catalog.Record, len(in.Lines)),
		codes:   make([]codeRecord, len(in.DiscountCodes)),
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, line := range in.Lines {
		g.Go(func() error {
			rec, err := s.Catalog.Get(gctx, line.ProductID, line.VariantID)
			if err != nil {
				return fmt.Errorf("catalog record %s: %w", line.ProductID, err)
			}
			fetched.records[i] = rec
			return nil
		})
	}
	g.Go(func() error {
		opts, err := s.TaxCfg.Options(gctx)
		if err != nil {
			return fmt.Errorf("tax options: %w", err)
		}
		fetched.taxOpts = opts
		return nil
	})
	g.Go(func() error {
		zones, err := s.ShippingCfg.Zones(gctx)
		if err != nil {
			return fmt.Errorf("shipping zones: %w", err)
		}
		fetched.zones = zones
		return nil
	})
	for i, code := range in.DiscountCodes {
		g.Go(func() error {
			rec, found, err := s.Discounts.Code(gctx, code)
			if err != nil {
				return fmt.Errorf("discount code %s: %w", code, err)
			}
			fetched.codes[i] = codeRecord{submitted: code, rec: rec, found: found}
			return nil
		})
	}
	if s.Store != nil {
		g.Go(func() error {
			addr, err := s.Store.StoreAddress(gctx)
			if err != nil {
				return fmt.Errorf("store address: %w", err)
			}
			fetched.storeAddr = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}

	// Tax rates depend on the classes discovered in the catalog records, so
	// they go out in a second concurrent wave.
	fetched.ratesByClass = make(map[string][]tax.Rate)
	for _, rec := range fetched.records {
		fetched.ratesByClass[rec.TaxClassID] = nil
	}
	g, gctx = errgroup.WithContext(ctx)
	for classID := range fetched.ratesByClass {
		g.Go(func() error {
			rates, err := s.TaxCfg.Rates(gctx, classID)
			if err != nil {
				return fmt.Errorf("tax rates for class %q: %w", classID, err)
			}
			fetched.ratesByClass[classID] = rates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	return fetched, nil
}

func (s *Service) priceLines(in Input, fetched *inputs, cc Context) ([]LineResult, money.Money, error) {
	lines := make([]LineResult, len(in.Lines))
	var subtotal money.Money
	for i, line := range in.Lines {
		rec := fetched.records[i]
		quote, err := pricing.Price(pricing.Input{
			Qty:          line.Qty,
			RegularPrice: rec.RegularPrice,
			Sale:         rec.Sale,
			Tiers:        rec.Tiers,
		}, cc.AsOf)
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w: %s", i, ErrInvalidInput, err)
		}
		lines[i] = LineResult{
			ProductID:    rec.ProductID,
			VariantID:    rec.VariantID,
			Title:        rec.Title,
			Qty:          line.Qty,
			UnitPrice:    quote.UnitPrice,
			RegularPrice: rec.RegularPrice,
			SaleApplied:  quote.SaleApplied,
			TierMinQty:   quote.TierMinQty,
			Subtotal:     quote.Subtotal,
		}
		subtotal += quote.Subtotal
	}
	return lines, subtotal, nil
}

func (s *Service) quoteShipping(ctx context.Context, in Input, cc Context, fetched *inputs, subtotal, subtotalAfter money.Money, freeShipCoupon bool) (shipping.QuoteResult, error) {
	profile := shipping.CartProfile{
		SubtotalBeforeDiscount: subtotal,
		SubtotalAfterDiscount:  subtotalAfter,
		HasFreeShippingCoupon:  freeShipCoupon,
	}
	seen := map[string]struct{}{}
	for i, rec := range fetched.records {
		profile.WeightGram += rec.WeightGram * in.Lines[i].Qty
		if rec.ShippingClassID == "" {
			continue
		}
		if _, ok := seen[rec.ShippingClassID]; !ok {
			seen[rec.ShippingClassID] = struct{}{}
			profile.ClassIDs = append(profile.ClassIDs, rec.ShippingClassID)
		}
	}
	dest := shipping.Destination{
		Country:  cc.ShippingAddress.Country,
		State:    cc.ShippingAddress.State,
		City:     cc.ShippingAddress.City,
		Postcode: cc.ShippingAddress.Postcode,
	}
	resolver := shipping.Resolver{Zones: fetched.zones, Carrier: s.Carrier}
	quote, err := resolver.Quote(ctx, dest, profile, in.SelectedShippingMethodID)
	if err != nil {
		return shipping.QuoteResult{}, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	return quote, nil
}

func (s *Service) taxAddress(cc Context, fetched *inputs) (tax.Address, error) {
	var addr *Address
	switch fetched.taxOpts.BasedOn {
	case tax.BasisBilling:
		addr = cc.BillingAddress
		if addr == nil {
			addr = cc.ShippingAddress
		}
	case tax.BasisStore:
		if s.Store == nil {
			return tax.Address{}, fmt.Errorf("%w: store address lookup not configured", ErrUpstream)
		}
		addr = &fetched.storeAddr
	default:
		addr = cc.ShippingAddress
	}
	return tax.Address{
		Country:  addr.Country,
		State:    addr.State,
		City:     addr.City,
		Postcode: addr.Postcode,
	}, nil
}

// applyTaxes computes per-line tax on (subtotal - allocated discount) and
// shipping tax on the selected method's cost through the applies-to-
// shipping rate filter. Shipping inherits the tax class of the first line.
func (s *Service) applyTaxes(lines []LineResult, fetched *inputs, addr tax.Address, shippingTotal money.Money) (money.Money, money.Money, []tax.BreakdownItem) {
	opts := fetched.taxOpts
	var exactSum decimal.Decimal
	var roundedSum money.Money
	for i := range lines {
		rates := tax.ForAddress(fetched.ratesByClass[fetched.records[i].TaxClassID], addr)
		res := tax.Calc(lines[i].Total, rates, opts)
		lines[i].Tax = res.Total
		lines[i].TaxBreakdown = res.Items
		exactSum = exactSum.Add(res.Exact)
		roundedSum += res.Total
	}
	itemsTax := roundedSum
	if opts.RoundAtSubtotal {
		itemsTax = money.FromDecimal(exactSum)
	}

	var shippingTax money.Money
	var shippingItems []tax.BreakdownItem
	if shippingTotal > 0 && len(fetched.records) > 0 {
		shipRates := tax.ShippingRates(tax.ForAddress(fetched.ratesByClass[fetched.records[0].TaxClassID], addr))
		res := tax.Calc(shippingTotal, shipRates, opts)
		shippingTax = res.Total
		shippingItems = res.Items
	}
	return itemsTax, shippingTax, shippingItems
}

// mergeBreakdowns folds the per-line and shipping breakdown items into one
// cart-level breakdown keyed by rate id, in first-appearance order.
func mergeBreakdowns(lines []LineResult, shippingItems []tax.BreakdownItem) []tax.BreakdownItem {
	var merged []tax.BreakdownItem
	index := map[string]int{}
	add := func(item tax.BreakdownItem) {
		if at, ok := index[item.RateID]; ok {
			merged[at].Amount += item.Amount
			return
		}
		index[item.RateID] = len(merged)
		merged = append(merged, item)
	}
	for _, l := range lines {
		for _, item := range l.TaxBreakdown {
			add(item)
		}
	}
	for _, item := range shippingItems {
		add(item)
	}
	return merged
}
