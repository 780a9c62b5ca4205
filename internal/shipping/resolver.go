// Package shipping resolves the shipping zone for a destination address,
// evaluates the zone's configured methods, and quotes a cost for each
// eligible one.
package shipping

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/backend-kasir/internal/money"
)

// Destination is the address shipping is resolved against.
type Destination struct {
	Country  string
	State    string
	City     string
	Postcode string
}

// LocationRule matches a destination. Empty fields match everything;
// Postcode supports a trailing '*' wildcard.
type LocationRule struct {
	Country  string
	State    string
	Postcode string
}

// Matches reports whether the rule covers the destination.
func (l LocationRule) Matches(dest Destination) bool {
	if l.Country != "" && !strings.EqualFold(l.Country, dest.Country) {
		return false
	}
	if l.State != "" && !strings.EqualFold(l.State, dest.State) {
		return false
	}
	if l.Postcode != "" {
		if prefix, ok := strings.CutSuffix(l.Postcode, "*"); ok {
			if !strings.HasPrefix(strings.ToUpper(dest.Postcode), strings.ToUpper(prefix)) {
				return false
			}
		} else if !strings.EqualFold(l.Postcode, dest.Postcode) {
			return false
		}
	}
	return true
}

// Zone groups shipping methods behind a set of location rules.
type Zone struct {
	ID        string
	Name      string
	Locations []LocationRule
	Methods   []Method
	Origin    string
}

// Covers reports whether any of the zone's location rules matches.
func (z Zone) Covers(dest Destination) bool {
	for _, l := range z.Locations {
		if l.Matches(dest) {
			return true
		}
	}
	return false
}

// MatchZone returns the first zone in configured order covering the
// destination. Zones are expected to be configured non-overlapping; ties
// are not disambiguated here.
func MatchZone(zones []Zone, dest Destination) (Zone, bool) {
	for _, z := range zones {
		if z.Covers(dest) {
			return z, true
		}
	}
	return Zone{}, false
}

// CartProfile is the shipping-relevant summary of a priced cart.
type CartProfile struct {
	ClassIDs               []string
	WeightGram             int
	SubtotalBeforeDiscount money.Money
	SubtotalAfterDiscount  money.Money
	HasFreeShippingCoupon  bool
}

// Option is one quoted shipping method candidate.
type Option struct {
	MethodID     string      `json:"methodId"`
	Title        string      `json:"title"`
	Kind         MethodKind  `json:"kind"`
	Cost         money.Money `json:"cost"`
	FreeShipping bool        `json:"freeShipping"`
	Selected     bool        `json:"selected"`
}

// QuoteResult carries all candidates for the resolved zone. CannotShip is
// reported, not returned as an error, so the rest of the cart can still
// display with a shipping-unavailable notice.
type QuoteResult struct {
	ZoneID     string   `json:"zoneId,omitempty"`
	ZoneName   string   `json:"zoneName,omitempty"`
	Options    []Option `json:"options"`
	CannotShip bool     `json:"cannotShip"`
	Note       string   `json:"note,omitempty"`
}

// Selected returns the currently selected option, if any.
func (q QuoteResult) Selected() (Option, bool) {
	for _, o := range q.Options {
		if o.Selected {
			return o, true
		}
	}
	return Option{}, false
}

// Resolver quotes shipping for a destination from the configured zones.
type Resolver struct {
	Zones   []Zone
	Carrier Client
}

// Quote resolves the zone for the destination and evaluates each of its
// methods. The explicitly selected method id wins; otherwise the
// lowest-cost eligible option becomes the default selection.
func (r Resolver) Quote(ctx context.Context, dest Destination, cart CartProfile, selectedID string) (QuoteResult, error) {
	zone, ok := MatchZone(r.Zones, dest)
	if !ok {
		return QuoteResult{
			CannotShip: true,
			Note:       "no shipping zone matches the destination address",
		}, nil
	}
	res := QuoteResult{ZoneID: zone.ID, ZoneName: zone.Name}
	for _, m := range zone.Methods {
		opt, eligible, err := r.evaluate(ctx, zone, m, dest, cart)
		if err != nil {
			return QuoteResult{}, err
		}
		if eligible {
			res.Options = append(res.Options, opt)
		}
	}
	if len(res.Options) == 0 {
		res.CannotShip = true
		res.Note = "no shipping method is available for the destination address"
		return res, nil
	}
	markSelected(res.Options, selectedID)
	return res, nil
}

func (r Resolver) evaluate(ctx context.Context, zone Zone, m Method, dest Destination, cart CartProfile) (Option, bool, error) {
	opt := Option{MethodID: m.ID(), Title: m.Title(), Kind: m.Kind()}
	switch v := m.(type) {
	case FlatRate:
		opt.Cost = v.BaseCost + surchargeTotal(v.Surcharges, cart.ClassIDs)
	case FreeShipping:
		if !freeShippingEligible(v, cart) {
			return Option{}, false, nil
		}
		opt.FreeShipping = true
	case LocalPickup:
		opt.Cost = v.Cost
	case CarrierRate:
		cost, ok, err := r.carrierCost(ctx, zone, v, dest, cart)
		if err != nil {
			return Option{}, false, fmt.Errorf("carrier rate %s/%s: %w", v.Courier, v.Service, err)
		}
		if !ok {
			return Option{}, false, nil
		}
		opt.Cost = cost
	default:
		return Option{}, false, nil
	}
	return opt, true, nil
}

func (r Resolver) carrierCost(ctx context.Context, zone Zone, m CarrierRate, dest Destination, cart CartProfile) (money.Money, bool, error) {
	if r.Carrier == nil {
		return 0, false, nil
	}
	rates, err := r.Carrier.Rates(ctx, RateReq{
		Origin:      zone.Origin,
		Destination: dest.Postcode,
		WeightGram:  cart.WeightGram,
		Courier:     m.Courier,
		Service:     m.Service,
	})
	if err != nil {
		return 0, false, err
	}
	for _, rate := range rates {
		if m.Service == "" || strings.EqualFold(rate.Service, m.Service) {
			return rate.Price, true, nil
		}
	}
	return 0, false, nil
}

// surchargeTotal sums one surcharge per class present in the cart, using
// the highest-specificity entry when a class has several configured costs.
func surchargeTotal(surcharges []ClassSurcharge, classIDs []string) money.Money {
	var total money.Money
	for _, class := range classIDs {
		best := -1
		for i, s := range surcharges {
			if s.ClassID != class {
				continue
			}
			if best < 0 || s.Specificity > surcharges[best].Specificity {
				best = i
			}
		}
		if best >= 0 {
			total += surcharges[best].Cost
		}
	}
	return total
}

func freeShippingEligible(m FreeShipping, cart CartProfile) bool {
	basis := cart.SubtotalBeforeDiscount
	if m.MinAmountAfterDiscount {
		basis = cart.SubtotalAfterDiscount
	}
	meetsMin := basis >= m.MinAmount
	switch m.Requires {
	case ConditionAlways, "":
		return true
	case ConditionCoupon:
		return cart.HasFreeShippingCoupon
	case ConditionMinAmount:
		return meetsMin
	case ConditionMinAmountOrCoupon:
		return meetsMin || cart.HasFreeShippingCoupon
	case ConditionMinAmountAndCoupon:
		return meetsMin && cart.HasFreeShippingCoupon
	default:
		return false
	}
}

// markSelected marks the explicitly selected method when it is among the
// candidates, falling back to the cheapest one (first wins on ties).
func markSelected(options []Option, selectedID string) {
	if selectedID != "" {
		for i := range options {
			if options[i].MethodID == selectedID {
				options[i].Selected = true
				return
			}
		}
	}
	cheapest := 0
	for i := range options {
		if options[i].Cost < options[cheapest].Cost {
			cheapest = i
		}
	}
	options[cheapest].Selected = true
}
