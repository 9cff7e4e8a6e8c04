// Package pricing resolves a price from a package's group-size × duration ×
// period matrix. Resolution is a pure function over the package snapshot and
// the requested parameters; it is safe to call concurrently.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
)

// Result is the outcome of a successful resolution. Prices in the matrix are
// per person; TotalPrice is always PricePerPerson multiplied by People. When
// OnRequest is set there is no numeric price and the quote must be priced
// manually.
type Result struct {
	OnRequest      bool         `json:"isOnRequest"`
	PricePerPerson domain.Price `json:"pricePerPerson"`
	TotalPrice     domain.Price `json:"totalPrice"`
	// Deprecated: equals TotalPrice, kept for older consumers. New code must
	// read TotalPrice.
	Price       domain.Price      `json:"price"`
	TierIndex   int               `json:"tierIndex"`
	TierLabel   string            `json:"tier"`
	PeriodLabel string            `json:"period"`
	PeriodType  domain.PeriodType `json:"periodType"`
	People      int               `json:"numberOfPeople"`
	Nights      int               `json:"nights"`
	Currency    string            `json:"currency"`
}

// Resolve maps (package, people, nights, arrival) to a price. Checks run in
// order: duration offered, tier covering the group size, period covering the
// arrival date, then the matrix entry for (tier, nights). An ON_REQUEST entry
// is a valid outcome, not an error.
func Resolve(pkg domain.Package, people, nights int, arrival time.Time) (Result, error) {
	if people <= 0 {
		return Result{}, domain.NewValidationError("people must be positive, got %d", people)
	}
	if nights <= 0 {
		return Result{}, domain.NewValidationError("nights must be positive, got %d", nights)
	}
	if arrival.IsZero() {
		return Result{}, domain.NewValidationError("arrival date is required")
	}
	if !pkg.HasDuration(nights) {
		return Result{}, fmt.Errorf("%w: %d nights, package offers %v", domain.ErrInvalidDuration, nights, pkg.DurationOptions)
	}

	// Tiers are validated ordered and non-overlapping, so first match is the
	// only match.
	tierIdx := -1
	for i, t := range pkg.GroupSizeTiers {
		if t.Contains(people) {
			tierIdx = i
			break
		}
	}
	if tierIdx < 0 {
		return Result{}, fmt.Errorf("%w: no tier covers %d people", domain.ErrGroupSizeOutOfRange, people)
	}
	tier := pkg.GroupSizeTiers[tierIdx]

	period, ok := selectPeriod(pkg.PricingMatrix, arrival)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrNoPricingForPeriod, arrival.Format("2006-01-02"))
	}

	entry, ok := findEntry(period, tierIdx, nights)
	if !ok {
		return Result{}, fmt.Errorf("%w: tier %q at %d nights in period %q",
			domain.ErrNoPricingForCombination, tier.Label, nights, period.Label)
	}

	res := Result{
		TierIndex:   tierIdx,
		TierLabel:   tier.Label,
		PeriodLabel: period.Label,
		PeriodType:  period.Type,
		People:      people,
		Nights:      nights,
		Currency:    pkg.Currency,
	}
	if entry.Price.IsOnRequest() {
		res.OnRequest = true
		res.PricePerPerson = domain.OnRequestPrice()
		res.TotalPrice = domain.OnRequestPrice()
		res.Price = domain.OnRequestPrice()
		return res, nil
	}
	total := domain.PriceOf(entry.Price.Amount().Mul(decimal.NewFromInt(int64(people))))
	res.PricePerPerson = entry.Price
	res.TotalPrice = total
	res.Price = total
	return res, nil
}

// selectPeriod picks the pricing period covering the arrival date. Special
// periods take precedence over months; when several specials overlap the
// narrowest date range wins, and equal spans resolve to the later-defined
// period (higher matrix index). With no special match, the calendar month of
// the arrival date is used.
func selectPeriod(matrix []domain.PricingPeriod, arrival time.Time) (domain.PricingPeriod, bool) {
	best := -1
	for i, p := range matrix {
		if p.Type != domain.PeriodSpecial || !p.Contains(arrival) {
			continue
		}
		if best < 0 || p.SpanDays() <= matrix[best].SpanDays() {
			best = i
		}
	}
	if best >= 0 {
		return matrix[best], true
	}
	for _, p := range matrix {
		if p.Type != domain.PeriodMonth {
			continue
		}
		if m, ok := domain.MonthFromLabel(p.Label); ok && m == arrival.Month() {
			return p, true
		}
	}
	return domain.PricingPeriod{}, false
}

func findEntry(period domain.PricingPeriod, tierIdx, nights int) (domain.PriceEntry, bool) {
	for _, e := range period.Entries {
		if e.TierIndex == tierIdx && e.Nights == nights {
			return e, true
		}
	}
	return domain.PriceEntry{}, false
}
