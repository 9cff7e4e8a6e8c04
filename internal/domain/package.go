package domain

import (
	"strings"
	"time"
)

type PackageStatus string

const (
	PackageDraft    PackageStatus = "draft"
	PackageActive   PackageStatus = "active"
	PackageInactive PackageStatus = "inactive"
	PackageDeleted  PackageStatus = "deleted"
)

func (s PackageStatus) Valid() bool {
	switch s {
	case PackageDraft, PackageActive, PackageInactive, PackageDeleted:
		return true
	}
	return false
}

// CanTransition reports whether the catalog lifecycle allows moving to the
// given status. Deleted is a terminal soft-delete state.
func (s PackageStatus) CanTransition(to PackageStatus) bool {
	if s == PackageDeleted {
		return false
	}
	if to == PackageDeleted {
		return true
	}
	switch s {
	case PackageDraft:
		return to == PackageActive
	case PackageActive:
		return to == PackageInactive
	case PackageInactive:
		return to == PackageActive
	}
	return false
}

// GroupSizeTier is one bracket of the group-size axis, e.g. {"6-11", 6, 11}.
type GroupSizeTier struct {
	Label     string `json:"label"`
	MinPeople int    `json:"minPeople"`
	MaxPeople int    `json:"maxPeople"`
}

// Contains reports whether the tier's inclusive range covers the group size.
func (t GroupSizeTier) Contains(people int) bool {
	return people >= t.MinPeople && people <= t.MaxPeople
}

type PeriodType string

const (
	PeriodMonth   PeriodType = "month"
	PeriodSpecial PeriodType = "special"
)

// PriceEntry prices one (tier, nights) cell of a period's matrix slice.
type PriceEntry struct {
	TierIndex int   `json:"groupSizeTierIndex"`
	Nights    int   `json:"nights"`
	Price     Price `json:"price"`
}

// PricingPeriod is one calendar window of the pricing matrix: a named
// calendar month, or a special date-range override such as "Easter" that
// takes precedence over the month it falls in.
type PricingPeriod struct {
	Label     string       `json:"label"`
	Type      PeriodType   `json:"type"`
	StartDate *time.Time   `json:"startDate,omitempty"` // special only
	EndDate   *time.Time   `json:"endDate,omitempty"`   // special only
	Entries   []PriceEntry `json:"entries"`
}

// Contains reports whether a special period's range covers the given day.
// Bounds are inclusive and compared date-only, ignoring clock and zone.
func (p PricingPeriod) Contains(day time.Time) bool {
	if p.Type != PeriodSpecial || p.StartDate == nil || p.EndDate == nil {
		return false
	}
	d := dateOnly(day)
	return !d.Before(dateOnly(*p.StartDate)) && !d.After(dateOnly(*p.EndDate))
}

// SpanDays returns the inclusive length of a special period in days.
func (p PricingPeriod) SpanDays() int {
	if p.StartDate == nil || p.EndDate == nil {
		return 0
	}
	return int(dateOnly(*p.EndDate).Sub(dateOnly(*p.StartDate))/(24*time.Hour)) + 1
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthFromLabel parses a calendar-month period label ("January" … "December",
// case-insensitive).
func MonthFromLabel(label string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(label, m.String()) {
			return m, true
		}
	}
	return 0, false
}

// Package is a sellable destination offer with a group-size × duration ×
// period pricing matrix. Version starts at 1 and increases by one on every
// committed update; it doubles as the optimistic-concurrency token for saves.
type Package struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Destination     string          `json:"destination"`
	Resort          string          `json:"resort"`
	Description     string          `json:"description"`
	Currency        string          `json:"currency"`
	GroupSizeTiers  []GroupSizeTier `json:"groupSizeTiers"`
	DurationOptions []int           `json:"durationOptions"`
	PricingMatrix   []PricingPeriod `json:"pricingMatrix"`
	Status          PackageStatus   `json:"status"`
	Version         int             `json:"version"`
	CreatedBy       string          `json:"createdBy"`
	LastModifiedBy  string          `json:"lastModifiedBy"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// HasDuration reports whether nights is one of the package's duration options.
func (p Package) HasDuration(nights int) bool {
	for _, n := range p.DurationOptions {
		if n == nights {
			return true
		}
	}
	return false
}

// Validate checks the catalog invariants: ordered non-overlapping tiers,
// ascending positive durations, well-formed periods, and price entries that
// reference a valid tier index and an offered duration with at most one entry
// per (tier, nights) pair within a period.
func (p Package) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("package name is required")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return NewValidationError("package currency is required")
	}
	if !p.Status.Valid() {
		return NewValidationError("unknown package status %q", p.Status)
	}
	if len(p.GroupSizeTiers) == 0 {
		return NewValidationError("at least one group size tier is required")
	}
	for i, t := range p.GroupSizeTiers {
		if strings.TrimSpace(t.Label) == "" {
			return NewValidationError("tier %d: label is required", i)
		}
		if t.MinPeople < 1 {
			return NewValidationError("tier %q: minPeople must be at least 1", t.Label)
		}
		if t.MaxPeople < t.MinPeople {
			return NewValidationError("tier %q: maxPeople before minPeople", t.Label)
		}
		if i > 0 {
			prev := p.GroupSizeTiers[i-1]
			if t.MinPeople <= prev.MaxPeople {
				return NewValidationError("tiers %q and %q overlap or are out of order", prev.Label, t.Label)
			}
		}
	}
	if len(p.DurationOptions) == 0 {
		return NewValidationError("at least one duration option is required")
	}
	for i, n := range p.DurationOptions {
		if n < 1 {
			return NewValidationError("duration options must be positive, got %d", n)
		}
		if i > 0 && n <= p.DurationOptions[i-1] {
			return NewValidationError("duration options must be strictly ascending")
		}
	}
	monthSeen := map[time.Month]string{}
	for _, period := range p.PricingMatrix {
		if err := p.validatePeriod(period, monthSeen); err != nil {
			return err
		}
	}
	return nil
}

func (p Package) validatePeriod(period PricingPeriod, monthSeen map[time.Month]string) error {
	if strings.TrimSpace(period.Label) == "" {
		return NewValidationError("pricing period label is required")
	}
	switch period.Type {
	case PeriodMonth:
		m, ok := MonthFromLabel(period.Label)
		if !ok {
			return NewValidationError("period %q: month periods must be labelled with a calendar month", period.Label)
		}
		if dup, seen := monthSeen[m]; seen {
			return NewValidationError("periods %q and %q price the same month", dup, period.Label)
		}
		monthSeen[m] = period.Label
	case PeriodSpecial:
		if period.StartDate == nil || period.EndDate == nil {
			return NewValidationError("period %q: special periods need start and end dates", period.Label)
		}
		if dateOnly(*period.EndDate).Before(dateOnly(*period.StartDate)) {
			return NewValidationError("period %q: end date before start date", period.Label)
		}
	default:
		return NewValidationError("period %q: unknown period type %q", period.Label, period.Type)
	}
	seen := map[[2]int]bool{}
	for _, e := range period.Entries {
		if e.TierIndex < 0 || e.TierIndex >= len(p.GroupSizeTiers) {
			return NewValidationError("period %q: entry references tier index %d out of range", period.Label, e.TierIndex)
		}
		if !p.HasDuration(e.Nights) {
			return NewValidationError("period %q: entry references %d nights, not a duration option", period.Label, e.Nights)
		}
		key := [2]int{e.TierIndex, e.Nights}
		if seen[key] {
			return NewValidationError("period %q: duplicate entry for tier %d at %d nights", period.Label, e.TierIndex, e.Nights)
		}
		seen[key] = true
		if !e.Price.IsOnRequest() && e.Price.Amount().IsNegative() {
			return NewValidationError("period %q: negative price for tier %d at %d nights", period.Label, e.TierIndex, e.Nights)
		}
	}
	return nil
}
