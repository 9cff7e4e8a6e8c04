package domain

import (
	"strings"
	"time"
)

type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteUpdated  QuoteStatus = "updated"
	QuoteArchived QuoteStatus = "archived"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteUpdated, QuoteArchived:
		return true
	}
	return false
}

// CanTransition reports whether the quote lifecycle allows moving to the
// given status: draft→sent, sent→updated, updated→updated (further
// significant changes), and sent/updated→archived. Archived is terminal.
func (s QuoteStatus) CanTransition(to QuoteStatus) bool {
	switch s {
	case QuoteDraft:
		return to == QuoteSent
	case QuoteSent:
		return to == QuoteUpdated || to == QuoteArchived
	case QuoteUpdated:
		return to == QuoteUpdated || to == QuoteArchived
	}
	return false
}

// Mutable reports whether the quote may still be edited at all.
func (s QuoteStatus) Mutable() bool {
	return s != QuoteArchived
}

// LinkedPackage is the pricing snapshot a quote keeps after linking: which
// package and version produced the price, the matrix cell that was selected,
// and the price the resolver calculated. It is not a live reference; catalog
// edits after linking leave the snapshot stale until an explicit
// recalculation.
type LinkedPackage struct {
	PackageID          string    `json:"packageId"`
	PackageName        string    `json:"packageName"`
	PackageVersion     int       `json:"packageVersion"`
	TierIndex          int       `json:"selectedTierIndex"`
	TierLabel          string    `json:"selectedTier"`
	PeriodLabel        string    `json:"selectedPeriod"`
	CalculatedPrice    Price     `json:"calculatedPrice"`
	CustomPriceApplied bool      `json:"customPriceApplied"`
	LastRecalculatedAt time.Time `json:"lastRecalculatedAt"`
	LinkedBy           string    `json:"linkedBy"`
	LinkedAt           time.Time `json:"linkedAt"`
}

// Price history reasons.
const (
	PriceReasonCreated       = "created"
	PriceReasonManualUpdate  = "manual_update"
	PriceReasonRecalculation = "recalculation"
)

// PricePoint is one entry of a quote's append-only price history.
type PricePoint struct {
	Price      Price     `json:"price"`
	Reason     string    `json:"reason"`
	ChangedBy  string    `json:"changedBy"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Quote is a priced offer prepared for a lead. Version is the customer-facing
// revision counter: it starts at 1 and bumps only when a significant field
// (totalPrice, whatsIncluded, hotelName, arrivalDate) changes after the quote
// has been sent. Revision is the storage write-counter used as the
// optimistic-concurrency token; it bumps on every committed write and never
// appears in payloads.
type Quote struct {
	ID             string         `json:"id"`
	EnquiryRef     string         `json:"enquiryRef"`
	LeadName       string         `json:"leadName"`
	HotelName      string         `json:"hotelName"`
	Destination    string         `json:"destination"`
	ArrivalDate    time.Time      `json:"arrivalDate"`
	Nights         int            `json:"nights"`
	People         int            `json:"people"`
	Currency       string         `json:"currency"`
	TotalPrice     Price          `json:"totalPrice"`
	WhatsIncluded  string         `json:"whatsIncluded"`
	InternalNotes  string         `json:"internalNotes"`
	Status         QuoteStatus    `json:"status"`
	Version        int            `json:"version"`
	Revision       int64          `json:"-"`
	LinkedPackage  *LinkedPackage `json:"linkedPackage,omitempty"`
	PriceHistory   []PricePoint   `json:"priceHistory"`
	CreatedBy      string         `json:"createdBy"`
	LastModifiedBy string         `json:"lastModifiedBy"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	SentAt         *time.Time     `json:"sentAt,omitempty"`
}

// Validate checks the structural invariants of a quote.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.LeadName) == "" {
		return NewValidationError("lead name is required")
	}
	if q.People < 1 {
		return NewValidationError("people must be at least 1")
	}
	if q.Nights < 1 {
		return NewValidationError("nights must be at least 1")
	}
	if q.ArrivalDate.IsZero() {
		return NewValidationError("arrival date is required")
	}
	if !q.Status.Valid() {
		return NewValidationError("unknown quote status %q", q.Status)
	}
	return nil
}

// LastPrice returns the most recent price-history entry, if any.
func (q Quote) LastPrice() (PricePoint, bool) {
	if len(q.PriceHistory) == 0 {
		return PricePoint{}, false
	}
	return q.PriceHistory[len(q.PriceHistory)-1], true
}
