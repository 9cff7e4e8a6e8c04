package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/pricing"
)

type QuoteService struct {
	quotes   domain.QuoteRepository
	packages domain.PackageRepository
	hist     *HistoryService
	audit    domain.AuditSink
}

func NewQuoteService(q domain.QuoteRepository, p domain.PackageRepository, h *HistoryService, a domain.AuditSink) *QuoteService {
	return &QuoteService{quotes: q, packages: p, hist: h, audit: a}
}

// QuotePatch carries the optional non-price fields of an update; nil means
// "leave unchanged". TotalPrice deliberately has no place here: price moves
// only through SetManualPrice and ApplyRecalculation so the price history
// stays complete.
type QuotePatch struct {
	EnquiryRef    *string    `json:"enquiryRef"`
	LeadName      *string    `json:"leadName"`
	HotelName     *string    `json:"hotelName"`
	Destination   *string    `json:"destination"`
	ArrivalDate   *time.Time `json:"arrivalDate"`
	Nights        *int       `json:"nights"`
	People        *int       `json:"people"`
	Currency      *string    `json:"currency"`
	WhatsIncluded *string    `json:"whatsIncluded"`
	InternalNotes *string    `json:"internalNotes"`
}

// CreateQuote stores a new draft quote at version 1. A quote born with a
// price gets the opening price-history entry.
func (s *QuoteService) CreateQuote(ctx context.Context, actor domain.Actor, q domain.Quote) (out domain.Quote, err error) {
	defer func() { s.emit(ctx, "quote.create", q.ID, actor, err, nil) }()

	if !actor.CanMutate() {
		return domain.Quote{}, domain.ErrUnauthorized
	}

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	q.Status = domain.QuoteDraft
	q.Version = 1
	q.Revision = 1
	q.LinkedPackage = nil
	q.PriceHistory = nil
	q.CreatedBy = actor.ID
	q.LastModifiedBy = actor.ID
	q.CreatedAt = now
	q.UpdatedAt = now
	q.SentAt = nil

	if err = q.Validate(); err != nil {
		return domain.Quote{}, err
	}
	if q.TotalPrice.IsOnRequest() || q.TotalPrice.Amount().IsPositive() {
		appendPrice(&q, q.TotalPrice, domain.PriceReasonCreated, actor.ID)
	}
	if err = s.quotes.CreateQuote(ctx, q); err != nil {
		return domain.Quote{}, err
	}
	if err = s.recordQuote(ctx, q, actor, domain.ChangeReasonCreated); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

func (s *QuoteService) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	return s.quotes.GetQuote(ctx, id)
}

func (s *QuoteService) ListQuotes(ctx context.Context, q domain.QuotesQuery) (domain.QuotesPage, error) {
	return s.quotes.ListQuotes(ctx, q)
}

// UpdateQuote applies a patch of non-price fields. A change to a significant
// field (hotelName, arrivalDate, whatsIncluded) after the quote went out
// bumps the version and moves sent→updated; draft edits never bump.
func (s *QuoteService) UpdateQuote(ctx context.Context, actor domain.Actor, id string, patch QuotePatch) (out domain.Quote, err error) {
	defer func() { s.emit(ctx, "quote.update", id, actor, err, nil) }()

	if !actor.CanMutate() {
		return domain.Quote{}, domain.ErrUnauthorized
	}
	q, err := s.mutableQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}

	if applyPatch(&q, patch) {
		bumpOnSignificantChange(&q)
	}
	if err = q.Validate(); err != nil {
		return domain.Quote{}, err
	}
	if err = s.save(ctx, &q, actor); err != nil {
		return domain.Quote{}, err
	}
	if err = s.recordQuote(ctx, q, actor, domain.ChangeReasonUpdated); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

// LinkPackage resolves a price from the package's current matrix and pins the
// result onto the quote as a snapshot. It never touches totalPrice, version,
// or the price history; applying the resolved price is a separate, reviewed
// step.
func (s *QuoteService) LinkPackage(ctx context.Context, actor domain.Actor, id, packageID string, people, nights int, arrival time.Time) (out domain.Quote, err error) {
	defer func() { s.emit(ctx, "quote.link", id, actor, err, map[string]string{"packageId": packageID}) }()

	if !actor.CanMutate() {
		return domain.Quote{}, domain.ErrUnauthorized
	}
	q, err := s.mutableQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	pkg, err := s.packages.GetPackage(ctx, packageID)
	if err != nil {
		return domain.Quote{}, err
	}
	if pkg.Status != domain.PackageActive {
		return domain.Quote{}, fmt.Errorf("%w: %s is %s", domain.ErrPackageInactive, pkg.ID, pkg.Status)
	}

	// Default the selection to the quote's own travel parameters.
	if people == 0 {
		people = q.People
	}
	if nights == 0 {
		nights = q.Nights
	}
	if arrival.IsZero() {
		arrival = q.ArrivalDate
	}

	res, err := pricing.Resolve(pkg, people, nights, arrival)
	if err != nil {
		return domain.Quote{}, err
	}
	if res.OnRequest {
		return domain.Quote{}, fmt.Errorf("%w: tier %q in period %q", domain.ErrPriceOnRequest, res.TierLabel, res.PeriodLabel)
	}

	switch {
	case q.Currency == "":
		q.Currency = pkg.Currency
	case q.Currency != pkg.Currency:
		return domain.Quote{}, domain.NewValidationError("quote is in %s but package %s prices in %s", q.Currency, pkg.ID, pkg.Currency)
	}

	now := time.Now().UTC()
	q.LinkedPackage = &domain.LinkedPackage{
		PackageID:          pkg.ID,
		PackageName:        pkg.Name,
		PackageVersion:     pkg.Version,
		TierIndex:          res.TierIndex,
		TierLabel:          res.TierLabel,
		PeriodLabel:        res.PeriodLabel,
		CalculatedPrice:    res.TotalPrice,
		CustomPriceApplied: false,
		LastRecalculatedAt: now,
		LinkedBy:           actor.ID,
		LinkedAt:           now,
	}
	if err = s.save(ctx, &q, actor); err != nil {
		return domain.Quote{}, err
	}
	if err = s.recordQuote(ctx, q, actor, domain.ChangeReasonLinked); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

// UnlinkPackage drops the pricing snapshot; totalPrice and priceHistory stay
// as they are, and manual pricing governs from here.
func (s *QuoteService) UnlinkPackage(ctx context.Context, actor domain.Actor, id string) (out domain.Quote, err error) {
	defer func() { s.emit(ctx, "quote.unlink", id, actor, err, nil) }()

	if !actor.CanMutate() {
		return domain.Quote{}, domain.ErrUnauthorized
	}
	q, err := s.mutableQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.LinkedPackage == nil {
		return domain.Quote{}, domain.NewValidationError("quote %s has no linked package", id)
	}

	q.LinkedPackage = nil
	if err = s.save(ctx, &q, actor); err != nil {
		return domain.Quote{}, err
	}
	if err = s.recordQuote(ctx, q, actor, domain.ChangeReasonUnlinked); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

// RecalcComparison is the phase-1 recalculation report an operator reviews
// before anything is applied.
type RecalcComparison struct {
	OldPrice              domain.Price    `json:"oldPrice"`
	NewPrice              domain.Price    `json:"newPrice"`
	PriceDifference       decimal.Decimal `json:"priceDifference"`
	PercentageChange      float64         `json:"percentageChange"`
	PackageVersionChanged bool            `json:"packageVersionChanged"`
	OldPackageVersion     int             `json:"oldPackageVersion"`
	NewPackageVersion     int             `json:"newPackageVersion"`
	TierLabel             string          `json:"tier"`
	PeriodLabel           string          `json:"period"`
}

// ComputeRecalculation re-runs the resolver with the quote's current travel
// parameters against the linked package's current pricing and reports the
// delta. It mutates nothing; failures (missing or inactive package, resolver
// errors, on-request cells) are returned, never absorbed.
func (s *QuoteService) ComputeRecalculation(ctx context.Context, id string) (RecalcComparison, error) {
	q, err := s.quotes.GetQuote(ctx, id)
	if err != nil {
		return RecalcComparison{}, err
	}
	if q.LinkedPackage == nil {
		return RecalcComparison{}, domain.NewValidationError("quote %s has no linked package", id)
	}
	pkg, err := s.packages.GetPackage(ctx, q.LinkedPackage.PackageID)
	if err != nil {
		return RecalcComparison{}, err
	}
	if pkg.Status != domain.PackageActive {
		return RecalcComparison{}, fmt.Errorf("%w: %s is %s", domain.ErrPackageInactive, pkg.ID, pkg.Status)
	}

	res, err := pricing.Resolve(pkg, q.People, q.Nights, q.ArrivalDate)
	if err != nil {
		return RecalcComparison{}, err
	}
	if res.OnRequest {
		return RecalcComparison{}, fmt.Errorf("%w: tier %q in period %q", domain.ErrPriceOnRequest, res.TierLabel, res.PeriodLabel)
	}

	oldAmt := q.TotalPrice.Amount()
	newAmt := res.TotalPrice.Amount()
	cmp := RecalcComparison{
		OldPrice:              q.TotalPrice,
		NewPrice:              res.TotalPrice,
		PriceDifference:       newAmt.Sub(oldAmt),
		PackageVersionChanged: pkg.Version != q.LinkedPackage.PackageVersion,
		OldPackageVersion:     q.LinkedPackage.PackageVersion,
		NewPackageVersion:     pkg.Version,
		TierLabel:             res.TierLabel,
		PeriodLabel:           res.PeriodLabel,
	}
	if !oldAmt.IsZero() {
		cmp.PercentageChange, _ = newAmt.Sub(oldAmt).Div(oldAmt).Mul(decimal.NewFromInt(100)).Float64()
	}
	return cmp, nil
}

// ApplyRecalculation commits an operator-approved price from a phase-1
// review. The caller names the quote version it reviewed; a mismatch means
// the quote moved underneath the review and fails with a version conflict.
// The version always bumps, and a sent quote moves to updated.
func (s *QuoteService) ApplyRecalculation(ctx context.Context, actor domain.Actor, id string, approved domain.Price, expectedQuoteVersion int) (out domain.Quote, err error) {
	defer func() {
		s.emit(ctx, "quote.recalculate", id, actor, err, map[string]string{"newPrice": approved.String()})
	}()

	if !actor.CanMutate() {
		return domain.Quote{}, domain.ErrUnauthorized
	}
	if approved.IsOnRequest() {
		return domain.Quote{}, domain.NewValidationError("approved price must be numeric")
	}
	if approved.Amount().IsNegative() {
		return domain.Quote{}, domain.NewValidationError("approved price must not be negative")
	}
	q, err := s.mutableQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.Version != expectedQuoteVersion {
		return domain.Quote{}, fmt.Errorf("%w: quote %s is at version %d, review was for %d",
			domain.ErrVersionConflict, id, q.Version, expectedQuoteVersion)
	}
	if q.LinkedPackage == nil {
		return domain.Quote{}, domain.NewValidationError("quote %s has no linked package", id)
	}

	now := time.Now().UTC()
	q.TotalPrice = approved
	appendPrice(&q, approved, domain.PriceReasonRecalculation, actor.ID)
	q.LinkedPackage.CalculatedPrice = approved
	q.LinkedPackage.LastRecalculatedAt = now
	q.LinkedPackage.CustomPriceApplied = false

	q.Version++
	if q.Status.CanTransition(domain.QuoteUpdated) {
		q.Status = domain.QuoteUpdated
	}

	if err = s.save(ctx, &q, actor); err != nil {
		return domain.Quote{}, err
	}
	if err = s.recordQuote(ctx, q, actor, domain.ChangeReasonPriceRecalc); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

// SetManualPrice overrides the quote's price by hand. On a linked quote the
// snapshot is flagged so a later recalculation review shows the price no
// longer comes from the package.
func (s *QuoteService) SetManualPrice(ctx context.Context, actor domain.Actor, id string, price domain.Price) (out domain.Quote, err error) {
	defer func() {
		s.emit(ctx, "quote.price.manual", id, actor, err, map[string]string{"newPrice": price.String()})
	}()

	if !actor.CanMutate() {
		return domain.Quote{}, domain.ErrUnauthorized
	}
	if !price.IsOnRequest() && price.Amount().IsNegative() {
		return domain.Quote{}, domain.NewValidationError("price must not be negative")
	}
	q, err := s.mutableQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if price.Equals(q.TotalPrice) {
		return q, nil
	}

	q.TotalPrice = price
	appendPrice(&q, price, domain.PriceReasonManualUpdate, actor.ID)
	if q.LinkedPackage != nil {
		q.LinkedPackage.CustomPriceApplied = true
	}
	bumpOnSignificantChange(&q)

	if err = s.save(ctx, &q, actor); err != nil {
		return domain.Quote{}, err
	}
	if err = s.recordQuote(ctx, q, actor, domain.ChangeReasonPriceManual); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

// MarkSent records a successful email dispatch and moves draft→sent. Already
// sent (or since-updated) quotes are left alone so dispatch retries stay
// idempotent.
func (s *QuoteService) MarkSent(ctx context.Context, actor domain.Actor, id string) (out domain.Quote, err error) {
	defer func() { s.emit(ctx, "quote.send", id, actor, err, nil) }()

	if !actor.CanMutate() {
		return domain.Quote{}, domain.ErrUnauthorized
	}
	q, err := s.mutableQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.Status == domain.QuoteSent || q.Status == domain.QuoteUpdated {
		return q, nil
	}

	now := time.Now().UTC()
	q.Status = domain.QuoteSent
	q.SentAt = &now

	if err = s.save(ctx, &q, actor); err != nil {
		return domain.Quote{}, err
	}
	if err = s.recordQuote(ctx, q, actor, domain.ChangeReasonSent); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

// Archive retires a quote that has been sent; drafts are deleted by other
// means, not archived. Archived quotes reject every further mutation.
func (s *QuoteService) Archive(ctx context.Context, actor domain.Actor, id string) (out domain.Quote, err error) {
	defer func() { s.emit(ctx, "quote.archive", id, actor, err, nil) }()

	if !actor.CanMutate() {
		return domain.Quote{}, domain.ErrUnauthorized
	}
	q, err := s.quotes.GetQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if !q.Status.CanTransition(domain.QuoteArchived) {
		return domain.Quote{}, domain.NewValidationError("quote cannot move from %s to archived", q.Status)
	}

	q.Status = domain.QuoteArchived
	if err = s.save(ctx, &q, actor); err != nil {
		return domain.Quote{}, err
	}
	if err = s.recordQuote(ctx, q, actor, domain.ChangeReasonArchived); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

// ---- helpers ----

// mutableQuote loads a quote and rejects edits once it is archived.
func (s *QuoteService) mutableQuote(ctx context.Context, id string) (domain.Quote, error) {
	q, err := s.quotes.GetQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if !q.Status.Mutable() {
		return domain.Quote{}, domain.NewValidationError("quote %s is archived", id)
	}
	return q, nil
}

// save persists the quote conditional on the revision the caller read; the
// local copy is advanced to match the committed row.
func (s *QuoteService) save(ctx context.Context, q *domain.Quote, actor domain.Actor) error {
	expected := q.Revision
	q.LastModifiedBy = actor.ID
	q.UpdatedAt = time.Now().UTC()
	if err := s.quotes.UpdateQuote(ctx, *q, expected); err != nil {
		return err
	}
	q.Revision = expected + 1
	return nil
}

func (s *QuoteService) recordQuote(ctx context.Context, q domain.Quote, actor domain.Actor, reason string) error {
	snap, err := quoteSnapshot(q)
	if err != nil {
		return err
	}
	return s.hist.RecordVersion(ctx, domain.EntityQuote, q.ID, q.Version, snap, actor, reason)
}

func (s *QuoteService) emit(ctx context.Context, action, id string, actor domain.Actor, err error, details map[string]string) {
	if s.audit == nil {
		return
	}
	if err != nil {
		if details == nil {
			details = map[string]string{}
		}
		details["error"] = domain.ErrorCode(err)
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Action:     action,
		EntityType: domain.EntityQuote,
		ResourceID: id,
		ActorID:    actor.ID,
		Details:    details,
		Success:    err == nil,
		At:         time.Now().UTC(),
	})
}

func applyPatch(q *domain.Quote, p QuotePatch) (significant bool) {
	if p.EnquiryRef != nil {
		q.EnquiryRef = *p.EnquiryRef
	}
	if p.LeadName != nil {
		q.LeadName = *p.LeadName
	}
	if p.Destination != nil {
		q.Destination = *p.Destination
	}
	if p.Nights != nil {
		q.Nights = *p.Nights
	}
	if p.People != nil {
		q.People = *p.People
	}
	if p.Currency != nil {
		q.Currency = *p.Currency
	}
	if p.InternalNotes != nil {
		q.InternalNotes = *p.InternalNotes
	}
	if p.HotelName != nil && *p.HotelName != q.HotelName {
		q.HotelName = *p.HotelName
		significant = true
	}
	if p.ArrivalDate != nil && !p.ArrivalDate.Equal(q.ArrivalDate) {
		q.ArrivalDate = *p.ArrivalDate
		significant = true
	}
	if p.WhatsIncluded != nil && *p.WhatsIncluded != q.WhatsIncluded {
		q.WhatsIncluded = *p.WhatsIncluded
		significant = true
	}
	return significant
}

// bumpOnSignificantChange applies the version rule: a significant-field
// change after the quote went out bumps the version and moves sent→updated.
// Draft edits never bump.
func bumpOnSignificantChange(q *domain.Quote) {
	if q.Status.CanTransition(domain.QuoteUpdated) {
		q.Version++
		q.Status = domain.QuoteUpdated
	}
}

func appendPrice(q *domain.Quote, p domain.Price, reason, actorID string) {
	q.PriceHistory = append(q.PriceHistory, domain.PricePoint{
		Price:      p,
		Reason:     reason,
		ChangedBy:  actorID,
		RecordedAt: time.Now().UTC(),
	})
}
