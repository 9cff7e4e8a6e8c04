package app_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
)

// ---- fakes ----

type fakePackages struct {
	mu    sync.Mutex
	items map[string]domain.Package
}

func (f *fakePackages) CreatePackage(ctx context.Context, p domain.Package) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items == nil {
		f.items = map[string]domain.Package{}
	}
	if _, ok := f.items[p.ID]; ok {
		return fmt.Errorf("duplicate package id %s", p.ID)
	}
	f.items[p.ID] = p
	return nil
}

func (f *fakePackages) UpdatePackage(ctx context.Context, p domain.Package, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.items[p.ID]
	if !ok {
		return domain.ErrPackageNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	f.items[p.ID] = p
	return nil
}

func (f *fakePackages) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return domain.Package{}, domain.ErrPackageNotFound
	}
	return p, nil
}

func (f *fakePackages) ListPackages(ctx context.Context, q domain.PackagesQuery) (domain.PackagesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var page domain.PackagesPage
	for _, p := range f.items {
		if q.Status != nil && p.Status != *q.Status {
			continue
		}
		if q.Status == nil && p.Status == domain.PackageDeleted {
			continue
		}
		page.Items = append(page.Items, p)
	}
	return page, nil
}

type fakeQuotes struct {
	mu    sync.Mutex
	items map[string]domain.Quote
}

func (f *fakeQuotes) CreateQuote(ctx context.Context, q domain.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items == nil {
		f.items = map[string]domain.Quote{}
	}
	if _, ok := f.items[q.ID]; ok {
		return fmt.Errorf("duplicate quote id %s", q.ID)
	}
	f.items[q.ID] = q
	return nil
}

func (f *fakeQuotes) UpdateQuote(ctx context.Context, q domain.Quote, expectedRevision int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.items[q.ID]
	if !ok {
		return domain.ErrQuoteNotFound
	}
	if cur.Revision != expectedRevision {
		return domain.ErrVersionConflict
	}
	q.Revision = expectedRevision + 1
	f.items[q.ID] = q
	return nil
}

func (f *fakeQuotes) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.items[id]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteNotFound
	}
	return q, nil
}

func (f *fakeQuotes) ListQuotes(ctx context.Context, q domain.QuotesQuery) (domain.QuotesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var page domain.QuotesPage
	for _, item := range f.items {
		if q.Status != nil && item.Status != *q.Status {
			continue
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func (f *fakeQuotes) ListQuotesByPackage(ctx context.Context, packageID string, pg domain.PageQuery) (domain.QuotesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var page domain.QuotesPage
	for _, item := range f.items {
		if item.LinkedPackage != nil && item.LinkedPackage.PackageID == packageID {
			page.Items = append(page.Items, item)
		}
	}
	return page, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.VersionHistoryEntry
}

func (f *fakeHistory) Append(ctx context.Context, e domain.VersionHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistory) ListByEntity(ctx context.Context, et domain.EntityType, entityID string, pg domain.PageQuery) (domain.HistoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var page domain.HistoryPage
	// newest first
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.EntityType != et || e.EntityID != entityID {
			continue
		}
		page.Items = append(page.Items, e)
		if pg.Limit > 0 && len(page.Items) == pg.Limit {
			break
		}
	}
	return page, nil
}

func (f *fakeHistory) GetByVersion(ctx context.Context, et domain.EntityType, entityID string, version int) (domain.VersionHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.EntityType == et && e.EntityID == entityID && e.Version == version {
			return e, nil
		}
	}
	return domain.VersionHistoryEntry{}, domain.ErrHistoryNotFound
}

func (f *fakeHistory) byEntity(et domain.EntityType, id string) []domain.VersionHistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VersionHistoryEntry
	for _, e := range f.entries {
		if e.EntityType == et && e.EntityID == id {
			out = append(out, e)
		}
	}
	return out
}

type fakeAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (f *fakeAudit) Record(ctx context.Context, e domain.AuditEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeAudit) last() (domain.AuditEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return domain.AuditEvent{}, false
	}
	return f.events[len(f.events)-1], true
}

type fakeDirectory struct {
	names map[string]string
}

func (f *fakeDirectory) DisplayName(ctx context.Context, actorID string) (string, error) {
	n, ok := f.names[actorID]
	if !ok {
		return "", fmt.Errorf("actor %s not in directory", actorID)
	}
	return n, nil
}

type fakeCache struct {
	store map[string]any
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*domain.Package); ok {
		*d = v.(domain.Package)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

// ---- fixtures ----

var (
	admin = domain.Actor{ID: "u-admin", Name: "Ops Admin", Role: domain.RoleAdmin}
	agent = domain.Actor{ID: "u-agent", Name: "Desk Agent", Role: domain.RoleAgent}
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixed(v int64) domain.Price { return domain.PriceOf(decimal.NewFromInt(v)) }

// activePackage prices tier 6-11 at 100/person and tier 12+ at 90/person for
// 2 nights in January, with an on-request March cell.
func activePackage(id string) domain.Package {
	return domain.Package{
		ID:       id,
		Name:     "Benidorm Super Saver",
		Currency: "GBP",
		Status:   domain.PackageActive,
		Version:  1,
		GroupSizeTiers: []domain.GroupSizeTier{
			{Label: "6-11", MinPeople: 6, MaxPeople: 11},
			{Label: "12+", MinPeople: 12, MaxPeople: 999},
		},
		DurationOptions: []int{2, 3, 4},
		PricingMatrix: []domain.PricingPeriod{
			{
				Label: "January", Type: domain.PeriodMonth,
				Entries: []domain.PriceEntry{
					{TierIndex: 0, Nights: 2, Price: fixed(100)},
					{TierIndex: 1, Nights: 2, Price: fixed(90)},
				},
			},
			{
				Label: "March", Type: domain.PeriodMonth,
				Entries: []domain.PriceEntry{
					{TierIndex: 0, Nights: 2, Price: domain.OnRequestPrice()},
				},
			},
		},
		CreatedBy: admin.ID,
		CreatedAt: day(2024, time.June, 1),
		UpdatedAt: day(2024, time.June, 1),
	}
}

func draftQuote(id string) domain.Quote {
	return domain.Quote{
		ID:          id,
		EnquiryRef:  "ENQ-1001",
		LeadName:    "Sam",
		HotelName:   "Hotel Sol",
		ArrivalDate: day(2025, time.January, 15),
		Nights:      2,
		People:      8,
		Status:      domain.QuoteDraft,
		Version:     1,
		Revision:    1,
		CreatedBy:   admin.ID,
		CreatedAt:   day(2024, time.July, 1),
		UpdatedAt:   day(2024, time.July, 1),
	}
}

func seedQuote(f *fakeQuotes, q domain.Quote) {
	if f.items == nil {
		f.items = map[string]domain.Quote{}
	}
	f.items[q.ID] = q
}

func seedPackage(f *fakePackages, p domain.Package) {
	if f.items == nil {
		f.items = map[string]domain.Package{}
	}
	f.items[p.ID] = p
}
