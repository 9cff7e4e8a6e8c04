package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---- column helpers ----

// priceArgs splits the tagged price variant across the (amount, on_request)
// column pair: a NULL amount with the flag set means "on request".
func priceArgs(p domain.Price) (amount any, onRequest bool) {
	if p.IsOnRequest() {
		return nil, true
	}
	return p.Amount().String(), false
}

func priceFromRow(amount sql.NullString, onRequest bool) (domain.Price, error) {
	if onRequest {
		return domain.OnRequestPrice(), nil
	}
	if !amount.Valid {
		return domain.Price{}, nil
	}
	d, err := decimal.NewFromString(amount.String)
	if err != nil {
		return domain.Price{}, fmt.Errorf("parse price %q: %w", amount.String, err)
	}
	return domain.PriceOf(d), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// dateArg truncates to the DATE column's grain; arrival dates carry no
// time-of-day meaning anywhere in the domain.
func dateArg(t time.Time) string { return t.Format("2006-01-02") }

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

// zero affected rows on a CAS update is either a stale token or a missing
// row; probe which so the caller gets the right sentinel.
func (r *Repo) disambiguate(ctx context.Context, existsSQL, id string, notFound error) error {
	var one int
	switch err := r.db.QueryRowContext(ctx, existsSQL, id).Scan(&one); err {
	case nil:
		return domain.ErrVersionConflict
	case sql.ErrNoRows:
		return notFound
	default:
		return err
	}
}

// ---- packages ----

func (r *Repo) CreatePackage(ctx context.Context, p domain.Package) error {
	tiers, _ := json.Marshal(p.GroupSizeTiers)
	durations, _ := json.Marshal(p.DurationOptions)
	matrix, _ := json.Marshal(p.PricingMatrix)
	_, err := r.db.ExecContext(ctx, insertPackageSQL,
		p.ID,
		p.Name,
		p.Destination,
		p.Resort,
		p.Description,
		p.Currency,
		string(tiers),
		string(durations),
		string(matrix),
		string(p.Status),
		p.Version,
		p.CreatedBy,
		p.LastModifiedBy,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *Repo) UpdatePackage(ctx context.Context, p domain.Package, expectedVersion int) error {
	tiers, _ := json.Marshal(p.GroupSizeTiers)
	durations, _ := json.Marshal(p.DurationOptions)
	matrix, _ := json.Marshal(p.PricingMatrix)
	res, err := r.db.ExecContext(ctx, updatePackageSQL,
		p.Name,
		p.Destination,
		p.Resort,
		p.Description,
		p.Currency,
		string(tiers),
		string(durations),
		string(matrix),
		string(p.Status),
		p.Version,
		p.LastModifiedBy,
		p.UpdatedAt,
		p.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.disambiguate(ctx, existsPackageSQL, p.ID, domain.ErrPackageNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (domain.Package, error) {
	var p domain.Package
	var tiersJSON, durationsJSON, matrixJSON []byte
	var status string
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Destination,
		&p.Resort,
		&p.Description,
		&p.Currency,
		&tiersJSON,
		&durationsJSON,
		&matrixJSON,
		&status,
		&p.Version,
		&p.CreatedBy,
		&p.LastModifiedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return domain.Package{}, err
	}
	p.Status = domain.PackageStatus(status)
	if err := json.Unmarshal(tiersJSON, &p.GroupSizeTiers); err != nil {
		return domain.Package{}, fmt.Errorf("decode tiers of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(durationsJSON, &p.DurationOptions); err != nil {
		return domain.Package{}, fmt.Errorf("decode durations of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(matrixJSON, &p.PricingMatrix); err != nil {
		return domain.Package{}, fmt.Errorf("decode pricing matrix of %s: %w", p.ID, err)
	}
	return p, nil
}

func (r *Repo) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	p, err := scanPackage(r.db.QueryRowContext(ctx, getPackageSQL, id))
	if err == sql.ErrNoRows {
		return domain.Package{}, domain.ErrPackageNotFound
	}
	return p, err
}

func (r *Repo) ListPackages(ctx context.Context, q domain.PackagesQuery) (domain.PackagesPage, error) {
	var b strings.Builder
	b.WriteString(`
SELECT
  id, name, destination, resort, description, currency,
  group_size_tiers, duration_options, pricing_matrix,
  status, version, created_by, last_modified_by, created_at, updated_at
FROM packages
WHERE 1=1`)
	var args []any
	if q.Status != nil {
		b.WriteString(" AND status = ?")
		args = append(args, string(*q.Status))
	} else {
		// Soft-deleted packages stay reachable by ID but never list.
		b.WriteString(" AND status <> 'deleted'")
	}
	if q.Destination != nil {
		b.WriteString(" AND destination = ?")
		args = append(args, *q.Destination)
	}
	if q.Q != nil {
		b.WriteString(" AND (name LIKE ? OR destination LIKE ? OR resort LIKE ?)")
		like := "%" + *q.Q + "%"
		args = append(args, like, like, like)
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ?")
	args = append(args, defaultLimit(q.Limit))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return domain.PackagesPage{}, err
	}
	defer rows.Close()

	var out []domain.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return domain.PackagesPage{}, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return domain.PackagesPage{}, err
	}
	return domain.PackagesPage{Items: out}, nil
}

// ---- quotes ----

func (r *Repo) CreateQuote(ctx context.Context, q domain.Quote) error {
	amount, onRequest := priceArgs(q.TotalPrice)
	linked, _ := json.Marshal(q.LinkedPackage) // nil pointer marshals to "null"
	history, _ := json.Marshal(q.PriceHistory)
	_, err := r.db.ExecContext(ctx, insertQuoteSQL,
		q.ID,
		q.EnquiryRef,
		q.LeadName,
		q.HotelName,
		q.Destination,
		dateArg(q.ArrivalDate),
		q.Nights,
		q.People,
		q.Currency,
		amount,
		onRequest,
		q.WhatsIncluded,
		q.InternalNotes,
		string(q.Status),
		q.Version,
		q.Revision,
		nullableStr(linkedJSON(linked)),
		string(history),
		q.CreatedBy,
		q.LastModifiedBy,
		q.CreatedAt,
		q.UpdatedAt,
		nullableTime(q.SentAt),
	)
	return err
}

func (r *Repo) UpdateQuote(ctx context.Context, q domain.Quote, expectedRevision int64) error {
	amount, onRequest := priceArgs(q.TotalPrice)
	linked, _ := json.Marshal(q.LinkedPackage)
	history, _ := json.Marshal(q.PriceHistory)
	res, err := r.db.ExecContext(ctx, updateQuoteSQL,
		q.EnquiryRef,
		q.LeadName,
		q.HotelName,
		q.Destination,
		dateArg(q.ArrivalDate),
		q.Nights,
		q.People,
		q.Currency,
		amount,
		onRequest,
		q.WhatsIncluded,
		q.InternalNotes,
		string(q.Status),
		q.Version,
		nullableStr(linkedJSON(linked)),
		string(history),
		q.LastModifiedBy,
		q.UpdatedAt,
		nullableTime(q.SentAt),
		q.ID,
		expectedRevision,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.disambiguate(ctx, existsQuoteSQL, q.ID, domain.ErrQuoteNotFound)
	}
	return nil
}

// linkedJSON keeps a NULL column for an unlinked quote instead of the JSON
// literal null.
func linkedJSON(b []byte) string {
	if string(b) == "null" {
		return ""
	}
	return string(b)
}

func scanQuote(row rowScanner) (domain.Quote, error) {
	var q domain.Quote
	var amount sql.NullString
	var onRequest bool
	var status string
	var linkedRaw, historyRaw []byte
	var sentAt sql.NullTime
	var enquiryRef, destination, whatsIncluded, internalNotes, currency sql.NullString
	if err := row.Scan(
		&q.ID,
		&enquiryRef,
		&q.LeadName,
		&q.HotelName,
		&destination,
		&q.ArrivalDate,
		&q.Nights,
		&q.People,
		&currency,
		&amount,
		&onRequest,
		&whatsIncluded,
		&internalNotes,
		&status,
		&q.Version,
		&q.Revision,
		&linkedRaw,
		&historyRaw,
		&q.CreatedBy,
		&q.LastModifiedBy,
		&q.CreatedAt,
		&q.UpdatedAt,
		&sentAt,
	); err != nil {
		return domain.Quote{}, err
	}

	q.EnquiryRef = strOrEmpty(enquiryRef)
	q.Destination = strOrEmpty(destination)
	q.Currency = strOrEmpty(currency)
	q.WhatsIncluded = strOrEmpty(whatsIncluded)
	q.InternalNotes = strOrEmpty(internalNotes)
	q.Status = domain.QuoteStatus(status)

	price, err := priceFromRow(amount, onRequest)
	if err != nil {
		return domain.Quote{}, err
	}
	q.TotalPrice = price

	if len(linkedRaw) > 0 {
		if err := json.Unmarshal(linkedRaw, &q.LinkedPackage); err != nil {
			return domain.Quote{}, fmt.Errorf("decode linked package of %s: %w", q.ID, err)
		}
	}
	if len(historyRaw) > 0 {
		if err := json.Unmarshal(historyRaw, &q.PriceHistory); err != nil {
			return domain.Quote{}, fmt.Errorf("decode price history of %s: %w", q.ID, err)
		}
	}
	if sentAt.Valid {
		t := sentAt.Time
		q.SentAt = &t
	}
	return q, nil
}

func (r *Repo) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	q, err := scanQuote(r.db.QueryRowContext(ctx, getQuoteSQL, id))
	if err == sql.ErrNoRows {
		return domain.Quote{}, domain.ErrQuoteNotFound
	}
	return q, err
}

func (r *Repo) ListQuotes(ctx context.Context, f domain.QuotesQuery) (domain.QuotesPage, error) {
	var b strings.Builder
	b.WriteString(`
SELECT
  id, enquiry_ref, lead_name, hotel_name, destination, arrival_date,
  nights, people, currency, total_price, price_on_request,
  whats_included, internal_notes, status, version, revision,
  linked_package, price_history, created_by, last_modified_by,
  created_at, updated_at, sent_at
FROM quotes
WHERE 1=1`)
	var args []any
	if f.Status != nil {
		b.WriteString(" AND status = ?")
		args = append(args, string(*f.Status))
	}
	if f.PackageID != nil {
		b.WriteString(" AND linked_package_id = ?")
		args = append(args, *f.PackageID)
	}
	if f.Q != nil {
		b.WriteString(" AND (lead_name LIKE ? OR hotel_name LIKE ? OR enquiry_ref LIKE ?)")
		like := "%" + *f.Q + "%"
		args = append(args, like, like, like)
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ?")
	args = append(args, defaultLimit(f.Limit))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return domain.QuotesPage{}, err
	}
	defer rows.Close()

	var out []domain.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return domain.QuotesPage{}, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return domain.QuotesPage{}, err
	}
	return domain.QuotesPage{Items: out}, nil
}

func (r *Repo) ListQuotesByPackage(ctx context.Context, packageID string, pg domain.PageQuery) (domain.QuotesPage, error) {
	return r.ListQuotes(ctx, domain.QuotesQuery{PackageID: &packageID, Limit: pg.Limit})
}

// ---- version history ----

func (r *Repo) Append(ctx context.Context, e domain.VersionHistoryEntry) error {
	_, err := r.db.ExecContext(ctx, insertHistorySQL,
		e.ID,
		string(e.EntityType),
		e.EntityID,
		e.Version,
		string(e.Snapshot),
		e.ChangeReason,
		e.ChangedBy,
		e.CreatedAt,
	)
	return err
}

func scanHistory(row rowScanner) (domain.VersionHistoryEntry, error) {
	var e domain.VersionHistoryEntry
	var et string
	var snapshot []byte
	if err := row.Scan(
		&e.ID,
		&et,
		&e.EntityID,
		&e.Version,
		&snapshot,
		&e.ChangeReason,
		&e.ChangedBy,
		&e.CreatedAt,
	); err != nil {
		return domain.VersionHistoryEntry{}, err
	}
	e.EntityType = domain.EntityType(et)
	e.Snapshot = append(json.RawMessage(nil), snapshot...)
	return e, nil
}

func (r *Repo) ListByEntity(ctx context.Context, et domain.EntityType, entityID string, pg domain.PageQuery) (domain.HistoryPage, error) {
	rows, err := r.db.QueryContext(ctx, listHistorySQL, string(et), entityID, defaultLimit(pg.Limit))
	if err != nil {
		return domain.HistoryPage{}, err
	}
	defer rows.Close()

	var out []domain.VersionHistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return domain.HistoryPage{}, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return domain.HistoryPage{}, err
	}
	return domain.HistoryPage{Items: out}, nil
}

func (r *Repo) GetByVersion(ctx context.Context, et domain.EntityType, entityID string, version int) (domain.VersionHistoryEntry, error) {
	e, err := scanHistory(r.db.QueryRowContext(ctx, getHistoryByVersionSQL, string(et), entityID, version))
	if err == sql.ErrNoRows {
		return domain.VersionHistoryEntry{}, domain.ErrHistoryNotFound
	}
	return e, err
}
