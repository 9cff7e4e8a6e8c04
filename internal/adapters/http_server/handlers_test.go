package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	httpserver "github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/http_server"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/app"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
)

// ---- fakes ----

type memPackages struct {
	mu   sync.Mutex
	rows map[string]domain.Package
}

func (m *memPackages) CreatePackage(_ context.Context, p domain.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
	return nil
}

func (m *memPackages) UpdatePackage(_ context.Context, p domain.Package, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[p.ID]
	if !ok {
		return domain.ErrPackageNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	m.rows[p.ID] = p
	return nil
}

func (m *memPackages) GetPackage(_ context.Context, id string) (domain.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return domain.Package{}, domain.ErrPackageNotFound
	}
	return p, nil
}

func (m *memPackages) ListPackages(_ context.Context, _ domain.PackagesQuery) (domain.PackagesPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []domain.Package
	for _, p := range m.rows {
		if p.Status != domain.PackageDeleted {
			items = append(items, p)
		}
	}
	return domain.PackagesPage{Items: items}, nil
}

type memQuotes struct {
	mu   sync.Mutex
	rows map[string]domain.Quote
}

func (m *memQuotes) CreateQuote(_ context.Context, q domain.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[q.ID] = q
	return nil
}

func (m *memQuotes) UpdateQuote(_ context.Context, q domain.Quote, expectedRevision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[q.ID]
	if !ok {
		return domain.ErrQuoteNotFound
	}
	if cur.Revision != expectedRevision {
		return domain.ErrVersionConflict
	}
	q.Revision = expectedRevision + 1
	m.rows[q.ID] = q
	return nil
}

func (m *memQuotes) GetQuote(_ context.Context, id string) (domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.rows[id]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteNotFound
	}
	return q, nil
}

func (m *memQuotes) ListQuotes(_ context.Context, _ domain.QuotesQuery) (domain.QuotesPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []domain.Quote
	for _, q := range m.rows {
		items = append(items, q)
	}
	return domain.QuotesPage{Items: items}, nil
}

func (m *memQuotes) ListQuotesByPackage(_ context.Context, _ string, _ domain.PageQuery) (domain.QuotesPage, error) {
	return domain.QuotesPage{}, nil
}

type memHistory struct {
	mu      sync.Mutex
	entries []domain.VersionHistoryEntry
}

func (m *memHistory) Append(_ context.Context, e domain.VersionHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memHistory) ListByEntity(_ context.Context, et domain.EntityType, id string, _ domain.PageQuery) (domain.HistoryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []domain.VersionHistoryEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].EntityType == et && m.entries[i].EntityID == id {
			items = append(items, m.entries[i])
		}
	}
	return domain.HistoryPage{Items: items}, nil
}

func (m *memHistory) GetByVersion(_ context.Context, et domain.EntityType, id string, version int) (domain.VersionHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.EntityType == et && e.EntityID == id && e.Version == version {
			return e, nil
		}
	}
	return domain.VersionHistoryEntry{}, domain.ErrHistoryNotFound
}

type memCache struct {
	mu   sync.Mutex
	vals map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.vals[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, _ := json.Marshal(v)
	c.vals[key] = b
	return nil
}

func (c *memCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vals, key)
	return nil
}

type staticNames map[string]string

func (d staticNames) DisplayName(_ context.Context, id string) (string, error) {
	if n, ok := d[id]; ok {
		return n, nil
	}
	return "", fmt.Errorf("unknown actor %s", id)
}

// ---- fixtures ----

func testPackageBody() map[string]any {
	return map[string]any{
		"name":        "Benidorm Super Package",
		"destination": "Benidorm",
		"currency":    "GBP",
		"status":      "active",
		"groupSizeTiers": []map[string]any{
			{"label": "6-11", "minPeople": 6, "maxPeople": 11},
		},
		"durationOptions": []int{2, 3},
		"pricingMatrix": []map[string]any{
			{
				"label": "January",
				"type":  "month",
				"entries": []map[string]any{
					{"groupSizeTierIndex": 0, "nights": 2, "price": map[string]any{"amount": "100.00"}},
					{"groupSizeTierIndex": 0, "nights": 3, "price": map[string]any{"onRequest": true}},
				},
			},
		},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	// Quote-side link tests read packages through the same repo the catalog
	// writes, so the two services share it.
	pkgs := &memPackages{rows: map[string]domain.Package{}}
	hist := app.NewHistoryService(&memHistory{}, staticNames{"u-admin": "Ada Admin"})
	catalog := app.NewCatalogService(pkgs, &memCache{vals: map[string][]byte{}}, hist, nil, time.Minute)
	quotes := app.NewQuoteService(&memQuotes{rows: map[string]domain.Quote{}}, pkgs, hist, nil)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Catalog: catalog, Quotes: quotes, History: hist})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, admin bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Actor-Id", "u-admin")
		req.Header.Set("X-Actor-Name", "Ada Admin")
		req.Header.Set("X-Actor-Role", "admin")
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return res
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// ---- tests ----

func TestCreatePackage_RequiresAdminHeaders(t *testing.T) {
	ts := newTestServer(t)

	res := doJSON(t, http.MethodPost, ts.URL+"/v1/packages", testPackageBody(), false)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.StatusCode)
	}
	p := decodeBody[map[string]any](t, res)
	if p["code"] != "UNAUTHORIZED" {
		t.Fatalf("code = %v, want UNAUTHORIZED", p["code"])
	}
}

func TestPackageLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	res := doJSON(t, http.MethodPost, ts.URL+"/v1/packages", testPackageBody(), true)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", res.StatusCode)
	}
	created := decodeBody[domain.Package](t, res)
	if created.ID == "" || created.Version != 1 {
		t.Fatalf("created = %+v", created)
	}

	// GET carries an ETag; replaying it yields 304.
	res = doJSON(t, http.MethodGet, ts.URL+"/v1/packages/"+created.ID, nil, false)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", res.StatusCode)
	}
	etag := res.Header.Get("ETag")
	res.Body.Close()
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/packages/"+created.ID, nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional get: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional status = %d, want 304", res2.StatusCode)
	}

	// Stale update (version already consumed) maps to 409.
	body := testPackageBody()
	body["name"] = "Renamed"
	body["version"] = 1
	res = doJSON(t, http.MethodPut, ts.URL+"/v1/packages/"+created.ID, body, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", res.StatusCode)
	}
	res.Body.Close()
	res = doJSON(t, http.MethodPut, ts.URL+"/v1/packages/"+created.ID, body, true)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("stale update status = %d, want 409", res.StatusCode)
	}
	p := decodeBody[map[string]any](t, res)
	if p["code"] != "VERSION_CONFLICT" {
		t.Fatalf("code = %v, want VERSION_CONFLICT", p["code"])
	}
}

func TestResolvePriceOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	res := doJSON(t, http.MethodPost, ts.URL+"/v1/packages", testPackageBody(), true)
	created := decodeBody[domain.Package](t, res)

	url := fmt.Sprintf("%s/v1/packages/%s/price?people=8&nights=2&arrival=2025-01-15", ts.URL, created.ID)
	res = doJSON(t, http.MethodGet, url, nil, false)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d, want 200", res.StatusCode)
	}
	out := decodeBody[map[string]any](t, res)
	if out["isOnRequest"] != false {
		t.Fatalf("isOnRequest = %v", out["isOnRequest"])
	}
	total, _ := decimal.NewFromString(out["totalPrice"].(map[string]any)["amount"].(string))
	if !total.Equal(decimal.RequireFromString("800.00")) {
		t.Fatalf("totalPrice = %v, want 800.00", out["totalPrice"])
	}

	// On-request combinations resolve successfully; the flag travels in-band.
	url = fmt.Sprintf("%s/v1/packages/%s/price?people=8&nights=3&arrival=2025-01-15", ts.URL, created.ID)
	res = doJSON(t, http.MethodGet, url, nil, false)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("on-request resolve status = %d, want 200", res.StatusCode)
	}
	out = decodeBody[map[string]any](t, res)
	if out["isOnRequest"] != true {
		t.Fatalf("isOnRequest = %v, want true", out["isOnRequest"])
	}

	// Unknown duration is refused, not guessed.
	url = fmt.Sprintf("%s/v1/packages/%s/price?people=8&nights=7&arrival=2025-01-15", ts.URL, created.ID)
	res = doJSON(t, http.MethodGet, url, nil, false)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad duration status = %d, want 422", res.StatusCode)
	}
	out = decodeBody[map[string]any](t, res)
	if out["code"] != "INVALID_DURATION" {
		t.Fatalf("code = %v, want INVALID_DURATION", out["code"])
	}
}

func TestQuoteNotFoundAndBadLimit(t *testing.T) {
	ts := newTestServer(t)

	res := doJSON(t, http.MethodGet, ts.URL+"/v1/quotes/nope", nil, false)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
	p := decodeBody[map[string]any](t, res)
	if p["code"] != "QUOTE_NOT_FOUND" {
		t.Fatalf("code = %v, want QUOTE_NOT_FOUND", p["code"])
	}

	res = doJSON(t, http.MethodGet, ts.URL+"/v1/quotes?limit=0", nil, false)
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("limit status = %d, want 400", res.StatusCode)
	}
}

func TestQuoteFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	res := doJSON(t, http.MethodPost, ts.URL+"/v1/packages", testPackageBody(), true)
	pkg := decodeBody[domain.Package](t, res)

	quoteBody := map[string]any{
		"leadName":    "Sam",
		"hotelName":   "Hotel Sol",
		"arrivalDate": "2025-01-15T00:00:00Z",
		"nights":      2,
		"people":      8,
		"currency":    "GBP",
	}
	res = doJSON(t, http.MethodPost, ts.URL+"/v1/quotes", quoteBody, true)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create quote status = %d, want 201", res.StatusCode)
	}
	q := decodeBody[domain.Quote](t, res)

	res = doJSON(t, http.MethodPost, ts.URL+"/v1/quotes/"+q.ID+"/link",
		map[string]any{"packageId": pkg.ID}, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("link status = %d, want 200", res.StatusCode)
	}
	linked := decodeBody[domain.Quote](t, res)
	if linked.LinkedPackage == nil || linked.LinkedPackage.PackageID != pkg.ID {
		t.Fatalf("linked = %+v", linked.LinkedPackage)
	}
	if !linked.TotalPrice.Equals(q.TotalPrice) {
		t.Fatalf("linking must not reprice the quote")
	}

	res = doJSON(t, http.MethodPut, ts.URL+"/v1/quotes/"+q.ID+"/price",
		map[string]any{"price": map[string]any{"amount": "800.00"}}, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("manual price status = %d, want 200", res.StatusCode)
	}
	priced := decodeBody[domain.Quote](t, res)
	if len(priced.PriceHistory) == 0 {
		t.Fatalf("manual price must append to the price history")
	}

	res = doJSON(t, http.MethodPost, ts.URL+"/v1/quotes/"+q.ID+"/send", nil, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("send status = %d, want 200", res.StatusCode)
	}
	sent := decodeBody[domain.Quote](t, res)
	if sent.Status != domain.QuoteSent || sent.SentAt == nil {
		t.Fatalf("sent = %+v", sent)
	}

	// History shows each recorded version, newest first.
	res = doJSON(t, http.MethodGet, ts.URL+"/v1/quotes/"+q.ID+"/history", nil, false)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", res.StatusCode)
	}
	page := decodeBody[domain.HistoryPage](t, res)
	if len(page.Items) < 3 {
		t.Fatalf("history entries = %d, want >= 3", len(page.Items))
	}

	// Audit trail resolves display names through the directory.
	res = doJSON(t, http.MethodGet, ts.URL+"/v1/quotes/"+q.ID+"/audit", nil, false)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("audit status = %d", res.StatusCode)
	}
	trail := decodeBody[[]app.AuditTrailEntry](t, res)
	if len(trail) == 0 || trail[0].ChangedByName != "Ada Admin" {
		t.Fatalf("trail = %+v", trail)
	}
}
