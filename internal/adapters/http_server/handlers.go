// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/observability"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/app"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
)

type Handlers struct {
	Catalog *app.CatalogService
	Quotes  *app.QuoteService
	History *app.HistoryService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/packages", func(r chi.Router) {
		r.Post("/", h.createPackage)
		r.Get("/", h.listPackages)
		r.Get("/{id}", h.getPackage)
		r.Put("/{id}", h.updatePackage)
		r.Delete("/{id}", h.deletePackage)
		r.Post("/{id}/status", h.changePackageStatus)
		r.Get("/{id}/price", h.resolvePrice)
		r.Get("/{id}/history", h.packageHistory)
		r.Get("/{id}/history/compare", h.comparePackageVersions)
		r.Get("/{id}/audit", h.packageAuditTrail)
	})

	s.mux.Route("/v1/quotes", func(r chi.Router) {
		r.Post("/", h.createQuote)
		r.Get("/", h.listQuotes)
		r.Get("/{id}", h.getQuote)
		r.Patch("/{id}", h.updateQuote)
		r.Post("/{id}/link", h.linkPackage)
		r.Post("/{id}/unlink", h.unlinkPackage)
		r.Get("/{id}/recalculation", h.computeRecalculation)
		r.Post("/{id}/recalculation", h.applyRecalculation)
		r.Put("/{id}/price", h.setManualPrice)
		r.Post("/{id}/send", h.markSent)
		r.Post("/{id}/archive", h.archiveQuote)
		r.Get("/{id}/history", h.quoteHistory)
		r.Get("/{id}/history/compare", h.compareQuoteVersions)
		r.Get("/{id}/audit", h.quoteAuditTrail)
	})
}

// ---- response plumbing ----

func writeProblem(w http.ResponseWriter, status int, title, detail, code string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Code: code, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeErr maps taxonomy errors onto HTTP statuses. 422 marks requests that
// are well-formed but refused by pricing or lifecycle rules.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrPackageNotFound),
		errors.Is(err, domain.ErrQuoteNotFound),
		errors.Is(err, domain.ErrHistoryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPackageInactive),
		errors.Is(err, domain.ErrPriceOnRequest),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrGroupSizeOutOfRange),
		errors.Is(err, domain.ErrNoPricingForPeriod),
		errors.Is(err, domain.ErrNoPricingForCombination):
		status = http.StatusUnprocessableEntity
	}
	code := domain.ErrorCode(err)
	observability.ObserveAPIError(code)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal error" // driver/storage detail stays inside
	}
	writeProblem(w, status, http.StatusText(status), detail, code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "request body is not valid JSON", "VALIDATION_ERROR")
		return false
	}
	return true
}

func actor(r *http.Request) domain.Actor {
	a, _ := domain.ActorFromContext(r.Context())
	return a
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200", "VALIDATION_ERROR")
			return 0, false
		}
		limit = l
	}
	return limit, true
}

func queryDate(r *http.Request, key string) (time.Time, error) {
	return time.Parse("2006-01-02", r.URL.Query().Get(key))
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// ---- packages ----

func (h *Handlers) createPackage(w http.ResponseWriter, r *http.Request) {
	var pkg domain.Package
	if !decode(w, r, &pkg) {
		return
	}
	out, err := h.Catalog.CreatePackage(r.Context(), actor(r), pkg)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) listPackages(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := domain.PackagesQuery{Limit: limit}
	if v := r.URL.Query().Get("status"); v != "" {
		st := domain.PackageStatus(v)
		q.Status = &st
	}
	if v := r.URL.Query().Get("destination"); v != "" {
		q.Destination = &v
	}
	if v := r.URL.Query().Get("q"); v != "" {
		q.Q = &v
	}
	page, err := h.Catalog.ListPackages(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) getPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.Catalog.GetPackage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, pkg)
}

// updatePackage replaces the editable fields. The body carries the version the
// client read; a stale one comes back as 409.
func (h *Handlers) updatePackage(w http.ResponseWriter, r *http.Request) {
	var pkg domain.Package
	if !decode(w, r, &pkg) {
		return
	}
	pkg.ID = chi.URLParam(r, "id")
	out, err := h.Catalog.UpdatePackage(r.Context(), actor(r), pkg, pkg.Version)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deletePackage(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(r.URL.Query().Get("version"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid version", "version query parameter must be the current package version", "VALIDATION_ERROR")
		return
	}
	out, err := h.Catalog.ChangeStatus(r.Context(), actor(r), chi.URLParam(r, "id"), domain.PackageDeleted, version)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) changePackageStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status  domain.PackageStatus `json:"status"`
		Version int                  `json:"version"`
	}
	if !decode(w, r, &body) {
		return
	}
	out, err := h.Catalog.ChangeStatus(r.Context(), actor(r), chi.URLParam(r, "id"), body.Status, body.Version)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) resolvePrice(w http.ResponseWriter, r *http.Request) {
	people, err1 := strconv.Atoi(r.URL.Query().Get("people"))
	nights, err2 := strconv.Atoi(r.URL.Query().Get("nights"))
	arrival, err3 := queryDate(r, "arrival")
	if err1 != nil || err2 != nil || err3 != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query",
			"people and nights must be integers, arrival must be YYYY-MM-DD", "VALIDATION_ERROR")
		return
	}
	res, err := h.Catalog.ResolvePrice(r.Context(), chi.URLParam(r, "id"), people, nights, arrival)
	if err != nil {
		observability.ObservePriceResolution(domain.ErrorCode(err))
		writeErr(w, err)
		return
	}
	if res.OnRequest {
		observability.ObservePriceResolution("on_request")
	} else {
		observability.ObservePriceResolution("priced")
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- quotes ----

func (h *Handlers) createQuote(w http.ResponseWriter, r *http.Request) {
	var q domain.Quote
	if !decode(w, r, &q) {
		return
	}
	out, err := h.Quotes.CreateQuote(r.Context(), actor(r), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) listQuotes(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := domain.QuotesQuery{Limit: limit}
	if v := r.URL.Query().Get("status"); v != "" {
		st := domain.QuoteStatus(v)
		q.Status = &st
	}
	if v := r.URL.Query().Get("packageId"); v != "" {
		q.PackageID = &v
	}
	if v := r.URL.Query().Get("q"); v != "" {
		q.Q = &v
	}
	page, err := h.Quotes.ListQuotes(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) getQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.Quotes.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, q)
}

func (h *Handlers) updateQuote(w http.ResponseWriter, r *http.Request) {
	var patch app.QuotePatch
	if !decode(w, r, &patch) {
		return
	}
	out, err := h.Quotes.UpdateQuote(r.Context(), actor(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) linkPackage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PackageID   string     `json:"packageId"`
		People      int        `json:"people"`
		Nights      int        `json:"nights"`
		ArrivalDate *time.Time `json:"arrivalDate"`
	}
	if !decode(w, r, &body) {
		return
	}
	var arrival time.Time
	if body.ArrivalDate != nil {
		arrival = *body.ArrivalDate
	}
	out, err := h.Quotes.LinkPackage(r.Context(), actor(r), chi.URLParam(r, "id"), body.PackageID, body.People, body.Nights, arrival)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) unlinkPackage(w http.ResponseWriter, r *http.Request) {
	out, err := h.Quotes.UnlinkPackage(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) computeRecalculation(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.Quotes.ComputeRecalculation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (h *Handlers) applyRecalculation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ApprovedPrice   domain.Price `json:"approvedPrice"`
		ExpectedVersion int          `json:"expectedVersion"`
	}
	if !decode(w, r, &body) {
		return
	}
	out, err := h.Quotes.ApplyRecalculation(r.Context(), actor(r), chi.URLParam(r, "id"), body.ApprovedPrice, body.ExpectedVersion)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) setManualPrice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Price domain.Price `json:"price"`
	}
	if !decode(w, r, &body) {
		return
	}
	out, err := h.Quotes.SetManualPrice(r.Context(), actor(r), chi.URLParam(r, "id"), body.Price)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) markSent(w http.ResponseWriter, r *http.Request) {
	out, err := h.Quotes.MarkSent(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) archiveQuote(w http.ResponseWriter, r *http.Request) {
	out, err := h.Quotes.Archive(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- version history ----

func (h *Handlers) packageHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, domain.EntityPackage)
}

func (h *Handlers) quoteHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, domain.EntityQuote)
}

func (h *Handlers) history(w http.ResponseWriter, r *http.Request, et domain.EntityType) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	page, err := h.History.GetHistory(r.Context(), et, chi.URLParam(r, "id"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) comparePackageVersions(w http.ResponseWriter, r *http.Request) {
	h.compare(w, r, domain.EntityPackage)
}

func (h *Handlers) compareQuoteVersions(w http.ResponseWriter, r *http.Request) {
	h.compare(w, r, domain.EntityQuote)
}

func (h *Handlers) compare(w http.ResponseWriter, r *http.Request, et domain.EntityType) {
	from, err1 := strconv.Atoi(r.URL.Query().Get("from"))
	to, err2 := strconv.Atoi(r.URL.Query().Get("to"))
	if err1 != nil || err2 != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "from and to must be version numbers", "VALIDATION_ERROR")
		return
	}
	cmp, err := h.History.CompareVersions(r.Context(), et, chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (h *Handlers) packageAuditTrail(w http.ResponseWriter, r *http.Request) {
	h.auditTrail(w, r, domain.EntityPackage)
}

func (h *Handlers) quoteAuditTrail(w http.ResponseWriter, r *http.Request) {
	h.auditTrail(w, r, domain.EntityQuote)
}

func (h *Handlers) auditTrail(w http.ResponseWriter, r *http.Request, et domain.EntityType) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	trail, err := h.History.AuditTrail(r.Context(), et, chi.URLParam(r, "id"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}
