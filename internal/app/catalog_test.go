package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/app"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
)

func newCatalogService() (*app.CatalogService, *fakePackages, *fakeCache, *fakeHistory, *fakeAudit) {
	pkgs := &fakePackages{}
	cache := &fakeCache{}
	histRepo := &fakeHistory{}
	audit := &fakeAudit{}
	hist := app.NewHistoryService(histRepo, &fakeDirectory{})
	return app.NewCatalogService(pkgs, cache, hist, audit, 10*time.Minute), pkgs, cache, histRepo, audit
}

func TestCreatePackage_DefaultsAndHistory(t *testing.T) {
	svc, _, _, histRepo, audit := newCatalogService()

	p := activePackage("")
	p.Status = ""
	out, err := svc.CreatePackage(context.Background(), admin, p)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.ID == "" || out.Version != 1 || out.Status != domain.PackageDraft {
		t.Fatalf("unexpected package: id=%q v=%d status=%s", out.ID, out.Version, out.Status)
	}
	if out.CreatedBy != admin.ID || out.LastModifiedBy != admin.ID {
		t.Fatalf("audit fields not stamped: %+v", out)
	}
	entries := histRepo.byEntity(domain.EntityPackage, out.ID)
	if len(entries) != 1 || entries[0].Version != 1 || entries[0].ChangeReason != domain.ChangeReasonCreated {
		t.Fatalf("unexpected history: %+v", entries)
	}
	if ev, ok := audit.last(); !ok || !ev.Success || ev.Action != "package.create" {
		t.Fatalf("unexpected audit event: %+v", ev)
	}
}

func TestCreatePackage_InvalidTiersRejected(t *testing.T) {
	svc, _, _, _, _ := newCatalogService()

	p := activePackage("")
	p.GroupSizeTiers = []domain.GroupSizeTier{
		{Label: "6-11", MinPeople: 6, MaxPeople: 11},
		{Label: "10+", MinPeople: 10, MaxPeople: 999}, // overlaps
	}
	if _, err := svc.CreatePackage(context.Background(), admin, p); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ValidationError, got %v", err)
	}

	p = activePackage("")
	p.PricingMatrix[0].Entries = append(p.PricingMatrix[0].Entries,
		domain.PriceEntry{TierIndex: 5, Nights: 2, Price: fixed(10)}) // bad tier index
	if _, err := svc.CreatePackage(context.Background(), admin, p); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestCreatePackage_RequiresAdmin(t *testing.T) {
	svc, _, _, _, audit := newCatalogService()

	if _, err := svc.CreatePackage(context.Background(), agent, activePackage("")); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if ev, ok := audit.last(); !ok || ev.Success {
		t.Fatalf("expected failed audit event, got %+v", ev)
	}
}

func TestUpdatePackage_CASAndCacheInvalidation(t *testing.T) {
	svc, pkgs, _, histRepo, _ := newCatalogService()
	seedPackage(pkgs, activePackage("pkg1"))

	// Warm the cache.
	if _, err := svc.GetPackage(context.Background(), "pkg1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	upd := activePackage("pkg1")
	upd.Name = "Benidorm Deluxe"
	out, err := svc.UpdatePackage(context.Background(), admin, upd, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.Version != 2 || out.Name != "Benidorm Deluxe" {
		t.Fatalf("unexpected package: %+v", out)
	}

	// The cache entry was dropped, so the next read sees the new name.
	got, err := svc.GetPackage(context.Background(), "pkg1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Benidorm Deluxe" || got.Version != 2 {
		t.Fatalf("stale read after update: %+v", got)
	}

	entries := histRepo.byEntity(domain.EntityPackage, "pkg1")
	if len(entries) != 1 || entries[0].Version != 2 || entries[0].ChangeReason != domain.ChangeReasonUpdated {
		t.Fatalf("unexpected history: %+v", entries)
	}

	// A writer still holding version 1 must conflict.
	stale := activePackage("pkg1")
	stale.Name = "Too Late"
	if _, err := svc.UpdatePackage(context.Background(), admin, stale, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("want ErrVersionConflict, got %v", err)
	}
}

func TestUpdatePackage_KeepsLifecycleAndCreationFacts(t *testing.T) {
	svc, pkgs, _, _, _ := newCatalogService()
	p := activePackage("pkg1")
	p.CreatedBy = "u-original"
	seedPackage(pkgs, p)

	upd := activePackage("pkg1")
	upd.Status = domain.PackageDeleted // ignored: status moves via ChangeStatus
	upd.CreatedBy = "u-impostor"
	out, err := svc.UpdatePackage(context.Background(), admin, upd, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.Status != domain.PackageActive || out.CreatedBy != "u-original" {
		t.Fatalf("update must not rewrite lifecycle or creation facts: %+v", out)
	}
}

func TestChangeStatus_Lifecycle(t *testing.T) {
	svc, pkgs, _, _, _ := newCatalogService()
	p := activePackage("pkg1")
	p.Status = domain.PackageDraft
	seedPackage(pkgs, p)

	out, err := svc.ChangeStatus(context.Background(), admin, "pkg1", domain.PackageActive, 1)
	if err != nil {
		t.Fatalf("draft→active: %v", err)
	}
	if out.Status != domain.PackageActive || out.Version != 2 {
		t.Fatalf("unexpected package: %+v", out)
	}

	if _, err := svc.ChangeStatus(context.Background(), admin, "pkg1", domain.PackageDraft, 2); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("active→draft must fail, got %v", err)
	}

	out, err = svc.ChangeStatus(context.Background(), admin, "pkg1", domain.PackageDeleted, 2)
	if err != nil {
		t.Fatalf("active→deleted: %v", err)
	}
	if out.Status != domain.PackageDeleted {
		t.Fatalf("unexpected package: %+v", out)
	}

	// Deleted is terminal.
	if _, err := svc.ChangeStatus(context.Background(), admin, "pkg1", domain.PackageActive, 3); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("deleted→active must fail, got %v", err)
	}
}

func TestGetPackage_CacheMissThenHit(t *testing.T) {
	svc, pkgs, _, _, _ := newCatalogService()
	seedPackage(pkgs, activePackage("pkg1"))

	// Miss (first time, populates cache)
	got, err := svc.GetPackage(context.Background(), "pkg1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got.Name != "Benidorm Super Saver" {
		t.Fatalf("unexpected package: %+v", got)
	}

	// Mutate repo behind the cache to prove the second read is cached.
	p, _ := pkgs.GetPackage(context.Background(), "pkg1")
	p.Name = "SHOULD NOT SEE THIS"
	seedPackage(pkgs, p)

	got2, err := svc.GetPackage(context.Background(), "pkg1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got2.Name != "Benidorm Super Saver" {
		t.Fatalf("expected cached name, got %q", got2.Name)
	}
}

func TestListPackages_ExcludesDeletedByDefault(t *testing.T) {
	svc, pkgs, _, _, _ := newCatalogService()
	seedPackage(pkgs, activePackage("pkg1"))
	del := activePackage("pkg2")
	del.Status = domain.PackageDeleted
	seedPackage(pkgs, del)

	page, err := svc.ListPackages(context.Background(), domain.PackagesQuery{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "pkg1" {
		t.Fatalf("deleted package leaked into listing: %+v", page.Items)
	}

	deleted := domain.PackageDeleted
	page, err = svc.ListPackages(context.Background(), domain.PackagesQuery{Status: &deleted})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "pkg2" {
		t.Fatalf("explicit filter must surface deleted packages: %+v", page.Items)
	}
}

func TestResolvePrice_ThroughCatalog(t *testing.T) {
	svc, pkgs, _, _, _ := newCatalogService()
	seedPackage(pkgs, activePackage("pkg1"))

	res, err := svc.ResolvePrice(context.Background(), "pkg1", 8, 2, day(2025, time.January, 15))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !res.TotalPrice.Amount().Equal(decimal.NewFromInt(800)) {
		t.Fatalf("total: got %s, want 800", res.TotalPrice)
	}

	if _, err := svc.ResolvePrice(context.Background(), "missing", 8, 2, day(2025, time.January, 15)); !errors.Is(err, domain.ErrPackageNotFound) {
		t.Fatalf("want ErrPackageNotFound, got %v", err)
	}
}
