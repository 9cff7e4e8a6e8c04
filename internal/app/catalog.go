package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/pricing"
)

type CatalogService struct {
	repo     domain.PackageRepository
	cache    domain.Cache
	hist     *HistoryService
	audit    domain.AuditSink
	cacheTTL time.Duration
}

func NewCatalogService(r domain.PackageRepository, c domain.Cache, h *HistoryService, a domain.AuditSink, ttl time.Duration) *CatalogService {
	return &CatalogService{repo: r, cache: c, hist: h, audit: a, cacheTTL: ttl}
}

// CreatePackage validates and stores a new package at version 1.
func (s *CatalogService) CreatePackage(ctx context.Context, actor domain.Actor, pkg domain.Package) (out domain.Package, err error) {
	defer func() { s.emit(ctx, "package.create", pkg.ID, actor, err) }()

	if !actor.CanMutate() {
		return domain.Package{}, domain.ErrUnauthorized
	}

	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	}
	if pkg.Status == "" {
		pkg.Status = domain.PackageDraft
	}
	now := time.Now().UTC()
	pkg.Version = 1
	pkg.CreatedBy = actor.ID
	pkg.LastModifiedBy = actor.ID
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	if err = pkg.Validate(); err != nil {
		return domain.Package{}, err
	}
	if err = s.repo.CreatePackage(ctx, pkg); err != nil {
		return domain.Package{}, err
	}
	if err = s.recordPackage(ctx, pkg, actor, domain.ChangeReasonCreated); err != nil {
		return domain.Package{}, err
	}
	return pkg, nil
}

// UpdatePackage replaces the mutable fields of a package, conditional on the
// caller having seen version expectedVersion. Status is not touched here;
// lifecycle moves go through ChangeStatus.
func (s *CatalogService) UpdatePackage(ctx context.Context, actor domain.Actor, pkg domain.Package, expectedVersion int) (out domain.Package, err error) {
	defer func() { s.emit(ctx, "package.update", pkg.ID, actor, err) }()

	if !actor.CanMutate() {
		return domain.Package{}, domain.ErrUnauthorized
	}

	cur, err := s.repo.GetPackage(ctx, pkg.ID)
	if err != nil {
		return domain.Package{}, err
	}

	// Creation facts and lifecycle state survive an update.
	pkg.Status = cur.Status
	pkg.CreatedBy = cur.CreatedBy
	pkg.CreatedAt = cur.CreatedAt
	pkg.Version = expectedVersion + 1
	pkg.LastModifiedBy = actor.ID
	pkg.UpdatedAt = time.Now().UTC()

	if err = pkg.Validate(); err != nil {
		return domain.Package{}, err
	}
	if err = s.repo.UpdatePackage(ctx, pkg, expectedVersion); err != nil {
		return domain.Package{}, err
	}
	s.invalidate(ctx, pkg.ID)
	if err = s.recordPackage(ctx, pkg, actor, domain.ChangeReasonUpdated); err != nil {
		return domain.Package{}, err
	}
	return pkg, nil
}

// ChangeStatus moves a package along its lifecycle (draft→active,
// active→inactive, inactive→active, any→deleted).
func (s *CatalogService) ChangeStatus(ctx context.Context, actor domain.Actor, id string, to domain.PackageStatus, expectedVersion int) (out domain.Package, err error) {
	defer func() { s.emit(ctx, "package.status", id, actor, err) }()

	if !actor.CanMutate() {
		return domain.Package{}, domain.ErrUnauthorized
	}

	pkg, err := s.repo.GetPackage(ctx, id)
	if err != nil {
		return domain.Package{}, err
	}
	if !pkg.Status.CanTransition(to) {
		return domain.Package{}, domain.NewValidationError("package cannot move from %s to %s", pkg.Status, to)
	}

	pkg.Status = to
	pkg.Version = expectedVersion + 1
	pkg.LastModifiedBy = actor.ID
	pkg.UpdatedAt = time.Now().UTC()

	if err = s.repo.UpdatePackage(ctx, pkg, expectedVersion); err != nil {
		return domain.Package{}, err
	}
	s.invalidate(ctx, id)
	if err = s.recordPackage(ctx, pkg, actor, domain.ChangeReasonStatusChanged); err != nil {
		return domain.Package{}, err
	}
	return pkg, nil
}

// GetPackage serves a package through the read cache. Deleted packages stay
// reachable by ID so audit views can render them.
func (s *CatalogService) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	key := packageCacheKey(id)
	var pkg domain.Package
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &pkg); ok {
			return pkg, nil
		}
	}
	pkg, err := s.repo.GetPackage(ctx, id)
	if err != nil {
		return domain.Package{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, pkg, int(s.cacheTTL.Seconds()))
	}
	return pkg, nil
}

// ListPackages lists without the cache; listings exclude deleted packages
// unless the filter names them.
func (s *CatalogService) ListPackages(ctx context.Context, q domain.PackagesQuery) (domain.PackagesPage, error) {
	return s.repo.ListPackages(ctx, q)
}

// ResolvePrice runs the pricing resolver against the package's current
// matrix. It prices packages in any lifecycle state; only linking insists on
// an active package.
func (s *CatalogService) ResolvePrice(ctx context.Context, id string, people, nights int, arrival time.Time) (pricing.Result, error) {
	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		return pricing.Result{}, err
	}
	return pricing.Resolve(pkg, people, nights, arrival)
}

func (s *CatalogService) recordPackage(ctx context.Context, pkg domain.Package, actor domain.Actor, reason string) error {
	snap, err := packageSnapshot(pkg)
	if err != nil {
		return err
	}
	return s.hist.RecordVersion(ctx, domain.EntityPackage, pkg.ID, pkg.Version, snap, actor, reason)
}

func (s *CatalogService) emit(ctx context.Context, action, id string, actor domain.Actor, err error) {
	if s.audit == nil {
		return
	}
	e := domain.AuditEvent{
		Action:     action,
		EntityType: domain.EntityPackage,
		ResourceID: id,
		ActorID:    actor.ID,
		Success:    err == nil,
		At:         time.Now().UTC(),
	}
	if err != nil {
		e.Details = map[string]string{"error": domain.ErrorCode(err)}
	}
	s.audit.Record(ctx, e)
}

func (s *CatalogService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, packageCacheKey(id))
}

func packageCacheKey(id string) string { return fmt.Sprintf("package:%s", id) }
