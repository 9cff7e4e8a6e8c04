package domain

import (
	"context"
	"time"
)

type PackageRepository interface {
	// Write paths
	CreatePackage(ctx context.Context, p Package) error
	// UpdatePackage persists p only if the stored row still carries
	// expectedVersion; otherwise it returns ErrVersionConflict.
	UpdatePackage(ctx context.Context, p Package, expectedVersion int) error

	// Read paths
	GetPackage(ctx context.Context, id string) (Package, error)
	ListPackages(ctx context.Context, q PackagesQuery) (PackagesPage, error)
}

type QuoteRepository interface {
	// Write paths
	CreateQuote(ctx context.Context, q Quote) error
	// UpdateQuote persists q only if the stored row still carries
	// expectedRevision; otherwise it returns ErrVersionConflict.
	UpdateQuote(ctx context.Context, q Quote, expectedRevision int64) error

	// Read paths
	GetQuote(ctx context.Context, id string) (Quote, error)
	ListQuotes(ctx context.Context, q QuotesQuery) (QuotesPage, error)
	ListQuotesByPackage(ctx context.Context, packageID string, pg PageQuery) (QuotesPage, error)
}

type HistoryRepository interface {
	Append(ctx context.Context, e VersionHistoryEntry) error
	ListByEntity(ctx context.Context, et EntityType, entityID string, pg PageQuery) (HistoryPage, error)
	// GetByVersion returns the most recent entry recorded for the given
	// version counter (non-significant edits may record several).
	GetByVersion(ctx context.Context, et EntityType, entityID string, version int) (VersionHistoryEntry, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// AuditSink receives one event per attempted mutation, success or failure.
type AuditSink interface {
	Record(ctx context.Context, e AuditEvent)
}

// ActorDirectory resolves actor IDs to display names for audit views.
type ActorDirectory interface {
	DisplayName(ctx context.Context, actorID string) (string, error)
}

type AuditEvent struct {
	Action     string
	EntityType EntityType
	ResourceID string
	ActorID    string
	Details    map[string]string
	Success    bool
	At         time.Time
}

// Read models & queries
type PackagesQuery struct {
	Status      *PackageStatus
	Destination *string
	Q           *string
	Limit       int
	Cursor      *string
}

type QuotesQuery struct {
	Status    *QuoteStatus
	PackageID *string
	Q         *string
	Limit     int
	Cursor    *string
}

type PageQuery struct {
	Limit  int
	Cursor *string
}

type PackagesPage struct {
	Items      []Package
	NextCursor *string
}

type QuotesPage struct {
	Items      []Quote
	NextCursor *string
}

type HistoryPage struct {
	Items      []VersionHistoryEntry
	NextCursor *string
}
