package domain

import (
	"encoding/json"
	"time"
)

// EntityType names the aggregate a version-history entry belongs to.
type EntityType string

const (
	EntityPackage EntityType = "package"
	EntityQuote   EntityType = "quote"
)

// Change reasons recorded with version-history entries.
const (
	ChangeReasonCreated       = "created"
	ChangeReasonUpdated       = "updated"
	ChangeReasonStatusChanged = "status_changed"
	ChangeReasonPriceManual   = "manual_price"
	ChangeReasonPriceRecalc   = "price_recalculated"
	ChangeReasonSent          = "sent"
	ChangeReasonArchived      = "archived"
	ChangeReasonLinked        = "package_linked"
	ChangeReasonUnlinked      = "package_unlinked"
)

// VersionHistoryEntry is an immutable snapshot of an entity taken after a
// committed change. Version mirrors the entity's version counter at the time
// of the snapshot; several entries may share a version when non-significant
// edits did not bump it.
type VersionHistoryEntry struct {
	ID           string          `json:"id"`
	EntityType   EntityType      `json:"entityType"`
	EntityID     string          `json:"entityId"`
	Version      int             `json:"version"`
	Snapshot     json.RawMessage `json:"snapshot"`
	ChangeReason string          `json:"changeReason"`
	ChangedBy    string          `json:"changedBy"`
	CreatedAt    time.Time       `json:"createdAt"`
}
