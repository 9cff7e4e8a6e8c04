package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/diff"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
)

// longTextFields get a line-oriented breakdown in addition to the field-level
// entry when they change between versions.
var longTextFields = map[string]bool{
	"description":   true,
	"whatsIncluded": true,
	"internalNotes": true,
}

type HistoryService struct {
	repo   domain.HistoryRepository
	actors domain.ActorDirectory
}

func NewHistoryService(r domain.HistoryRepository, actors domain.ActorDirectory) *HistoryService {
	return &HistoryService{repo: r, actors: actors}
}

// RecordVersion appends an immutable snapshot of the entity as it stands
// after a committed mutation. Entries are never updated or deleted.
func (s *HistoryService) RecordVersion(ctx context.Context, et domain.EntityType, entityID string, version int, snapshot json.RawMessage, actor domain.Actor, reason string) error {
	e := domain.VersionHistoryEntry{
		ID:           uuid.NewString(),
		EntityType:   et,
		EntityID:     entityID,
		Version:      version,
		Snapshot:     snapshot,
		ChangeReason: reason,
		ChangedBy:    actor.ID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("record version %d of %s %s: %w", version, et, entityID, err)
	}
	return nil
}

// GetHistory returns the entity's version trail, newest first.
func (s *HistoryService) GetHistory(ctx context.Context, et domain.EntityType, entityID string, limit int) (domain.HistoryPage, error) {
	return s.repo.ListByEntity(ctx, et, entityID, domain.PageQuery{Limit: limit})
}

// VersionComparison is the field-level diff between two stored versions.
type VersionComparison struct {
	EntityType  domain.EntityType  `json:"entityType"`
	EntityID    string             `json:"entityId"`
	FromVersion int                `json:"fromVersion"`
	ToVersion   int                `json:"toVersion"`
	Changes     []diff.FieldChange `json:"changes"`
}

// CompareVersions diffs the stored snapshots of two versions. It is a pure
// read: several entries may exist per version (non-significant edits), the
// latest one per version is compared. Long-text fields additionally carry a
// line-oriented breakdown.
func (s *HistoryService) CompareVersions(ctx context.Context, et domain.EntityType, entityID string, from, to int) (VersionComparison, error) {
	a, err := s.repo.GetByVersion(ctx, et, entityID, from)
	if err != nil {
		return VersionComparison{}, err
	}
	b, err := s.repo.GetByVersion(ctx, et, entityID, to)
	if err != nil {
		return VersionComparison{}, err
	}

	var oldSnap, newSnap map[string]any
	if err := json.Unmarshal(a.Snapshot, &oldSnap); err != nil {
		return VersionComparison{}, fmt.Errorf("decode snapshot v%d of %s %s: %w", from, et, entityID, err)
	}
	if err := json.Unmarshal(b.Snapshot, &newSnap); err != nil {
		return VersionComparison{}, fmt.Errorf("decode snapshot v%d of %s %s: %w", to, et, entityID, err)
	}

	changes := diff.Fields(oldSnap, newSnap)
	for i, ch := range changes {
		if !longTextFields[ch.Field] {
			continue
		}
		oldText, _ := ch.OldValue.(string)
		newText, _ := ch.NewValue.(string)
		changes[i].Lines = diff.Lines(oldText, newText)
	}

	return VersionComparison{
		EntityType:  et,
		EntityID:    entityID,
		FromVersion: from,
		ToVersion:   to,
		Changes:     changes,
	}, nil
}

// AuditTrailEntry is a history entry composed with actor display data.
type AuditTrailEntry struct {
	Version       int       `json:"version"`
	ChangedBy     string    `json:"changedBy"`
	ChangedByName string    `json:"changedByName"`
	Reason        string    `json:"reason"`
	At            time.Time `json:"at"`
}

// AuditTrail returns the entity's history with actor IDs resolved to display
// names. An actor the directory does not know keeps its raw ID.
func (s *HistoryService) AuditTrail(ctx context.Context, et domain.EntityType, entityID string, limit int) ([]AuditTrailEntry, error) {
	page, err := s.repo.ListByEntity(ctx, et, entityID, domain.PageQuery{Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]AuditTrailEntry, 0, len(page.Items))
	for _, e := range page.Items {
		name := e.ChangedBy
		if s.actors != nil {
			if dn, derr := s.actors.DisplayName(ctx, e.ChangedBy); derr == nil && dn != "" {
				name = dn
			}
		}
		out = append(out, AuditTrailEntry{
			Version:       e.Version,
			ChangedBy:     e.ChangedBy,
			ChangedByName: name,
			Reason:        e.ChangeReason,
			At:            e.CreatedAt,
		})
	}
	return out, nil
}

// packageSnapshot serializes the full mutable state of a package.
func packageSnapshot(p domain.Package) (json.RawMessage, error) {
	return json.Marshal(p)
}

// quoteSnapshot serializes a quote without its price history: the history is
// already append-only and tracked on the quote itself, repeating it in every
// snapshot would drown the field diff.
func quoteSnapshot(q domain.Quote) (json.RawMessage, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "priceHistory")
	return json.Marshal(m)
}
