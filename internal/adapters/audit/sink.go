// Package audit emits the audit stream as structured log events. Log
// shipping carries them to long-term retention; the version history table
// remains the queryable record.
package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/observability"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
)

type Sink struct{ l zerolog.Logger }

func NewSink(l zerolog.Logger) *Sink { return &Sink{l: l} }

func (s *Sink) Record(_ context.Context, e domain.AuditEvent) {
	observability.ObserveAudit(e.Action, e.Success)

	ev := s.l.Info()
	if !e.Success {
		ev = s.l.Warn()
	}
	ev = ev.
		Str("action", e.Action).
		Str("entity_type", string(e.EntityType)).
		Str("resource_id", e.ResourceID).
		Str("actor_id", e.ActorID).
		Bool("success", e.Success).
		Time("at", e.At)
	for k, v := range e.Details {
		ev = ev.Str("detail_"+k, v)
	}
	ev.Msg("audit_event")
}
