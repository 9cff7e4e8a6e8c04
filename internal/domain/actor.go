package domain

import "context"

type Role string

const (
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Actor identifies who performs a change; it is stamped onto audit fields and
// version-history entries.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// CanMutate reports whether the actor may perform mutating operations.
// Every write path (catalog, quotes, linking, recalculation) is admin-only;
// agents get read access.
func (a Actor) CanMutate() bool {
	return a.Role == RoleAdmin
}

type actorCtxKey struct{}

// WithActor stores the acting user on the context for the request lifetime.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, a)
}

// ActorFromContext returns the acting user, if any was attached.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorCtxKey{}).(Actor)
	return a, ok
}
