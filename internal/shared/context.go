package shared

import "context"

// Actor identifies the authenticated principal of a request together with
// the permission groups it acts under. Role ids are resolved once by the
// auth middleware and carried in context so stores can evaluate policies
// without re-reading the cache.
type Actor struct {
	UserID  string
	RoleIDs []string
}

// HasAnyRole reports whether the actor holds at least one of the given role ids.
func (a *Actor) HasAnyRole(roleIDs map[string]struct{}) bool {
	if a == nil {
		return false
	}
	for _, id := range a.RoleIDs {
		if _, ok := roleIDs[id]; ok {
			return true
		}
	}
	return false
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context, nil when unauthenticated.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
