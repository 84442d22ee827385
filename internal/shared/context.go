package shared

import "context"

type roleContextKey struct{}

type actorContextKey struct{}

// ContextWithRole stores the acting role in context.
func ContextWithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleContextKey{}, role)
}

// RoleFromContext extracts the acting role, defaulting to the unprivileged
// warehouse profile when absent.
func RoleFromContext(ctx context.Context) Role {
	if role, ok := ctx.Value(roleContextKey{}).(Role); ok {
		return role
	}
	return RoleWarehouse
}

// ContextWithActor stores the acting user label in context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user label.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
