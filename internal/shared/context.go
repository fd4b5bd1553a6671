package shared

import "context"

type actorContextKey struct{}

// SystemActor is recorded when no caller identity is available.
const SystemActor = "system"

// ContextWithActor stores the acting user id in context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user id, defaulting to SystemActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
