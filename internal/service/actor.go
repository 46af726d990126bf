package service

import "context"

type actorKey struct{}

// Actor identifies the authenticated caller behind a service operation.
type Actor struct {
	UserID    string
	Role      string
	IP        string
	UserAgent string
}

// WithActor attaches the caller to ctx so audit entries can be attributed.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the caller stored in ctx, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
