package auth

import "context"

type contextKey struct{}

// Parent identifies the parent whose PIN unlocked the current request.
type Parent struct {
	UserID int64
	Name   string
}

func WithParent(ctx context.Context, p Parent) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Parent, bool) {
	p, ok := ctx.Value(contextKey{}).(Parent)
	return p, ok
}

func ParentID(ctx context.Context) int64 {
	p, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return p.UserID
}
