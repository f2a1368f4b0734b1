package middlewares

import "context"

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID           string
	Username     string
	Role         string
	TokenVersion int
}

const principalKey ctxKey = 1

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.ID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.ID, ok
}
