package auth

import "context"

// Principal is the verified caller. The zero value is an anonymous shopper.
type Principal struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Admin  bool   `json:"admin"`
}

func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by the auth middleware, or the
// anonymous principal.
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(ctxKey{}).(Principal)
	return p
}
