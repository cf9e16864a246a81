package middleware

import (
	"context"

	"github.com/angelmondragon/gemcart/internal/profile"
)

type contextKey string

const ctxProfile contextKey = "profile"

// ProfileFromContext returns the profile resolved by the Profile middleware.
func ProfileFromContext(ctx context.Context) *profile.Profile {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxProfile).(*profile.Profile); ok {
		return v
	}
	return nil
}

// WithProfile injects the shopper profile into the context.
func WithProfile(ctx context.Context, p *profile.Profile) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxProfile, p)
}
