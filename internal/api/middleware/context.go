package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const ownerKeyKey contextKey = "owner_key"

// SetOwnerKey stores the authenticated API-key identity in ctx.
func SetOwnerKey(ctx context.Context, ownerKey string) context.Context {
	return context.WithValue(ctx, ownerKeyKey, ownerKey)
}

// GetOwnerKey returns the authenticated API-key identity, if any.
func GetOwnerKey(r *http.Request) (string, bool) {
	key, ok := r.Context().Value(ownerKeyKey).(string)
	return key, ok
}
