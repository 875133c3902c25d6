// Package tenancy carries the already-authenticated request identity through
// context. The core performs no authentication; an outer shell resolves the
// tenant and user before calling in.
package tenancy

import "context"

type ctxKey string

const identityKey ctxKey = "legalai.identity"

// Identity is the resolved tenant and user for one request.
type Identity struct {
	TenantID string
	UserID   string
}

// WithIdentity stores the request identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the identity if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	val := ctx.Value(identityKey)
	if val == nil {
		return Identity{}, false
	}
	id, ok := val.(Identity)
	return id, ok && id.TenantID != ""
}
