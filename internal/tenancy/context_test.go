package tenancy

import (
	"context"
	"testing"
)

func TestWithIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{TenantID: "kantoor-1", UserID: "advocaat-7"})

	got, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatalf("expected identity to be present")
	}
	if got.TenantID != "kantoor-1" || got.UserID != "advocaat-7" {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestIdentityFromContextMissingOrInvalid(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatalf("expected missing identity to return false")
	}

	ctx := context.WithValue(context.Background(), identityKey, "not-an-identity")
	if _, ok := IdentityFromContext(ctx); ok {
		t.Fatalf("expected wrong value type to return false")
	}

	ctx = WithIdentity(context.Background(), Identity{UserID: "advocaat-7"})
	if _, ok := IdentityFromContext(ctx); ok {
		t.Fatalf("expected identity without tenant to return false")
	}
}
