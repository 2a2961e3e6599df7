// ABOUTME: Unit tests for principal context helpers
// ABOUTME: Tests WithPrincipal, PrincipalFromContext, and MustPrincipal

package auth

import (
	"context"
	"testing"
)

func TestPrincipalContext_RoundTrip(t *testing.T) {
	p := &Principal{ID: 7, Username: "alice", KindleEmail: "alice@kindle.com"}
	ctx := WithPrincipal(context.Background(), p)

	got := PrincipalFromContext(ctx)
	if got != p {
		t.Fatalf("PrincipalFromContext() = %v, want %v", got, p)
	}
	if MustPrincipal(ctx).Username != "alice" {
		t.Errorf("MustPrincipal().Username = %q, want alice", MustPrincipal(ctx).Username)
	}
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	if got := PrincipalFromContext(context.Background()); got != nil {
		t.Errorf("PrincipalFromContext() = %v, want nil", got)
	}
}

func TestPrincipalFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), principalContextKey{}, "not a principal")
	if got := PrincipalFromContext(ctx); got != nil {
		t.Errorf("PrincipalFromContext() = %v, want nil", got)
	}
}

func TestMustPrincipal_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustPrincipal should panic without a principal")
		}
	}()
	MustPrincipal(context.Background())
}
