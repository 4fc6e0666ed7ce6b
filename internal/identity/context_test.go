package identity

import (
	"context"
	"errors"
	"testing"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	principal := Principal{
		User:    &User{ID: "u1", CompanyID: "c1"},
		Company: &Company{ID: "c1", Name: "Acme"},
	}
	ctx := ContextWithPrincipal(context.Background(), principal)

	got, ok := PrincipalFromContext(ctx)
	if !ok {
		t.Fatal("principal not found in context")
	}
	if got.User.ID != "u1" || got.Company.ID != "c1" {
		t.Fatalf("got %+v", got)
	}

	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Error("empty context should hold no principal")
	}
}

func TestCurrentCompanyID(t *testing.T) {
	if _, err := CurrentCompanyID(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("err = %v, want ErrNoIdentity", err)
	}

	ctx := ContextWithPrincipal(context.Background(), Principal{User: &User{ID: "u1"}})
	if _, err := CurrentCompanyID(ctx); !errors.Is(err, ErrNoCompany) {
		t.Fatalf("err = %v, want ErrNoCompany", err)
	}

	ctx = ContextWithPrincipal(context.Background(), Principal{
		User:    &User{ID: "u1", CompanyID: "c1"},
		Company: &Company{ID: "c1"},
	})
	id, err := CurrentCompanyID(ctx)
	if err != nil {
		t.Fatalf("CurrentCompanyID: %v", err)
	}
	if id != "c1" {
		t.Fatalf("id = %q, want c1", id)
	}
}

func TestTokenContextRoundTrip(t *testing.T) {
	ctx := ContextWithToken(context.Background(), "raw-token")
	token, ok := TokenFromContext(ctx)
	if !ok || token != "raw-token" {
		t.Fatalf("token = %q, ok = %v", token, ok)
	}

	// An empty token is not stored.
	ctx = ContextWithToken(context.Background(), "")
	if _, ok := TokenFromContext(ctx); ok {
		t.Error("empty token should not be stored")
	}
}
