package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Identifier is a tagged union of the ways an inbound credential names a user.
// Variants are constructed at the API boundary; no runtime format sniffing.
type Identifier interface {
	isIdentifier()
}

// ByUserID names a user by raw id, as carried in a validated token subject.
type ByUserID struct {
	UserID string
}

// ByEmailAndTenant names a user by email within a tenant identified by
// company id or domain. Login-time identifier under the scoped strategy.
type ByEmailAndTenant struct {
	Email  string
	Tenant string
}

// ByEmailGlobal names a user by bare email. Login-time identifier under the
// globally-unique strategy.
type ByEmailGlobal struct {
	Email string
}

func (ByUserID) isIdentifier()         {}
func (ByEmailAndTenant) isIdentifier() {}
func (ByEmailGlobal) isIdentifier()    {}

// Resolver maps an Identifier to a loaded user+company pair. Exactly one
// strategy is active per deployment; mixing them is a correctness hazard
// because their uniqueness invariants are incompatible at the data level.
type Resolver interface {
	Resolve(ctx context.Context, id Identifier) (Principal, error)
	// LoginIdentifier builds the identifier this strategy expects at login.
	// The tenant hint is required by the scoped strategy and ignored by the
	// global one.
	LoginIdentifier(email, tenantHint string) Identifier
}

const (
	ModeGlobal = "global"
	ModeScoped = "scoped"
)

// NewResolver returns the resolver for the configured identity mode.
func NewResolver(mode string, store Store) (Resolver, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", ModeGlobal:
		return &globalResolver{store: store}, nil
	case ModeScoped:
		return &scopedResolver{store: store}, nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", mode)
	}
}

// globalResolver implements the globally-unique email strategy: a bare email
// addresses exactly one user across all companies.
type globalResolver struct {
	store Store
}

func (r *globalResolver) LoginIdentifier(email, _ string) Identifier {
	return ByEmailGlobal{Email: email}
}

func (r *globalResolver) Resolve(ctx context.Context, id Identifier) (Principal, error) {
	switch v := id.(type) {
	case ByUserID:
		return resolveByID(ctx, r.store, v.UserID)
	case ByEmailGlobal:
		return r.resolveByEmail(ctx, v.Email)
	case ByEmailAndTenant:
		// The tenant hint carries no information under this strategy.
		return r.resolveByEmail(ctx, v.Email)
	default:
		return Principal{}, ErrMalformedIdentifier
	}
}

func (r *globalResolver) resolveByEmail(ctx context.Context, email string) (Principal, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Principal{}, ErrMalformedIdentifier
	}
	user, err := r.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return Principal{}, err
	}
	return attachCompany(ctx, r.store, user)
}

// scopedResolver implements the tenant-scoped strategy: an email is unique
// only within its owning company, so login must name the tenant too.
type scopedResolver struct {
	store Store
}

func (r *scopedResolver) LoginIdentifier(email, tenantHint string) Identifier {
	return ByEmailAndTenant{Email: email, Tenant: tenantHint}
}

func (r *scopedResolver) Resolve(ctx context.Context, id Identifier) (Principal, error) {
	switch v := id.(type) {
	case ByUserID:
		return resolveByID(ctx, r.store, v.UserID)
	case ByEmailAndTenant:
		return r.resolveScoped(ctx, v.Email, v.Tenant)
	default:
		// A bare email is ambiguous under this strategy.
		return Principal{}, ErrMalformedIdentifier
	}
}

func (r *scopedResolver) resolveScoped(ctx context.Context, email, tenant string) (Principal, error) {
	email = normalizeEmail(email)
	tenant = strings.TrimSpace(tenant)
	if email == "" || tenant == "" {
		return Principal{}, ErrMalformedIdentifier
	}

	companies := r.store.Companies(ctx)
	company, err := companies.Find(ctx, tenant)
	if errors.Is(err, ErrNotFound) {
		company, err = companies.FindByDomain(ctx, tenant)
	}
	if err != nil {
		return Principal{}, err
	}

	user, err := r.store.Users(ctx).FindByEmailAndCompany(ctx, email, company.ID)
	if err != nil {
		return Principal{}, err
	}
	if err := loadRoles(ctx, r.store, user); err != nil {
		return Principal{}, err
	}
	return Principal{User: user, Company: company}, nil
}

func resolveByID(ctx context.Context, store Store, userID string) (Principal, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Principal{}, ErrMalformedIdentifier
	}
	user, err := store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	return attachCompany(ctx, store, user)
}

func attachCompany(ctx context.Context, store Store, user *User) (Principal, error) {
	if user.CompanyID == "" {
		return Principal{}, ErrNoCompany
	}
	company, err := store.Companies(ctx).Find(ctx, user.CompanyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrNoCompany
		}
		return Principal{}, err
	}
	if err := loadRoles(ctx, store, user); err != nil {
		return Principal{}, err
	}
	return Principal{User: user, Company: company}, nil
}

func loadRoles(ctx context.Context, store Store, user *User) error {
	roles, err := store.Roles(ctx).ListByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	user.Roles = user.Roles[:0]
	for _, r := range roles {
		user.Roles = append(user.Roles, *r)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
