package httpapi

import (
	"context"
	"time"

	"icredit2.org/internal/directory"
	"icredit2.org/internal/identity"
)

type stubAuth struct {
	registration identity.Registration
	pair         identity.TokenPair
	principal    identity.Principal
	ttl          time.Duration

	registerErr error
	loginErr    error
	authErr     error
	refreshErr  error
	logoutErr   error

	authenticatedWith string
	loggedOutWith     string
}

func newStubAuth() *stubAuth {
	principal := identity.Principal{
		User: &identity.User{
			ID:          "u1",
			CompanyID:   "c1",
			Email:       "owner@acme.test",
			DisplayName: "Owner",
			Verified:    true,
		},
		Company: &identity.Company{ID: "c1", Name: "Acme"},
	}
	pair := identity.TokenPair{
		AccessToken:  "access-token",
		RefreshToken: "refresh-id.refresh-secret",
	}
	return &stubAuth{
		registration: identity.Registration{
			Company: *principal.Company,
			Owner:   *principal.User,
			Tokens:  pair,
		},
		pair:      pair,
		principal: principal,
		ttl:       time.Hour,
	}
}

func (s *stubAuth) RegisterCompany(context.Context, identity.RegisterCompanyInput) (identity.Registration, error) {
	if s.registerErr != nil {
		return identity.Registration{}, s.registerErr
	}
	return s.registration, nil
}

func (s *stubAuth) Login(context.Context, string, string, string) (identity.TokenPair, identity.Principal, error) {
	if s.loginErr != nil {
		return identity.TokenPair{}, identity.Principal{}, s.loginErr
	}
	return s.pair, s.principal, nil
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (identity.Principal, error) {
	s.authenticatedWith = token
	if s.authErr != nil {
		return identity.Principal{}, s.authErr
	}
	return s.principal, nil
}

func (s *stubAuth) Refresh(context.Context, string) (identity.TokenPair, identity.Principal, error) {
	if s.refreshErr != nil {
		return identity.TokenPair{}, identity.Principal{}, s.refreshErr
	}
	return s.pair, s.principal, nil
}

func (s *stubAuth) Logout(_ context.Context, refreshToken string) error {
	s.loggedOutWith = refreshToken
	return s.logoutErr
}

func (s *stubAuth) AccessTTL() time.Duration { return s.ttl }

type stubDirectory struct {
	city      *directory.City
	cities    []*directory.City
	role      *identity.Role
	roles     []*identity.Role
	company   *identity.Company
	err       error
	deletedID string
}

func newStubDirectory() *stubDirectory {
	city := &directory.City{ID: "city-1", CompanyID: "c1", Name: "Almaty", Active: true}
	return &stubDirectory{
		city:    city,
		cities:  []*directory.City{city},
		role:    &identity.Role{ID: "r1", CompanyID: "c1", Name: "viewer", Permissions: []string{}},
		company: &identity.Company{ID: "c1", Name: "Acme"},
	}
}

func (s *stubDirectory) CreateCity(context.Context, string, directory.CityInput) (*directory.City, error) {
	return s.city, s.err
}

func (s *stubDirectory) ListCities(context.Context, string) ([]*directory.City, error) {
	return s.cities, s.err
}

func (s *stubDirectory) GetCity(context.Context, string, string) (*directory.City, error) {
	return s.city, s.err
}

func (s *stubDirectory) UpdateCity(context.Context, string, string, directory.CityInput) (*directory.City, error) {
	return s.city, s.err
}

func (s *stubDirectory) DeleteCity(_ context.Context, _ string, cityID string) error {
	s.deletedID = cityID
	return s.err
}

func (s *stubDirectory) CreateRole(context.Context, string, string, []string) (*identity.Role, error) {
	return s.role, s.err
}

func (s *stubDirectory) ListRoles(context.Context, string) ([]*identity.Role, error) {
	return s.roles, s.err
}

func (s *stubDirectory) GetCompany(context.Context, string) (*identity.Company, error) {
	return s.company, s.err
}
