package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"icredit2.org/internal/identity"
	"icredit2.org/internal/ids"
)

// Service is tenant-scoped CRUD over cities, roles and the company record.
// Callers supply the company id taken from the authenticated principal;
// nothing here trusts client-provided tenant parameters.
type Service struct {
	cities CityStore
	ident  identity.Store
	logger *zap.Logger
}

func NewService(cities CityStore, ident identity.Store, logger *zap.Logger) (*Service, error) {
	if cities == nil {
		return nil, errors.New("city store is required")
	}
	if ident == nil {
		return nil, errors.New("identity store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cities: cities, ident: ident, logger: logger}, nil
}

func (s *Service) CreateCity(ctx context.Context, companyID string, in CityInput) (*City, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: city name is required", identity.ErrInvalidInput)
	}
	exists, err := s.cities.ExistsByNameAndCompany(ctx, name, companyID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: city name already exists", identity.ErrConflict)
	}
	city := &City{
		ID:        ids.New(),
		CompanyID: companyID,
		Name:      name,
		Active:    in.Active,
	}
	if err := s.cities.Create(ctx, city); err != nil {
		return nil, err
	}
	return city, nil
}

func (s *Service) ListCities(ctx context.Context, companyID string) ([]*City, error) {
	return s.cities.ListByCompany(ctx, companyID)
}

func (s *Service) GetCity(ctx context.Context, companyID, cityID string) (*City, error) {
	return s.cities.FindByIDAndCompany(ctx, cityID, companyID)
}

func (s *Service) UpdateCity(ctx context.Context, companyID, cityID string, in CityInput) (*City, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: city name is required", identity.ErrInvalidInput)
	}
	city, err := s.cities.FindByIDAndCompany(ctx, cityID, companyID)
	if err != nil {
		return nil, err
	}
	city.Name = name
	city.Active = in.Active
	if err := s.cities.Update(ctx, city); err != nil {
		return nil, err
	}
	return city, nil
}

func (s *Service) DeleteCity(ctx context.Context, companyID, cityID string) error {
	return s.cities.Delete(ctx, cityID, companyID)
}

func (s *Service) CreateRole(ctx context.Context, companyID, name string, permissions []string) (*identity.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", identity.ErrInvalidInput)
	}
	if permissions == nil {
		permissions = []string{}
	}
	role := &identity.Role{
		ID:          ids.New(),
		CompanyID:   companyID,
		Name:        name,
		Permissions: permissions,
	}
	if err := s.ident.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *Service) ListRoles(ctx context.Context, companyID string) ([]*identity.Role, error) {
	return s.ident.Roles(ctx).ListByCompany(ctx, companyID)
}

func (s *Service) GetCompany(ctx context.Context, companyID string) (*identity.Company, error) {
	return s.ident.Companies(ctx).Find(ctx, companyID)
}
