package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"icredit2.org/internal/identity"
)

type fakeCityStore struct {
	cities map[string]*City
}

func newFakeCityStore() *fakeCityStore {
	return &fakeCityStore{cities: make(map[string]*City)}
}

func (f *fakeCityStore) Create(_ context.Context, c *City) error {
	cp := *c
	f.cities[c.ID] = &cp
	return nil
}

func (f *fakeCityStore) ListByCompany(_ context.Context, companyID string) ([]*City, error) {
	var out []*City
	for _, c := range f.cities {
		if c.CompanyID == companyID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCityStore) FindByIDAndCompany(_ context.Context, id, companyID string) (*City, error) {
	c, ok := f.cities[id]
	if !ok || c.CompanyID != companyID {
		return nil, identity.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCityStore) Update(_ context.Context, c *City) error {
	existing, ok := f.cities[c.ID]
	if !ok || existing.CompanyID != c.CompanyID {
		return identity.ErrNotFound
	}
	cp := *c
	f.cities[c.ID] = &cp
	return nil
}

func (f *fakeCityStore) Delete(_ context.Context, id, companyID string) error {
	c, ok := f.cities[id]
	if !ok || c.CompanyID != companyID {
		return identity.ErrNotFound
	}
	delete(f.cities, id)
	return nil
}

func (f *fakeCityStore) ExistsByNameAndCompany(_ context.Context, name, companyID string) (bool, error) {
	for _, c := range f.cities {
		if c.CompanyID == companyID && c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// fakeIdentStore covers only the role and company lookups the directory
// service makes.
type fakeIdentStore struct {
	companies map[string]*identity.Company
	roles     map[string]*identity.Role
}

func newFakeIdentStore() *fakeIdentStore {
	return &fakeIdentStore{
		companies: make(map[string]*identity.Company),
		roles:     make(map[string]*identity.Role),
	}
}

func (f *fakeIdentStore) Companies(context.Context) identity.CompanyStore { return fakeCompanies{f} }
func (f *fakeIdentStore) Users(context.Context) identity.UserStore        { return nil }
func (f *fakeIdentStore) Roles(context.Context) identity.RoleStore        { return fakeRoles{f} }
func (f *fakeIdentStore) RefreshTokens(context.Context) identity.RefreshTokenStore {
	return nil
}

func (f *fakeIdentStore) WithinTx(ctx context.Context, fn func(context.Context, identity.Store) error) error {
	return fn(ctx, f)
}

type fakeCompanies struct{ s *fakeIdentStore }

func (c fakeCompanies) Create(_ context.Context, company *identity.Company) error {
	c.s.companies[company.ID] = company
	return nil
}

func (c fakeCompanies) Find(_ context.Context, id string) (*identity.Company, error) {
	company, ok := c.s.companies[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return company, nil
}

func (c fakeCompanies) FindByDomain(context.Context, string) (*identity.Company, error) {
	return nil, identity.ErrNotFound
}

func (c fakeCompanies) ExistsByName(context.Context, string) (bool, error) { return false, nil }

type fakeRoles struct{ s *fakeIdentStore }

func (r fakeRoles) Create(_ context.Context, role *identity.Role) error {
	r.s.roles[role.ID] = role
	return nil
}

func (r fakeRoles) ListByCompany(_ context.Context, companyID string) ([]*identity.Role, error) {
	var out []*identity.Role
	for _, role := range r.s.roles {
		if role.CompanyID == companyID {
			out = append(out, role)
		}
	}
	return out, nil
}

func (r fakeRoles) Assign(context.Context, string, string) error { return nil }

func (r fakeRoles) ListByUser(context.Context, string) ([]*identity.Role, error) { return nil, nil }

func newTestService(t *testing.T) (*Service, *fakeCityStore, *fakeIdentStore) {
	t.Helper()
	cities := newFakeCityStore()
	ident := newFakeIdentStore()
	svc, err := NewService(cities, ident, zap.NewNop())
	require.NoError(t, err)
	return svc, cities, ident
}

func TestCreateCity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	city, err := svc.CreateCity(ctx, "c1", CityInput{Name: "  Almaty  ", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "Almaty", city.Name)
	assert.Equal(t, "c1", city.CompanyID)
	assert.True(t, city.Active)
	assert.NotEmpty(t, city.ID)
}

func TestCreateCityValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCity(ctx, "c1", CityInput{Name: "   "})
	assert.ErrorIs(t, err, identity.ErrInvalidInput)

	_, err = svc.CreateCity(ctx, "c1", CityInput{Name: "Almaty"})
	require.NoError(t, err)
	_, err = svc.CreateCity(ctx, "c1", CityInput{Name: "Almaty"})
	assert.ErrorIs(t, err, identity.ErrConflict)

	// Same name in another tenant is fine.
	_, err = svc.CreateCity(ctx, "c2", CityInput{Name: "Almaty"})
	assert.NoError(t, err)
}

func TestCityTenantIsolation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	city, err := svc.CreateCity(ctx, "c1", CityInput{Name: "Astana", Active: true})
	require.NoError(t, err)

	_, err = svc.GetCity(ctx, "c2", city.ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)

	_, err = svc.UpdateCity(ctx, "c2", city.ID, CityInput{Name: "Renamed"})
	assert.ErrorIs(t, err, identity.ErrNotFound)

	err = svc.DeleteCity(ctx, "c2", city.ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)

	got, err := svc.GetCity(ctx, "c1", city.ID)
	require.NoError(t, err)
	assert.Equal(t, "Astana", got.Name)
}

func TestUpdateAndDeleteCity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	city, err := svc.CreateCity(ctx, "c1", CityInput{Name: "Astana", Active: true})
	require.NoError(t, err)

	updated, err := svc.UpdateCity(ctx, "c1", city.ID, CityInput{Name: "Shymkent", Active: false})
	require.NoError(t, err)
	assert.Equal(t, "Shymkent", updated.Name)
	assert.False(t, updated.Active)

	require.NoError(t, svc.DeleteCity(ctx, "c1", city.ID))
	_, err = svc.GetCity(ctx, "c1", city.ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestCreateAndListRoles(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "c1", "viewer", nil)
	require.NoError(t, err)
	assert.Equal(t, "viewer", role.Name)
	assert.NotNil(t, role.Permissions, "nil permissions should be normalized")

	_, err = svc.CreateRole(ctx, "c1", "  ", nil)
	assert.ErrorIs(t, err, identity.ErrInvalidInput)

	roles, err := svc.ListRoles(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestGetCompany(t *testing.T) {
	svc, _, ident := newTestService(t)
	ctx := context.Background()
	ident.companies["c1"] = &identity.Company{ID: "c1", Name: "Acme"}

	company, err := svc.GetCompany(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", company.Name)

	_, err = svc.GetCompany(ctx, "missing")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}
