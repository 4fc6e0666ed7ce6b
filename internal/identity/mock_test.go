package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store for tests. WithinTx snapshots all state and
// restores it when fn fails, which mirrors transactional rollback closely
// enough for service-level tests.
type memStore struct {
	mu        sync.Mutex
	companies map[string]*Company
	users     map[string]*User
	roles     map[string]*Role
	userRoles map[string][]string
	refresh   map[string]*RefreshToken

	failUserCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		companies: make(map[string]*Company),
		users:     make(map[string]*User),
		roles:     make(map[string]*Role),
		userRoles: make(map[string][]string),
		refresh:   make(map[string]*RefreshToken),
	}
}

func (m *memStore) Companies(context.Context) CompanyStore { return memCompanies{m} }
func (m *memStore) Users(context.Context) UserStore        { return memUsers{m} }
func (m *memStore) Roles(context.Context) RoleStore        { return memRoles{m} }
func (m *memStore) RefreshTokens(context.Context) RefreshTokenStore {
	return memRefresh{m}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	snap := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	companies map[string]*Company
	users     map[string]*User
	roles     map[string]*Role
	userRoles map[string][]string
	refresh   map[string]*RefreshToken
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		companies: make(map[string]*Company, len(m.companies)),
		users:     make(map[string]*User, len(m.users)),
		roles:     make(map[string]*Role, len(m.roles)),
		userRoles: make(map[string][]string, len(m.userRoles)),
		refresh:   make(map[string]*RefreshToken, len(m.refresh)),
	}
	for k, v := range m.companies {
		c := *v
		s.companies[k] = &c
	}
	for k, v := range m.users {
		u := *v
		s.users[k] = &u
	}
	for k, v := range m.roles {
		r := *v
		s.roles[k] = &r
	}
	for k, v := range m.userRoles {
		s.userRoles[k] = append([]string(nil), v...)
	}
	for k, v := range m.refresh {
		t := *v
		s.refresh[k] = &t
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies = s.companies
	m.users = s.users
	m.roles = s.roles
	m.userRoles = s.userRoles
	m.refresh = s.refresh
}

type memCompanies struct{ s *memStore }

func (c memCompanies) Create(_ context.Context, company *Company) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, existing := range c.s.companies {
		if strings.EqualFold(existing.Name, company.Name) {
			return ErrConflict
		}
	}
	company.CreatedAt = time.Now().UTC()
	company.UpdatedAt = company.CreatedAt
	cp := *company
	c.s.companies[company.ID] = &cp
	return nil
}

func (c memCompanies) Find(_ context.Context, id string) (*Company, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	company, ok := c.s.companies[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *company
	return &cp, nil
}

func (c memCompanies) FindByDomain(_ context.Context, domain string) (*Company, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, company := range c.s.companies {
		if company.Domain != "" && strings.EqualFold(company.Domain, domain) {
			cp := *company
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (c memCompanies) ExistsByName(_ context.Context, name string) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, company := range c.s.companies {
		if strings.EqualFold(company.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

type memUsers struct{ s *memStore }

func (u memUsers) Create(_ context.Context, user *User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if u.s.failUserCreate {
		return errors.New("user create failed")
	}
	for _, existing := range u.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrConflict
		}
	}
	user.CreatedAt = time.Now().UTC()
	cp := *user
	u.s.users[user.ID] = &cp
	return nil
}

func (u memUsers) Find(_ context.Context, id string) (*User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (u memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (u memUsers) FindByEmailAndCompany(_ context.Context, email, companyID string) (*User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.CompanyID == companyID && strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (u memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if strings.EqualFold(user.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (u memUsers) ListByCompany(_ context.Context, companyID string) ([]*User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var out []*User
	for _, user := range u.s.users {
		if user.CompanyID == companyID {
			cp := *user
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memRoles struct{ s *memStore }

func (r memRoles) Create(_ context.Context, role *Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.roles {
		if existing.CompanyID == role.CompanyID && existing.Name == role.Name {
			return ErrConflict
		}
	}
	role.CreatedAt = time.Now().UTC()
	cp := *role
	r.s.roles[role.ID] = &cp
	return nil
}

func (r memRoles) ListByCompany(_ context.Context, companyID string) ([]*Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Role
	for _, role := range r.s.roles {
		if role.CompanyID == companyID {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memRoles) Assign(_ context.Context, userID, roleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range r.s.userRoles[userID] {
		if id == roleID {
			return nil
		}
	}
	r.s.userRoles[userID] = append(r.s.userRoles[userID], roleID)
	return nil
}

func (r memRoles) ListByUser(_ context.Context, userID string) ([]*Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Role
	for _, id := range r.s.userRoles[userID] {
		if role, ok := r.s.roles[id]; ok {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memRefresh struct{ s *memStore }

func (t memRefresh) Create(_ context.Context, rec *RefreshToken) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, exists := t.s.refresh[rec.ID]; exists {
		return ErrConflict
	}
	rec.CreatedAt = time.Now().UTC()
	cp := *rec
	t.s.refresh[rec.ID] = &cp
	return nil
}

func (t memRefresh) Find(_ context.Context, id string) (*RefreshToken, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	rec, ok := t.s.refresh[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (t memRefresh) MarkRevoked(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if rec, ok := t.s.refresh[id]; ok {
		rec.Revoked = true
	}
	return nil
}

func (t memRefresh) MarkRevokedByUser(_ context.Context, userID string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, rec := range t.s.refresh {
		if rec.UserID == userID {
			rec.Revoked = true
		}
	}
	return nil
}
