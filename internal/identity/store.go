package identity

import "context"

// Store describes persistence operations required by the identity subsystem.
type Store interface {
	Companies(ctx context.Context) CompanyStore
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	RefreshTokens(ctx context.Context) RefreshTokenStore

	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction commits iff fn returns nil; otherwise every write is rolled
	// back. Registration depends on this to never leave an ownerless company.
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// CompanyStore manages tenant roots.
type CompanyStore interface {
	Create(ctx context.Context, c *Company) error
	Find(ctx context.Context, id string) (*Company, error)
	FindByDomain(ctx context.Context, domain string) (*Company, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// UserStore manages accounts. Which Find* variants a deployment may use is
// dictated by the active resolution strategy, not enforced here.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailAndCompany(ctx context.Context, email, companyID string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ListByCompany(ctx context.Context, companyID string) ([]*User, error)
}

// RoleStore manages roles and their assignment to users.
type RoleStore interface {
	Create(ctx context.Context, r *Role) error
	ListByCompany(ctx context.Context, companyID string) ([]*Role, error)
	Assign(ctx context.Context, userID, roleID string) error
	ListByUser(ctx context.Context, userID string) ([]*Role, error)
}

// RefreshTokenStore manages the stateful half of the token pair.
type RefreshTokenStore interface {
	Create(ctx context.Context, t *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}
