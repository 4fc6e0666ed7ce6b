package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx, letting the same store
// code serve plain and transactional access.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
	q  querier
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, q: db}
}

func (s *PGStore) Companies(context.Context) CompanyStore { return &companyStore{q: s.q} }
func (s *PGStore) Users(context.Context) UserStore        { return &userStore{q: s.q} }
func (s *PGStore) Roles(context.Context) RoleStore        { return &roleStore{q: s.q} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore {
	return &refreshTokenStore{q: s.q}
}

func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(ctx, s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &PGStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Company store -------------------------------------------------------------
type companyStore struct{ q querier }

func (s *companyStore) Create(ctx context.Context, c *Company) error {
	err := s.q.QueryRowContext(ctx,
		`insert into companies(id, name, domain) values($1,$2,nullif($3,''))
		 returning created_at, updated_at`,
		c.ID, c.Name, c.Domain,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *companyStore) Find(ctx context.Context, id string) (*Company, error) {
	return s.scanOne(s.q.QueryRowContext(ctx,
		`select id, name, coalesce(domain, ''), created_at, updated_at from companies where id=$1`, id))
}

func (s *companyStore) FindByDomain(ctx context.Context, domain string) (*Company, error) {
	return s.scanOne(s.q.QueryRowContext(ctx,
		`select id, name, coalesce(domain, ''), created_at, updated_at from companies where domain=lower($1)`, domain))
}

func (s *companyStore) scanOne(row *sql.Row) (*Company, error) {
	var c Company
	if err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *companyStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`select exists(select 1 from companies where lower(name)=lower($1))`, name,
	).Scan(&exists)
	return exists, err
}

// User store ----------------------------------------------------------------
type userStore struct{ q querier }

const userColumns = `id, company_id, email, display_name, password_hash, is_verified, created_at`

func (s *userStore) Create(ctx context.Context, u *User) error {
	err := s.q.QueryRowContext(ctx,
		`insert into users(id, company_id, email, display_name, password_hash, is_verified)
		 values($1,$2,$3,$4,$5,$6) returning created_at`,
		u.ID, u.CompanyID, u.Email, u.DisplayName, u.PasswordHash, u.Verified,
	).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	return scanUser(s.q.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.q.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1)`, email))
}

func (s *userStore) FindByEmailAndCompany(ctx context.Context, email, companyID string) (*User, error) {
	return scanUser(s.q.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1) and company_id=$2`, email, companyID))
}

func (s *userStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`select exists(select 1 from users where lower(email)=lower($1))`, email,
	).Scan(&exists)
	return exists, err
}

func (s *userStore) ListByCompany(ctx context.Context, companyID string) ([]*User, error) {
	rows, err := s.q.QueryContext(ctx,
		`select `+userColumns+` from users where company_id=$1 order by created_at`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Verified, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func scanUserRow(rows *sql.Rows) (*User, error) {
	var u User
	if err := rows.Scan(&u.ID, &u.CompanyID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Verified, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Role store ----------------------------------------------------------------
type roleStore struct{ q querier }

func (s *roleStore) Create(ctx context.Context, r *Role) error {
	perms, err := json.Marshal(r.Permissions)
	if err != nil {
		return err
	}
	err = s.q.QueryRowContext(ctx,
		`insert into roles(id, company_id, name, permissions) values($1,$2,$3,$4)
		 returning created_at`,
		r.ID, r.CompanyID, r.Name, perms,
	).Scan(&r.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *roleStore) ListByCompany(ctx context.Context, companyID string) ([]*Role, error) {
	rows, err := s.q.QueryContext(ctx,
		`select id, company_id, name, permissions, created_at from roles
		 where company_id=$1 order by created_at`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

func (s *roleStore) Assign(ctx context.Context, userID, roleID string) error {
	_, err := s.q.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		userID, roleID)
	return err
}

func (s *roleStore) ListByUser(ctx context.Context, userID string) ([]*Role, error) {
	rows, err := s.q.QueryContext(ctx,
		`select r.id, r.company_id, r.name, r.permissions, r.created_at from roles r
		 join user_roles ur on ur.role_id=r.id where ur.user_id=$1 order by r.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows *sql.Rows) ([]*Role, error) {
	var roles []*Role
	for rows.Next() {
		var (
			r     Role
			perms []byte
		)
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.Name, &perms, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(perms, &r.Permissions); err != nil {
			return nil, err
		}
		roles = append(roles, &r)
	}
	return roles, rows.Err()
}

// Refresh token store --------------------------------------------------------
type refreshTokenStore struct{ q querier }

func (s *refreshTokenStore) Create(ctx context.Context, t *RefreshToken) error {
	err := s.q.QueryRowContext(ctx,
		`insert into refresh_tokens(id, user_id, token_hash, expires_at, revoked)
		 values($1,$2,$3,$4,$5) returning created_at`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.Revoked,
	).Scan(&t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *refreshTokenStore) Find(ctx context.Context, id string) (*RefreshToken, error) {
	var t RefreshToken
	err := s.q.QueryRowContext(ctx,
		`select id, user_id, token_hash, expires_at, created_at, revoked
		 from refresh_tokens where id=$1`, id,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *refreshTokenStore) MarkRevoked(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx,
		`update refresh_tokens set revoked=true where id=$1`, id)
	return err
}

func (s *refreshTokenStore) MarkRevokedByUser(ctx context.Context, userID string) error {
	_, err := s.q.ExecContext(ctx,
		`update refresh_tokens set revoked=true where user_id=$1`, userID)
	return err
}
