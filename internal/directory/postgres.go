package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"icredit2.org/internal/identity"
)

var _ CityStore = (*PGCityStore)(nil)

// PGCityStore implements CityStore using PostgreSQL.
type PGCityStore struct {
	db *sql.DB
}

func NewPGCityStore(db *sql.DB) *PGCityStore {
	return &PGCityStore{db: db}
}

const cityColumns = `id, company_id, name, active, created_at, updated_at`

func (s *PGCityStore) Create(ctx context.Context, c *City) error {
	err := s.db.QueryRowContext(ctx,
		`insert into cities(id, company_id, name, active) values($1,$2,$3,$4)
		 returning created_at, updated_at`,
		c.ID, c.CompanyID, c.Name, c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return identity.ErrConflict
	}
	return err
}

func (s *PGCityStore) ListByCompany(ctx context.Context, companyID string) ([]*City, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+cityColumns+` from cities where company_id=$1 order by created_at`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []*City
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cities = append(cities, &c)
	}
	return cities, rows.Err()
}

func (s *PGCityStore) FindByIDAndCompany(ctx context.Context, id, companyID string) (*City, error) {
	var c City
	err := s.db.QueryRowContext(ctx,
		`select `+cityColumns+` from cities where id=$1 and company_id=$2`, id, companyID,
	).Scan(&c.ID, &c.CompanyID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *PGCityStore) Update(ctx context.Context, c *City) error {
	err := s.db.QueryRowContext(ctx,
		`update cities set name=$1, active=$2, updated_at=now()
		 where id=$3 and company_id=$4 returning updated_at`,
		c.Name, c.Active, c.ID, c.CompanyID,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.ErrNotFound
	}
	return err
}

func (s *PGCityStore) Delete(ctx context.Context, id, companyID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from cities where id=$1 and company_id=$2`, id, companyID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *PGCityStore) ExistsByNameAndCompany(ctx context.Context, name, companyID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from cities where lower(name)=lower($1) and company_id=$2)`,
		name, companyID,
	).Scan(&exists)
	return exists, err
}
