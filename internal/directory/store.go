package directory

import "context"

// CityStore manages cities. Every operation is company-scoped; there is no
// way to address a city without naming its tenant.
type CityStore interface {
	Create(ctx context.Context, c *City) error
	ListByCompany(ctx context.Context, companyID string) ([]*City, error)
	FindByIDAndCompany(ctx context.Context, id, companyID string) (*City, error)
	Update(ctx context.Context, c *City) error
	Delete(ctx context.Context, id, companyID string) error
	ExistsByNameAndCompany(ctx context.Context, name, companyID string) (bool, error)
}
