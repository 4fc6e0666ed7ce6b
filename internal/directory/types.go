package directory

import "time"

// City is a tenant-scoped reference entity. Name is unique within the owning
// company only.
type City struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"-"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CityInput carries create/update fields for a city.
type CityInput struct {
	Name   string
	Active bool
}
