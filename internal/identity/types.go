package identity

import "time"

// Company is the root of a tenant partition. Users, roles and cities belong to
// exactly one company and are never visible across the boundary.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a human account owned by a company. The password hash never leaves
// the process.
type User struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"is_verified"`
	Roles        []Role    `json:"roles,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoleNames returns the names of the user's assigned roles in order.
func (u *User) RoleNames() []string {
	if len(u.Roles) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Role groups flat permission tags within a company. Permissions are stored
// uninterpreted; no policy engine evaluates them.
type Role struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// RefreshToken is the persisted half of an opaque refresh credential. Only the
// sha256 of the secret is stored; the raw value is returned to the client once.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// Principal is a fully resolved identity: the user plus its owning company.
type Principal struct {
	User    *User
	Company *Company
}

// CompanyID returns the owning company id or "" when the principal is not
// company-bound.
func (p Principal) CompanyID() string {
	if p.Company != nil {
		return p.Company.ID
	}
	if p.User != nil {
		return p.User.CompanyID
	}
	return ""
}
