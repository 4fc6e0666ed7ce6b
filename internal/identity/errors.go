package identity

import "errors"

var (
	ErrNotFound     = errors.New("identity: not found")
	ErrConflict     = errors.New("identity: already exists")
	ErrInvalidInput = errors.New("identity: invalid input")

	// ErrInvalidCredentials is the uniform login failure. Company-not-found,
	// user-not-found and wrong-password all collapse into it so callers cannot
	// enumerate accounts.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")

	// ErrMalformedIdentifier indicates an identifier the active resolution
	// strategy cannot interpret.
	ErrMalformedIdentifier = errors.New("identity: malformed identifier")

	// ErrNoIdentity and ErrNoCompany are programming-error-level failures:
	// tenant context was consulted outside an authenticated request, or the
	// resolved user has no company reference.
	ErrNoIdentity = errors.New("identity: no authenticated identity")
	ErrNoCompany  = errors.New("identity: user has no company")
)
