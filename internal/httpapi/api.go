package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"icredit2.org/internal/directory"
	"icredit2.org/internal/identity"
	"icredit2.org/internal/obs"
)

// AuthService is the slice of the identity service the gateway needs.
type AuthService interface {
	RegisterCompany(ctx context.Context, in identity.RegisterCompanyInput) (identity.Registration, error)
	Login(ctx context.Context, email, password, tenantHint string) (identity.TokenPair, identity.Principal, error)
	Authenticate(ctx context.Context, token string) (identity.Principal, error)
	Refresh(ctx context.Context, raw string) (identity.TokenPair, identity.Principal, error)
	Logout(ctx context.Context, refreshToken string) error
	AccessTTL() time.Duration
}

// DirectoryService is the slice of the directory service the gateway needs.
type DirectoryService interface {
	CreateCity(ctx context.Context, companyID string, in directory.CityInput) (*directory.City, error)
	ListCities(ctx context.Context, companyID string) ([]*directory.City, error)
	GetCity(ctx context.Context, companyID, cityID string) (*directory.City, error)
	UpdateCity(ctx context.Context, companyID, cityID string, in directory.CityInput) (*directory.City, error)
	DeleteCity(ctx context.Context, companyID, cityID string) error
	CreateRole(ctx context.Context, companyID, name string, permissions []string) (*identity.Role, error)
	ListRoles(ctx context.Context, companyID string) ([]*identity.Role, error)
	GetCompany(ctx context.Context, companyID string) (*identity.Company, error)
}

// API is the HTTP gateway. It owns nothing but translation: JSON in,
// service calls, JSON out.
type API struct {
	auth         AuthService
	dir          DirectoryService
	db           *sql.DB
	logger       *zap.Logger
	limiter      *ipLimiter
	cookieSecure bool
}

// Option customizes the API.
type Option func(*API)

// WithDB provides the database handle used by the readiness probe.
func WithDB(db *sql.DB) Option {
	return func(a *API) { a.db = db }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRateLimit enables per-IP throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *API) { a.limiter = newIPLimiter(rps, burst) }
}

// WithSecureCookies marks the auth cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(a *API) { a.cookieSecure = secure }
}

// New builds the gateway.
func New(auth AuthService, dir DirectoryService, opts ...Option) *API {
	a := &API{
		auth:   auth,
		dir:    dir,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router assembles the route tree.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logging(a.logger))
	r.Use(obs.Instrument)
	r.Use(SecurityHeaders)
	if a.limiter != nil {
		r.Use(RateLimit(a.limiter))
	}

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/companies/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)
		r.Post("/auth/refresh", a.handleRefresh)
		// Logout only clears client state and revokes a token the client
		// already holds, so it does not demand a live access token.
		r.Post("/auth/logout", a.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/auth/me", a.handleMe)

			r.Get("/companies/{companyID}", a.handleGetCompany)
			r.Get("/companies/{companyID}/roles", a.handleListRoles)
			r.Post("/companies/{companyID}/roles", a.handleCreateRole)

			r.Post("/cities", a.handleCreateCity)
			r.Get("/cities", a.handleListCities)
			r.Get("/cities/{cityID}", a.handleGetCity)
			r.Put("/cities/{cityID}", a.handleUpdateCity)
			r.Delete("/cities/{cityID}", a.handleDeleteCity)
		})
	})

	return r
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.PingContext(ctx); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "not_ready", "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
