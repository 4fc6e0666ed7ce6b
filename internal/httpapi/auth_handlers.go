package httpapi

import (
	"net/http"

	"icredit2.org/internal/audit"
	"icredit2.org/internal/identity"
	"icredit2.org/internal/obs"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func (a *API) tokenResponseFor(pair identity.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		ExpiresIn:    a.auth.AccessTTL().Milliseconds(),
		RefreshToken: pair.RefreshToken,
	}
}

type registerRequest struct {
	Name             string `json:"name"`
	Domain           string `json:"domain"`
	OwnerEmail       string `json:"owner_email"`
	OwnerPassword    string `json:"owner_password"`
	OwnerDisplayName string `json:"owner_display_name"`
}

type registerResponse struct {
	Company identity.Company `json:"company"`
	Owner   identity.User    `json:"owner"`
	tokenResponse
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reg, err := a.auth.RegisterCompany(r.Context(), identity.RegisterCompanyInput{
		Name:             req.Name,
		Domain:           req.Domain,
		OwnerEmail:       req.OwnerEmail,
		OwnerPassword:    req.OwnerPassword,
		OwnerDisplayName: req.OwnerDisplayName,
	})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "company.register", map[string]any{
		"company_id": reg.Company.ID,
		"owner_id":   reg.Owner.ID,
	})
	a.setAuthCookie(w, reg.Tokens.AccessToken)
	writeJSON(w, http.StatusCreated, registerResponse{
		Company:       reg.Company,
		Owner:         reg.Owner,
		tokenResponse: a.tokenResponseFor(reg.Tokens),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Tenant disambiguates the account under company-scoped email uniqueness.
	// Ignored under global uniqueness.
	Tenant string `json:"tenant,omitempty"`
}

type loginResponse struct {
	tokenResponse
	UserName    string `json:"user_name"`
	DisplayName string `json:"display_name"`
	Verified    bool   `json:"is_verified"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, principal, err := a.auth.Login(r.Context(), req.Email, req.Password, req.Tenant)
	if err != nil {
		obs.ObserveLogin("denied")
		serviceError(w, r, err)
		return
	}
	obs.ObserveLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":    principal.User.ID,
		"company_id": principal.CompanyID(),
	})
	a.setAuthCookie(w, pair.AccessToken)
	writeJSON(w, http.StatusOK, loginResponse{
		tokenResponse: a.tokenResponseFor(pair),
		UserName:      principal.User.Email,
		DisplayName:   principal.User.DisplayName,
		Verified:      principal.User.Verified,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, principal, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": principal.User.ID,
	})
	a.setAuthCookie(w, pair.AccessToken)
	writeJSON(w, http.StatusOK, a.tokenResponseFor(pair))
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// handleLogout clears the auth cookie and revokes the refresh token when the
// client hands one over. The access token stays valid until expiry; that is
// inherent to stateless verification.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if err := a.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		serviceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	a.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type meResponse struct {
	UserName    string   `json:"user_name"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	CompanyID   string   `json:"company_id"`
	Roles       []string `json:"roles"`
	Verified    bool     `json:"is_verified"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserName:    principal.User.Email,
		Email:       principal.User.Email,
		DisplayName: principal.User.DisplayName,
		CompanyID:   principal.CompanyID(),
		Roles:       principal.User.RoleNames(),
		Verified:    principal.User.Verified,
	})
}
