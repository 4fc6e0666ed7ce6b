package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"icredit2.org/internal/audit"
	"icredit2.org/internal/directory"
	"icredit2.org/internal/identity"
)

// tenantID pulls the company id from the authenticated principal. Returns ""
// after writing the error response when no tenant context exists.
func tenantID(w http.ResponseWriter, r *http.Request) string {
	id, err := identity.CurrentCompanyID(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return ""
	}
	return id
}

// pathCompanyID verifies the path-supplied company matches the caller's
// tenant. Cross-tenant paths read as missing resources, not as forbidden.
func pathCompanyID(w http.ResponseWriter, r *http.Request) string {
	id := tenantID(w, r)
	if id == "" {
		return ""
	}
	if chi.URLParam(r, "companyID") != id {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return ""
	}
	return id
}

type cityRequest struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (a *API) handleCreateCity(w http.ResponseWriter, r *http.Request) {
	companyID := tenantID(w, r)
	if companyID == "" {
		return
	}
	var req cityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	city, err := a.dir.CreateCity(r.Context(), companyID, directory.CityInput{Name: req.Name, Active: req.Active})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "city.create", map[string]any{"city_id": city.ID})
	writeJSON(w, http.StatusCreated, city)
}

func (a *API) handleListCities(w http.ResponseWriter, r *http.Request) {
	companyID := tenantID(w, r)
	if companyID == "" {
		return
	}
	cities, err := a.dir.ListCities(r.Context(), companyID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if cities == nil {
		cities = []*directory.City{}
	}
	writeJSON(w, http.StatusOK, cities)
}

func (a *API) handleGetCity(w http.ResponseWriter, r *http.Request) {
	companyID := tenantID(w, r)
	if companyID == "" {
		return
	}
	city, err := a.dir.GetCity(r.Context(), companyID, chi.URLParam(r, "cityID"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, city)
}

func (a *API) handleUpdateCity(w http.ResponseWriter, r *http.Request) {
	companyID := tenantID(w, r)
	if companyID == "" {
		return
	}
	var req cityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	city, err := a.dir.UpdateCity(r.Context(), companyID, chi.URLParam(r, "cityID"),
		directory.CityInput{Name: req.Name, Active: req.Active})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "city.update", map[string]any{"city_id": city.ID})
	writeJSON(w, http.StatusOK, city)
}

func (a *API) handleDeleteCity(w http.ResponseWriter, r *http.Request) {
	companyID := tenantID(w, r)
	if companyID == "" {
		return
	}
	cityID := chi.URLParam(r, "cityID")
	if err := a.dir.DeleteCity(r.Context(), companyID, cityID); err != nil {
		serviceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "city.delete", map[string]any{"city_id": cityID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	companyID := pathCompanyID(w, r)
	if companyID == "" {
		return
	}
	company, err := a.dir.GetCompany(r.Context(), companyID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

type roleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	companyID := pathCompanyID(w, r)
	if companyID == "" {
		return
	}
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := a.dir.CreateRole(r.Context(), companyID, req.Name, req.Permissions)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.create", map[string]any{"role_id": role.ID})
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	companyID := pathCompanyID(w, r)
	if companyID == "" {
		return
	}
	roles, err := a.dir.ListRoles(r.Context(), companyID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if roles == nil {
		roles = []*identity.Role{}
	}
	writeJSON(w, http.StatusOK, roles)
}
