package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"locumdesk.org/internal/audit"
	"locumdesk.org/internal/tenancy"
)

type organisationRequest struct {
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	County       string `json:"county"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
	ParentID     string `json:"parent_id"`
}

func (a *API) handleCreateOrganisation(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	var req organisationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	org, membership, err := a.svc.CreateOrganisation(r.Context(), account, tenancy.OrganisationParams{
		Kind:         req.Kind,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		County:       req.County,
		Postcode:     req.Postcode,
		Country:      req.Country,
		ParentID:     req.ParentID,
	})
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	// The creator starts acting within the organisation they just founded.
	a.setEntityHint(w, org.ID)
	_ = audit.LogEvent(r.Context(), "organisation.create", map[string]any{
		"created_entity_id": org.ID,
		"kind":              org.Kind,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"organisation": org,
		"membership":   membership,
		"display_name": org.DisplayName(),
	})
}

func (a *API) handleGetOrganisation(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	orgID := chi.URLParam(r, "orgID")
	org, membership, err := a.svc.GetOrganisation(r.Context(), account, orgID)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	members, err := a.svc.ListMembers(r.Context(), account, orgID)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"organisation": org,
		"display_name": org.DisplayName(),
		"membership":   membership,
		"members":      members,
	})
}

type organisationUpdateRequest struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	AddressLine1 *string `json:"address_line1"`
	AddressLine2 *string `json:"address_line2"`
	City         *string `json:"city"`
	County       *string `json:"county"`
	Postcode     *string `json:"postcode"`
	Country      *string `json:"country"`
}

func (a *API) handleUpdateOrganisation(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	orgID := chi.URLParam(r, "orgID")
	var req organisationUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.svc.UpdateOrganisation(r.Context(), account, orgID, tenancy.OrganisationUpdate{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		County:       req.County,
		Postcode:     req.Postcode,
		Country:      req.Country,
	})
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "organisation.update", map[string]any{
		"updated_entity_id": org.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"organisation": org})
}

func (a *API) handleDeactivateOrganisation(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	orgID := chi.URLParam(r, "orgID")
	org, err := a.svc.DeactivateOrganisation(r.Context(), account, orgID)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	// The deactivated organisation can no longer be the current context.
	expireCookie(w, entityCookie)
	_ = audit.LogEvent(r.Context(), "organisation.deactivate", map[string]any{
		"deactivated_entity_id": org.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"organisation": org})
}
