package httpapi

import (
	"net/http"

	"locumdesk.org/internal/audit"
	"locumdesk.org/internal/tenancy"
)

// handleMe returns the account together with its resolved entity context:
// current organisation, role, permission flags, the organisations the account
// may switch to, and any invitations awaiting a decision.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	ec, _ := tenancy.EntityContextFromContext(r.Context())

	invites, err := a.svc.ListPendingInvites(r.Context(), account)
	if err != nil {
		handleTenancyError(w, err)
		return
	}

	resp := map[string]any{
		"account":             account,
		"entity":              nil,
		"role":                "",
		"permissions":         ec.Permissions(),
		"available_entities":  ec.Available,
		"pending_invitations": invites,
	}
	if ec.Valid() {
		resp["entity"] = ec.Entity
		resp["role"] = ec.Role()
	}
	writeJSON(w, http.StatusOK, resp)
}

type switchContextRequest struct {
	EntityID string `json:"entity_id"`
}

func (a *API) handleSwitchContext(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	var req switchContextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ec, ok, err := a.svc.SwitchContext(r.Context(), account, req.EntityID)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "no access to the requested organisation")
		return
	}
	a.setEntityHint(w, ec.EntityID())
	_ = audit.LogEvent(r.Context(), "context.switch", map[string]any{
		"to_entity_id": ec.EntityID(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"entity":      ec.Entity,
		"role":        ec.Role(),
		"permissions": ec.Permissions(),
	})
}
