package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"locumdesk.org/internal/audit"
	"locumdesk.org/internal/tenancy"
)

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	orgID := chi.URLParam(r, "orgID")
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	org, _, err := a.svc.GetOrganisation(r.Context(), account, orgID)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	result, err := a.svc.InviteMember(r.Context(), account, org, req.Email, req.Role)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	if !result.OK() {
		writeErrorForInvite(w, result)
		return
	}
	_ = audit.LogEvent(r.Context(), "membership.invite", map[string]any{
		"membership_id": result.Membership.ID,
		"invited_role":  result.Membership.Role,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"membership": result.Membership,
		"state":      result.Membership.State(),
		"message":    result.Message,
	})
}

// writeErrorForInvite reports a failed invitation using its display message
// rather than the sentinel text, since the service composed it for the user.
func writeErrorForInvite(w http.ResponseWriter, result tenancy.InviteResult) {
	status := http.StatusUnprocessableEntity
	switch result.Err {
	case tenancy.ErrUnauthenticated:
		status = http.StatusUnauthorized
	case tenancy.ErrPermissionDenied:
		status = http.StatusForbidden
	case tenancy.ErrInvitationConflict:
		status = http.StatusConflict
	case tenancy.ErrInvalidInput:
		status = http.StatusBadRequest
	}
	writeError(w, status, result.Message)
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	orgID := chi.URLParam(r, "orgID")
	membershipID := chi.URLParam(r, "membershipID")
	removed, err := a.svc.RemoveMember(r.Context(), account, orgID, membershipID)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "membership.remove", map[string]any{
		"membership_id": removed.ID,
		"removed_role":  removed.Role,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed", "membership_id": removed.ID})
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	orgID := chi.URLParam(r, "orgID")
	membershipID := chi.URLParam(r, "membershipID")
	var req changeRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := tenancy.ParseAssignableRole(req.Role)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	updated, err := a.svc.ChangeMemberRole(r.Context(), account, orgID, membershipID, role)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "membership.change_role", map[string]any{
		"membership_id": updated.ID,
		"new_role":      updated.Role,
	})
	writeJSON(w, http.StatusOK, map[string]any{"membership": updated})
}

func (a *API) handleListInvites(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	invites, err := a.svc.ListPendingInvites(r.Context(), account)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": invites})
}

func (a *API) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	membershipID := chi.URLParam(r, "membershipID")
	membership, err := a.svc.AcceptInvite(r.Context(), account, membershipID)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	// Accepting an invitation makes that organisation the current context.
	a.setEntityHint(w, membership.EntityID)
	_ = audit.LogEvent(r.Context(), "membership.accept", map[string]any{
		"membership_id":    membership.ID,
		"joined_entity_id": membership.EntityID,
		"role":             membership.Role,
	})
	writeJSON(w, http.StatusOK, map[string]any{"membership": membership})
}

func (a *API) handleDeclineInvite(w http.ResponseWriter, r *http.Request) {
	account, _ := tenancy.AccountFromContext(r.Context())
	membershipID := chi.URLParam(r, "membershipID")
	if err := a.svc.DeclineInvite(r.Context(), account, membershipID); err != nil {
		handleTenancyError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "membership.decline", map[string]any{
		"membership_id": membershipID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "declined"})
}
