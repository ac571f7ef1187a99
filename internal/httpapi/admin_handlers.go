package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"locumdesk.org/internal/audit"
	"locumdesk.org/internal/tenancy"
)

func (a *API) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	actor, _ := tenancy.AccountFromContext(r.Context())
	accounts, err := a.svc.ListAccounts(r.Context(), actor)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (a *API) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	actor, _ := tenancy.AccountFromContext(r.Context())
	account, err := a.svc.GetAccount(r.Context(), actor, chi.URLParam(r, "accountID"))
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account})
}

func (a *API) handleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	a.setAccountDeactivated(w, r, true, "account.deactivate")
}

func (a *API) handleReactivateAccount(w http.ResponseWriter, r *http.Request) {
	a.setAccountDeactivated(w, r, false, "account.reactivate")
}

func (a *API) setAccountDeactivated(w http.ResponseWriter, r *http.Request, deactivated bool, event string) {
	actor, _ := tenancy.AccountFromContext(r.Context())
	accountID := chi.URLParam(r, "accountID")
	if err := a.svc.SetAccountDeactivated(r.Context(), actor, accountID, deactivated); err != nil {
		handleTenancyError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"target_account_id": accountID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id":  accountID,
		"deactivated": deactivated,
	})
}
