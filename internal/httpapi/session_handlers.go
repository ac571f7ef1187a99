package httpapi

import (
	"net/http"

	"locumdesk.org/internal/audit"
	"locumdesk.org/internal/sessiontoken"
	"locumdesk.org/internal/tenancy"
)

type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := a.svc.Signup(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.signup", map[string]any{
		"account_id": account.ID,
		"email":      account.Email,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"account": account})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, linked, err := a.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	session, err := a.svc.StartSession(r.Context(), account, r.UserAgent(), clientIP(r))
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	token, err := sessiontoken.Encode(session.ID, sessionTokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.setSessionCookie(w, token)
	_ = audit.LogEvent(r.Context(), "session.login", map[string]any{
		"account_id":         account.ID,
		"linked_invitations": linked,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"account":            account,
		"linked_invitations": linked,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if sessionID, derr := sessiontoken.Decode(cookie.Value); derr == nil {
			if err := a.svc.DestroySession(r.Context(), sessionID); err != nil {
				handleTenancyError(w, err)
				return
			}
		}
	}
	expireCookie(w, sessionCookie)
	expireCookie(w, entityCookie)
	_ = audit.LogEvent(r.Context(), "session.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "verification token required")
		return
	}
	account, err := a.svc.VerifyEmail(r.Context(), token)
	if err != nil {
		handleTenancyError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.email_verified", map[string]any{
		"account_id": account.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "verified", "account": account})
}

func (a *API) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	account, ok := tenancy.AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if account.EmailVerified() {
		writeJSON(w, http.StatusOK, map[string]any{"status": "already_verified"})
		return
	}
	if err := a.svc.RegenerateVerification(r.Context(), account); err != nil {
		handleTenancyError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "verification_sent"})
}
