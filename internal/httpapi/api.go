package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"locumdesk.org/internal/obs"
	"locumdesk.org/internal/tenancy"
)

const (
	sessionCookie = "locumdesk_session"
	entityCookie  = "locumdesk_entity"

	sessionTokenTTL = 30 * 24 * time.Hour
	maxBodyBytes    = 1 << 20
)

// ReadyProbe pings the backing database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the tenancy core.
type API struct {
	svc        *tenancy.Service
	router     chi.Router
	readyProbe ReadyProbe
	version    string
}

// New wires routes. Login is rate limited per client IP.
func New(svc *tenancy.Service, rp ReadyProbe, version string) *API {
	a := &API{
		svc:        svc,
		readyProbe: rp,
		version:    version,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(Logging)
	r.Use(Recover)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/signup", a.handleSignup)
		r.With(RateLimit(10, 2)).Post("/session", a.handleLogin)
		r.Get("/verify-email", a.handleVerifyEmail)

		// Authenticated surface. Verification and logout stay reachable for
		// unverified accounts.
		r.Group(func(r chi.Router) {
			r.Use(a.withSession)
			r.Delete("/session", a.handleLogout)
			r.Post("/verify-email/resend", a.handleResendVerification)
		})
		r.Group(func(r chi.Router) {
			r.Use(a.withSession, a.withVerifiedEmail, a.withEntityContext)

			r.Get("/me", a.handleMe)
			r.Post("/context/switch", a.handleSwitchContext)

			r.Post("/organisations", a.handleCreateOrganisation)
			r.Route("/organisations/{orgID}", func(r chi.Router) {
				r.Get("/", a.handleGetOrganisation)
				r.Patch("/", a.handleUpdateOrganisation)
				r.Post("/deactivate", a.handleDeactivateOrganisation)
				r.Post("/invitations", a.handleInviteMember)
				r.Delete("/members/{membershipID}", a.handleRemoveMember)
				r.Patch("/members/{membershipID}/role", a.handleChangeMemberRole)
			})

			r.Get("/invitations", a.handleListInvites)
			r.Post("/invitations/{membershipID}/accept", a.handleAcceptInvite)
			r.Post("/invitations/{membershipID}/decline", a.handleDeclineInvite)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/accounts", a.handleListAccounts)
				r.Get("/accounts/{accountID}", a.handleGetAccount)
				r.Post("/accounts/{accountID}/deactivate", a.handleDeactivateAccount)
				r.Post("/accounts/{accountID}/reactivate", a.handleReactivateAccount)
			})
		})
	})

	a.router = r
	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	return obs.Instrument(MaxBodyBytes(a.router, maxBodyBytes))
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "locumdesk-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"error": message})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleTenancyError maps core sentinels onto HTTP statuses. The trailing
// message after the sentinel prefix is what gets shown to users.
func handleTenancyError(w http.ResponseWriter, err error) {
	msg := userMessage(err)
	switch {
	case errors.Is(err, tenancy.ErrUnauthenticated), errors.Is(err, tenancy.ErrAccountDeactivated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, tenancy.ErrPermissionDenied), errors.Is(err, tenancy.ErrEntityAccessDenied):
		writeError(w, http.StatusForbidden, msg)
	case errors.Is(err, tenancy.ErrOwnerProtected), errors.Is(err, tenancy.ErrDeactivationBlocked):
		writeError(w, http.StatusUnprocessableEntity, msg)
	case errors.Is(err, tenancy.ErrInvitationConflict), errors.Is(err, tenancy.ErrConflict):
		writeError(w, http.StatusConflict, msg)
	case errors.Is(err, tenancy.ErrIneligibleKind):
		writeError(w, http.StatusUnprocessableEntity, msg)
	case errors.Is(err, tenancy.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, msg)
	case errors.Is(err, tenancy.ErrNotFound):
		writeError(w, http.StatusNotFound, msg)
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// userMessage strips the sentinel prefix so clients see only the
// human-readable remainder, never internal error chains.
func userMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{
		tenancy.ErrOwnerProtected,
		tenancy.ErrDeactivationBlocked,
		tenancy.ErrIneligibleKind,
		tenancy.ErrInvitationConflict,
		tenancy.ErrEntityAccessDenied,
		tenancy.ErrPermissionDenied,
		tenancy.ErrInvalidInput,
		tenancy.ErrConflict,
		tenancy.ErrNotFound,
	} {
		if !errors.Is(err, sentinel) {
			continue
		}
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
		return strings.TrimPrefix(sentinel.Error(), "tenancy: ")
	}
	return strings.TrimPrefix(msg, "tenancy: ")
}
