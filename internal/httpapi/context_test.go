package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"locumdesk.org/internal/tenancy"
)

func (ta *testAPI) createOrg(t *testing.T, founder *tenancy.Account, kind, name string) *tenancy.Organisation {
	t.Helper()
	org, _, err := ta.svc.CreateOrganisation(context.Background(), founder, tenancy.OrganisationParams{Kind: kind, Name: name})
	if err != nil {
		t.Fatalf("create organisation: %v", err)
	}
	return org
}

func TestMeWithoutOrganisations(t *testing.T) {
	ta := newTestAPI(t)
	ta.seedAccount(t, "lonely@example.com")
	session := ta.login(t, "lonely@example.com")

	rec := ta.do(t, http.MethodGet, "/v1/me", "", session)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["entity"] != nil {
		t.Fatalf("expected empty entity, got %v", body["entity"])
	}
	if body["role"] != "" {
		t.Fatalf("expected empty role, got %v", body["role"])
	}
	perms := body["permissions"].(map[string]any)
	if perms["can_manage_users"] != false || perms["can_delete_organisation"] != false {
		t.Fatalf("empty context permissions wrong: %v", perms)
	}
}

func TestMeResolvesEntityContext(t *testing.T) {
	ta := newTestAPI(t)
	account := ta.seedAccount(t, "owner@example.com")
	org := ta.createOrg(t, account, "agency", "Shift Cover Ltd")
	session := ta.login(t, "owner@example.com")

	rec := ta.do(t, http.MethodGet, "/v1/me", "", session)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	entity := body["entity"].(map[string]any)
	if entity["id"] != org.ID {
		t.Fatalf("entity wrong: %v", entity)
	}
	if body["role"] != "owner" {
		t.Fatalf("role wrong: %v", body["role"])
	}
	hint := cookieNamed(rec, entityCookie)
	if hint == nil || hint.Value != org.ID {
		t.Fatal("entity hint cookie not written")
	}
}

func TestEntityHintAutoCorrection(t *testing.T) {
	ta := newTestAPI(t)
	account := ta.seedAccount(t, "multi@example.com")
	first := ta.createOrg(t, account, "agency", "First Agency")
	ta.createOrg(t, account, "client", "Second Client")

	other := ta.seedAccount(t, "other@example.com")
	foreign := ta.createOrg(t, other, "agency", "Foreign Agency")

	session := ta.login(t, "multi@example.com")

	// A hint naming an organisation the account cannot act in silently
	// resolves to the first membership and rewrites the cookie.
	rec := ta.do(t, http.MethodGet, "/v1/me", "", session,
		&http.Cookie{Name: entityCookie, Value: foreign.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	entity := body["entity"].(map[string]any)
	if entity["id"] != first.ID {
		t.Fatalf("hint not corrected: %v", entity["id"])
	}
	hint := cookieNamed(rec, entityCookie)
	if hint == nil || hint.Value != first.ID {
		t.Fatalf("corrected hint not persisted: %v", hint)
	}
}

func TestContextSwitchEndpoint(t *testing.T) {
	ta := newTestAPI(t)
	account := ta.seedAccount(t, "multi@example.com")
	ta.createOrg(t, account, "agency", "First Agency")
	second := ta.createOrg(t, account, "client", "Second Client")

	other := ta.seedAccount(t, "other@example.com")
	foreign := ta.createOrg(t, other, "agency", "Foreign Agency")

	session := ta.login(t, "multi@example.com")

	rec := ta.do(t, http.MethodPost, "/v1/context/switch",
		fmt.Sprintf(`{"entity_id":%q}`, second.ID), session)
	if rec.Code != http.StatusOK {
		t.Fatalf("switch: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	entity := body["entity"].(map[string]any)
	if entity["id"] != second.ID {
		t.Fatalf("switch target wrong: %v", entity["id"])
	}
	hint := cookieNamed(rec, entityCookie)
	if hint == nil || hint.Value != second.ID {
		t.Fatal("switch should persist the hint cookie")
	}

	// Explicit switches are refused rather than corrected.
	rec = ta.do(t, http.MethodPost, "/v1/context/switch",
		fmt.Sprintf(`{"entity_id":%q}`, foreign.ID), session)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign switch: %d", rec.Code)
	}
}

func TestMeListsPendingInvitations(t *testing.T) {
	ta := newTestAPI(t)
	owner := ta.seedAccount(t, "owner@example.com")
	org := ta.createOrg(t, owner, "agency", "Shift Cover Ltd")
	invitee := ta.seedAccount(t, "invitee@example.com")

	result, err := ta.svc.InviteMember(context.Background(), owner, org, invitee.Email, "member")
	if err != nil || !result.OK() {
		t.Fatalf("invite: %v %v", err, result.Message)
	}

	session := ta.login(t, "invitee@example.com")
	rec := ta.do(t, http.MethodGet, "/v1/me", "", session)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	invites := body["pending_invitations"].([]any)
	if len(invites) != 1 {
		t.Fatalf("expected 1 pending invitation, got %v", body["pending_invitations"])
	}
	invite := invites[0].(map[string]any)
	if invite["entity_name"] != "Shift Cover Ltd" || invite["entity_kind"] != "agency" {
		t.Fatalf("invite projection wrong: %v", invite)
	}
}
