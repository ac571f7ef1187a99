package tenancy_test

import (
	"context"
	"testing"

	"locumdesk.org/internal/tenancy"
)

func TestResolveContextHonorsValidHint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.seedAccount(t, "multi@example.com")
	first := f.createOrg(t, account, "agency", "First Agency")
	second := f.createOrg(t, account, "client", "Second Client")

	ec, err := f.svc.ResolveContext(ctx, account, second.ID)
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if !ec.Valid() || ec.EntityID() != second.ID {
		t.Fatalf("hint should win, resolved %q", ec.EntityID())
	}
	if len(ec.Available) != 2 {
		t.Fatalf("expected 2 available organisations, got %d", len(ec.Available))
	}
	if ec.Available[0].ID != first.ID {
		t.Fatalf("available organisations out of order: %s", ec.Available[0].ID)
	}
}

func TestResolveContextCorrectsStaleHint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.seedAccount(t, "multi@example.com")
	first := f.createOrg(t, account, "agency", "First Agency")
	f.createOrg(t, account, "client", "Second Client")

	other := f.seedAccount(t, "other@example.com")
	foreign := f.createOrg(t, other, "agency", "Foreign Agency")

	// A hint naming an organisation the account has no membership on is
	// silently replaced with the deterministic default.
	ec, err := f.svc.ResolveContext(ctx, account, foreign.ID)
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if ec.EntityID() != first.ID {
		t.Fatalf("stale hint should correct to first membership, got %q", ec.EntityID())
	}

	// Unknown ids correct the same way.
	ec, err = f.svc.ResolveContext(ctx, account, "no-such-org")
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if ec.EntityID() != first.ID {
		t.Fatalf("unknown hint should correct, got %q", ec.EntityID())
	}

	// Resolution is idempotent: feeding the corrected id back returns it.
	again, err := f.svc.ResolveContext(ctx, account, ec.EntityID())
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if again.EntityID() != ec.EntityID() {
		t.Fatalf("resolution not idempotent: %q then %q", ec.EntityID(), again.EntityID())
	}
}

func TestResolveContextSkipsInactiveOrganisations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.seedAccount(t, "multi@example.com")
	first := f.createOrg(t, account, "agency", "First Agency")
	second := f.createOrg(t, account, "client", "Second Client")

	if _, err := f.svc.DeactivateOrganisation(ctx, account, first.ID); err != nil {
		t.Fatalf("DeactivateOrganisation: %v", err)
	}

	ec, err := f.svc.ResolveContext(ctx, account, first.ID)
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if ec.EntityID() != second.ID {
		t.Fatalf("deactivated organisation must not resolve, got %q", ec.EntityID())
	}
	if len(ec.Available) != 1 {
		t.Fatalf("expected 1 available organisation, got %d", len(ec.Available))
	}
}

func TestResolveContextIgnoresPendingMemberships(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedAccount(t, "owner@example.com")
	org := f.createOrg(t, owner, "agency", "Shift Cover Ltd")
	invitee := f.seedAccount(t, "invitee@example.com")

	result, err := f.svc.InviteMember(ctx, owner, org, invitee.Email, "member")
	if err != nil || !result.OK() {
		t.Fatalf("invite: %v %v", err, result.Message)
	}

	ec, err := f.svc.ResolveContext(ctx, invitee, org.ID)
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if ec.Valid() {
		t.Fatalf("pending membership must not grant a context, got %q", ec.EntityID())
	}
}

func TestResolveContextEmpty(t *testing.T) {
	f := newFixture(t)
	account := f.seedAccount(t, "lonely@example.com")

	ec, err := f.svc.ResolveContext(context.Background(), account, "")
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if ec.Valid() {
		t.Fatal("expected empty context")
	}
	if len(ec.Available) != 0 {
		t.Fatalf("expected no available organisations, got %d", len(ec.Available))
	}
	perms := ec.Permissions()
	if perms.CanManageUsers || perms.CanDeleteOrganisation || perms.SuperAdmin {
		t.Fatalf("empty context must carry no permissions: %+v", perms)
	}
	if ec.Role() != "" {
		t.Fatalf("empty context has role %q", ec.Role())
	}
}

func TestEntityContextPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedAccount(t, "owner@example.com")
	org := f.createOrg(t, owner, "agency", "Shift Cover Ltd")
	member := f.seedAccount(t, "member@example.com")
	f.join(t, owner, org, member, "member")

	ec, err := f.svc.ResolveContext(ctx, owner, org.ID)
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	perms := ec.Permissions()
	if !perms.CanManageUsers || !perms.CanDeleteOrganisation {
		t.Fatalf("owner permissions wrong: %+v", perms)
	}

	ec, err = f.svc.ResolveContext(ctx, member, org.ID)
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	perms = ec.Permissions()
	if perms.CanManageUsers || perms.CanDeleteOrganisation {
		t.Fatalf("member permissions wrong: %+v", perms)
	}
	if ec.Role() != tenancy.RoleMember {
		t.Fatalf("unexpected role %q", ec.Role())
	}
}

func TestSwitchContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.seedAccount(t, "multi@example.com")
	f.createOrg(t, account, "agency", "First Agency")
	second := f.createOrg(t, account, "client", "Second Client")

	other := f.seedAccount(t, "other@example.com")
	foreign := f.createOrg(t, other, "agency", "Foreign Agency")

	ec, ok, err := f.svc.SwitchContext(ctx, account, second.ID)
	if err != nil {
		t.Fatalf("SwitchContext: %v", err)
	}
	if !ok || ec.EntityID() != second.ID {
		t.Fatalf("switch to own organisation should succeed, ok=%v id=%q", ok, ec.EntityID())
	}

	// Switching to a foreign organisation is refused, unlike stale hints
	// which auto-correct.
	if _, ok, err := f.svc.SwitchContext(ctx, account, foreign.ID); err != nil || ok {
		t.Fatalf("foreign switch: ok=%v err=%v", ok, err)
	}
	if _, ok, err := f.svc.SwitchContext(ctx, account, ""); err != nil || ok {
		t.Fatalf("empty switch: ok=%v err=%v", ok, err)
	}
}
