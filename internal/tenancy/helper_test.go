package tenancy_test

import (
	"context"
	"testing"
	"time"

	"locumdesk.org/internal/ids"
	"locumdesk.org/internal/store/mem"
	"locumdesk.org/internal/tenancy"
)

// plainVerifier accepts passwords stored as "plain:<password>" so fixtures
// avoid bcrypt.
type plainVerifier struct{}

func (plainVerifier) Verify(hash, password string) bool { return hash == "plain:"+password }

type recordingMailer struct {
	verifications []string
	invitations   []string
}

func (m *recordingMailer) SendVerification(_ context.Context, a *tenancy.Account) {
	m.verifications = append(m.verifications, a.Email)
}

func (m *recordingMailer) SendInvitation(_ context.Context, email string, _ *tenancy.Organisation) {
	m.invitations = append(m.invitations, email)
}

type fixture struct {
	svc    *tenancy.Service
	store  *mem.Store
	mailer *recordingMailer
	now    time.Time
}

func newFixture(t *testing.T, opts ...tenancy.ServiceOption) *fixture {
	t.Helper()
	f := &fixture{
		store:  mem.New(),
		mailer: &recordingMailer{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	base := []tenancy.ServiceOption{
		tenancy.WithClock(func() time.Time { return f.now }),
		tenancy.WithCredentialVerifier(plainVerifier{}),
		tenancy.WithMailer(f.mailer),
	}
	svc, err := tenancy.NewService(f.store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedAccount(t *testing.T, email string) *tenancy.Account {
	t.Helper()
	account := &tenancy.Account{
		ID:           ids.New(),
		Email:        tenancy.NormalizeEmail(email),
		PasswordHash: "plain:secret",
		FirstName:    "Test",
		LastName:     "Account",
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	if err := f.store.Accounts().Create(context.Background(), account); err != nil {
		t.Fatalf("seed account %s: %v", email, err)
	}
	return account
}

func (f *fixture) seedSuperAdmin(t *testing.T, email string) *tenancy.Account {
	t.Helper()
	account := &tenancy.Account{
		ID:           ids.New(),
		Email:        tenancy.NormalizeEmail(email),
		PasswordHash: "plain:secret",
		FirstName:    "Super",
		LastName:     "Admin",
		SuperAdmin:   true,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	if err := f.store.Accounts().Create(context.Background(), account); err != nil {
		t.Fatalf("seed super admin %s: %v", email, err)
	}
	return account
}

func (f *fixture) createOrg(t *testing.T, founder *tenancy.Account, kind, name string) *tenancy.Organisation {
	t.Helper()
	org, _, err := f.svc.CreateOrganisation(context.Background(), founder, tenancy.OrganisationParams{
		Kind: kind,
		Name: name,
	})
	if err != nil {
		t.Fatalf("create %s organisation %q: %v", kind, name, err)
	}
	return org
}

// join invites account into org with role and accepts the invitation.
func (f *fixture) join(t *testing.T, inviter *tenancy.Account, org *tenancy.Organisation, account *tenancy.Account, role string) *tenancy.Membership {
	t.Helper()
	result, err := f.svc.InviteMember(context.Background(), inviter, org, account.Email, role)
	if err != nil {
		t.Fatalf("invite %s: %v", account.Email, err)
	}
	if !result.OK() {
		t.Fatalf("invite %s rejected: %s", account.Email, result.Message)
	}
	membership, err := f.svc.AcceptInvite(context.Background(), account, result.Membership.ID)
	if err != nil {
		t.Fatalf("accept invite for %s: %v", account.Email, err)
	}
	return membership
}
