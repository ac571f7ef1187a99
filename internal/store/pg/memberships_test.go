package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"locumdesk.org/internal/tenancy"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(db), mock
}

func membershipRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "entity_id", "account_id", "invited_email", "role", "invite_accepted", "created_at", "updated_at",
	})
}

func TestMembershipCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("insert into memberships").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	m := &tenancy.Membership{
		ID:       "m1",
		EntityID: "org1",
		Member:   tenancy.InvitedMember("x@example.com"),
		Role:     tenancy.RoleMember,
	}
	if err := store.Memberships().Create(context.Background(), m); !errors.Is(err, tenancy.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMembershipCreateMapsForeignKeyViolation(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("insert into memberships").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	m := &tenancy.Membership{
		ID:       "m1",
		EntityID: "missing-org",
		Member:   tenancy.LinkedMember("acc1"),
		Role:     tenancy.RoleMember,
	}
	if err := store.Memberships().Create(context.Background(), m); !errors.Is(err, tenancy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMembershipFindScansUnion(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select .* from memberships m where m.id = ").
		WithArgs("m1").
		WillReturnRows(membershipRows(t).
			AddRow("m1", "org1", nil, "invited@example.com", "member", false, now, now))

	m, err := store.Memberships().Find(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if m.Member.Linked() {
		t.Fatal("null account_id must scan into an invited reference")
	}
	if m.Member.Email() != "invited@example.com" {
		t.Fatalf("invited email wrong: %s", m.Member.Email())
	}
	if m.State() != tenancy.StatePendingUnlinked {
		t.Fatalf("state wrong: %s", m.State())
	}
}

func TestDeleteNonOwnerGuardsOwnerRow(t *testing.T) {
	store, mock := newMock(t)
	// Role guard in the delete leaves the owner row untouched; the follow-up
	// select classifies the failure.
	mock.ExpectExec("delete from memberships where id = .* and role <> 'owner'").
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select role from memberships where id = ").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("owner"))

	err := store.Memberships().DeleteNonOwner(context.Background(), "m1")
	if !errors.Is(err, tenancy.ErrOwnerProtected) {
		t.Fatalf("expected owner protected, got %v", err)
	}
}

func TestDeleteNonOwnerMissingRow(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("delete from memberships where id = .* and role <> 'owner'").
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select role from memberships where id = ").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}))

	err := store.Memberships().DeleteNonOwner(context.Background(), "m1")
	if !errors.Is(err, tenancy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRoleNonOwnerGuardsOwnerRow(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update memberships set role = .* where id = .* and role <> 'owner'").
		WithArgs("m1", "admin").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select role from memberships where id = ").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("owner"))

	err := store.Memberships().UpdateRoleNonOwner(context.Background(), "m1", tenancy.RoleAdmin)
	if !errors.Is(err, tenancy.ErrOwnerProtected) {
		t.Fatalf("expected owner protected, got %v", err)
	}
}

func TestAcceptRequiresPendingLinkedRow(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update memberships").
		WithArgs("m1", "acc1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Memberships().Accept(context.Background(), "m1", "acc1")
	if !errors.Is(err, tenancy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLinkPendingByEmailReportsCount(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update memberships").
		WithArgs("acc1", "new@example.com").
		WillReturnResult(sqlmock.NewResult(0, 2))

	linked, err := store.Memberships().LinkPendingByEmail(context.Background(), "acc1", "new@example.com")
	if err != nil {
		t.Fatalf("LinkPendingByEmail: %v", err)
	}
	if linked != 2 {
		t.Fatalf("expected 2 linked rows, got %d", linked)
	}
}

func TestCountOtherAccepted(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(`select count\(\*\)`).
		WithArgs("org1", "acc1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.Memberships().CountOtherAccepted(context.Background(), "org1", "acc1")
	if err != nil {
		t.Fatalf("CountOtherAccepted: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}

func TestFirstAcceptedActiveJoinsOrganisation(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "entity_id", "account_id", "invited_email", "role", "invite_accepted", "created_at", "updated_at",
		"o_id", "kind", "name", "email", "phone", "address_line1", "address_line2",
		"city", "county", "postcode", "country", "parent_id", "active", "o_created_at", "o_updated_at",
	}).AddRow(
		"m1", "org1", "acc1", nil, "owner", true, now, now,
		"org1", "agency", "Shift Cover Ltd", nil, nil, nil, nil,
		nil, nil, nil, nil, nil, true, now, now,
	)
	mock.ExpectQuery("from memberships m\\s+join organisations o").
		WithArgs("acc1").
		WillReturnRows(rows)

	me, err := store.Memberships().FirstAcceptedActive(context.Background(), "acc1")
	if err != nil {
		t.Fatalf("FirstAcceptedActive: %v", err)
	}
	if me.Entity.ID != "org1" || me.Entity.Kind != tenancy.KindAgency {
		t.Fatalf("entity wrong: %+v", me.Entity)
	}
	if me.Membership.Role != tenancy.RoleOwner || !me.Membership.InviteAccepted {
		t.Fatalf("membership wrong: %+v", me.Membership)
	}
}
