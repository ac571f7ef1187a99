package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"locumdesk.org/internal/tenancy"
)

func organisationRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "kind", "name", "email", "phone", "address_line1", "address_line2",
		"city", "county", "postcode", "country", "parent_id", "active", "created_at", "updated_at",
	})
}

func TestCreateWithOwnerCommitsBothRows(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("insert into organisations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into memberships").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	org := &tenancy.Organisation{
		ID: "org1", Kind: tenancy.KindAgency, Name: "Shift Cover Ltd",
		Active: true, CreatedAt: now, UpdatedAt: now,
	}
	owner := &tenancy.Membership{
		ID: "m1", EntityID: "org1", Member: tenancy.LinkedMember("acc1"),
		Role: tenancy.RoleOwner, InviteAccepted: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.Organisations().CreateWithOwner(context.Background(), org, owner); err != nil {
		t.Fatalf("CreateWithOwner: %v", err)
	}
}

func TestCreateWithOwnerRollsBackOnMembershipFailure(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into organisations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into memberships").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	org := &tenancy.Organisation{ID: "org1", Kind: tenancy.KindAgency, Name: "X", Active: true}
	owner := &tenancy.Membership{ID: "m1", EntityID: "org1", Member: tenancy.LinkedMember("acc1"), Role: tenancy.RoleOwner, InviteAccepted: true}
	if err := store.Organisations().CreateWithOwner(context.Background(), org, owner); err == nil {
		t.Fatal("expected error")
	}
}

func TestOrganisationUpdateBuildsSetClause(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	name := "Renamed"
	city := "Leeds"

	mock.ExpectExec(`update organisations set name = \$1, city = \$2, updated_at = now\(\) where id = \$3`).
		WithArgs("Renamed", "Leeds", "org1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("from organisations where id = ").
		WithArgs("org1").
		WillReturnRows(organisationRows(t).
			AddRow("org1", "client", "Renamed", nil, nil, nil, nil, "Leeds", nil, nil, nil, nil, true, now, now))

	org, err := store.Organisations().Update(context.Background(), "org1", tenancy.OrganisationUpdate{Name: &name, City: &city})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if org.Name != "Renamed" || org.City != "Leeds" {
		t.Fatalf("update result wrong: %+v", org)
	}
}

func TestOrganisationUpdateNoFieldsJustReloads(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from organisations where id = ").
		WithArgs("org1").
		WillReturnRows(organisationRows(t).
			AddRow("org1", "agency", "Unchanged", nil, nil, nil, nil, nil, nil, nil, nil, nil, true, now, now))

	org, err := store.Organisations().Update(context.Background(), "org1", tenancy.OrganisationUpdate{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if org.Name != "Unchanged" {
		t.Fatalf("unexpected organisation: %+v", org)
	}
}

func TestOrganisationDeactivateMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update organisations set active = false").
		WithArgs("org1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Organisations().Deactivate(context.Background(), "org1"); !errors.Is(err, tenancy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
