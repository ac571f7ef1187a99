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

func accountRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "deactivated", "super_admin",
		"email_verified_at", "verification_token", "verification_token_expires_at", "created_at", "updated_at",
	})
}

func TestAccountCreateMapsConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("insert into accounts").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	a := &tenancy.Account{ID: "a1", Email: "dup@example.com", PasswordHash: "x"}
	if err := store.Accounts().Create(context.Background(), a); !errors.Is(err, tenancy.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAccountFindExcludesDeactivated(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from accounts where id = .* and not deactivated").
		WithArgs("a1").
		WillReturnRows(accountRows(t))

	if _, err := store.Accounts().Find(context.Background(), "a1"); !errors.Is(err, tenancy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAccountFindAnyIncludesDeactivated(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from accounts where id = ").
		WithArgs("a1").
		WillReturnRows(accountRows(t).
			AddRow("a1", "gone@example.com", "hash", "Gone", "User", true, false, nil, nil, nil, now, now))

	account, err := store.Accounts().FindAny(context.Background(), "a1")
	if err != nil {
		t.Fatalf("FindAny: %v", err)
	}
	if !account.Deactivated {
		t.Fatal("deactivated flag lost")
	}
	if account.EmailVerified() {
		t.Fatal("null verified-at must scan as unverified")
	}
}

func TestAccountMarkEmailVerified(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectExec("update accounts").
		WithArgs("a1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Accounts().MarkEmailVerified(context.Background(), "a1", at); err != nil {
		t.Fatalf("MarkEmailVerified: %v", err)
	}
}

func TestAccountSetDeactivatedMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update accounts set deactivated").
		WithArgs("a1", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Accounts().SetDeactivated(context.Background(), "a1", true); !errors.Is(err, tenancy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
