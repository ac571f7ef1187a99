package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"locumdesk.org/internal/tenancy"
)

type accountStore struct{ db *sql.DB }

const accountColumns = `id, email, password_hash, first_name, last_name, deactivated, super_admin,
	email_verified_at, verification_token, verification_token_expires_at, created_at, updated_at`

func (s *accountStore) Create(ctx context.Context, a *tenancy.Account) error {
	_, err := s.db.ExecContext(ctx, `
		insert into accounts (id, email, password_hash, first_name, last_name, deactivated, super_admin,
			verification_token, verification_token_expires_at, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Deactivated, a.SuperAdmin,
		nullIfEmpty(a.VerificationToken), a.VerificationTokenExpiresAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *accountStore) Find(ctx context.Context, id string) (*tenancy.Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id = $1 and not deactivated`, id))
}

func (s *accountStore) FindAny(ctx context.Context, id string) (*tenancy.Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id = $1`, id))
}

func (s *accountStore) FindByEmail(ctx context.Context, email string) (*tenancy.Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where email = $1`, email))
}

func (s *accountStore) FindByVerificationToken(ctx context.Context, token string) (*tenancy.Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where verification_token = $1`, token))
}

func (s *accountStore) List(ctx context.Context) ([]*tenancy.Account, error) {
	rows, err := s.db.QueryContext(ctx, `select `+accountColumns+` from accounts order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*tenancy.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *accountStore) SetDeactivated(ctx context.Context, id string, deactivated bool) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set deactivated = $2, updated_at = now() where id = $1`, id, deactivated)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *accountStore) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update accounts
		set email_verified_at = $2, verification_token = null, verification_token_expires_at = null,
			updated_at = now()
		where id = $1
	`, id, at)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *accountStore) SetVerificationToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update accounts
		set verification_token = $2, verification_token_expires_at = $3, updated_at = now()
		where id = $1
	`, id, token, expiresAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *accountStore) scanOne(row *sql.Row) (*tenancy.Account, error) {
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanAccount(row rowScanner) (*tenancy.Account, error) {
	var (
		a       tenancy.Account
		token   sql.NullString
		tokenAt sql.NullTime
		verAt   sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName,
		&a.Deactivated, &a.SuperAdmin, &verAt, &token, &tokenAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.VerificationToken = fromNull(token)
	if tokenAt.Valid {
		t := tokenAt.Time
		a.VerificationTokenExpiresAt = &t
	}
	if verAt.Valid {
		t := verAt.Time
		a.EmailVerifiedAt = &t
	}
	return &a, nil
}

func requireAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}
