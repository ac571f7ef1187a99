package pg

import (
	"context"
	"database/sql"
	"errors"

	"locumdesk.org/internal/tenancy"
)

type sessionStore struct{ db *sql.DB }

func (s *sessionStore) Create(ctx context.Context, sess *tenancy.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, account_id, user_agent, ip_address, created_at)
		values ($1, $2, $3, $4, $5)
	`, sess.ID, sess.AccountID, nullIfEmpty(sess.UserAgent), nullIfEmpty(sess.IPAddress), sess.CreatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *sessionStore) Find(ctx context.Context, id string) (*tenancy.Session, error) {
	var (
		sess      tenancy.Session
		userAgent sql.NullString
		ipAddress sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, account_id, user_agent, ip_address, created_at from sessions where id = $1
	`, id).Scan(&sess.ID, &sess.AccountID, &userAgent, &ipAddress, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.UserAgent = fromNull(userAgent)
	sess.IPAddress = fromNull(ipAddress)
	return &sess, nil
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from sessions where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *sessionStore) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where account_id = $1`, accountID)
	return err
}
