package pg

import (
	"context"
	"database/sql"
	"errors"

	"locumdesk.org/internal/tenancy"
)

type membershipStore struct{ db *sql.DB }

const membershipColumns = `m.id, m.entity_id, m.account_id, m.invited_email, m.role, m.invite_accepted, m.created_at, m.updated_at`

func (s *membershipStore) Create(ctx context.Context, m *tenancy.Membership) error {
	_, err := s.db.ExecContext(ctx, `
		insert into memberships (id, entity_id, account_id, invited_email, role, invite_accepted, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.EntityID, nullIfEmpty(m.Member.AccountID()), nullIfEmpty(m.Member.Email()),
		string(m.Role), m.InviteAccepted, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *membershipStore) Find(ctx context.Context, id string) (*tenancy.Membership, error) {
	return s.one(s.db.QueryRowContext(ctx,
		`select `+membershipColumns+` from memberships m where m.id = $1`, id))
}

func (s *membershipStore) FindByAccountAndEntity(ctx context.Context, accountID, entityID string) (*tenancy.Membership, error) {
	return s.one(s.db.QueryRowContext(ctx,
		`select `+membershipColumns+` from memberships m where m.account_id = $1 and m.entity_id = $2`,
		accountID, entityID))
}

func (s *membershipStore) FindByEmailAndEntity(ctx context.Context, email, entityID string) (*tenancy.Membership, error) {
	return s.one(s.db.QueryRowContext(ctx,
		`select `+membershipColumns+` from memberships m where m.invited_email = $1 and m.entity_id = $2`,
		email, entityID))
}

const membershipEntityColumns = membershipColumns + `, ` + `o.id, o.kind, o.name, o.email, o.phone,
	o.address_line1, o.address_line2, o.city, o.county, o.postcode, o.country, o.parent_id,
	o.active, o.created_at, o.updated_at`

func (s *membershipStore) AcceptedActive(ctx context.Context, accountID, entityID string) (*tenancy.MembershipEntity, error) {
	return s.oneJoined(s.db.QueryRowContext(ctx, `
		select `+membershipEntityColumns+`
		from memberships m
		join organisations o on o.id = m.entity_id
		where m.account_id = $1 and m.entity_id = $2 and m.invite_accepted and o.active
	`, accountID, entityID))
}

func (s *membershipStore) FirstAcceptedActive(ctx context.Context, accountID string) (*tenancy.MembershipEntity, error) {
	return s.oneJoined(s.db.QueryRowContext(ctx, `
		select `+membershipEntityColumns+`
		from memberships m
		join organisations o on o.id = m.entity_id
		where m.account_id = $1 and m.invite_accepted and o.active
		order by m.id asc
		limit 1
	`, accountID))
}

func (s *membershipStore) ListAcceptedActive(ctx context.Context, accountID string) ([]tenancy.MembershipEntity, error) {
	return s.listJoined(ctx, `
		select `+membershipEntityColumns+`
		from memberships m
		join organisations o on o.id = m.entity_id
		where m.account_id = $1 and m.invite_accepted and o.active
		order by m.id asc
	`, accountID)
}

func (s *membershipStore) ListPendingForAccount(ctx context.Context, accountID string) ([]tenancy.MembershipEntity, error) {
	return s.listJoined(ctx, `
		select `+membershipEntityColumns+`
		from memberships m
		join organisations o on o.id = m.entity_id
		where m.account_id = $1 and not m.invite_accepted and o.active
		order by m.id asc
	`, accountID)
}

func (s *membershipStore) ListByEntity(ctx context.Context, entityID string) ([]*tenancy.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+membershipColumns+` from memberships m where m.entity_id = $1 order by m.id asc`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*tenancy.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *membershipStore) LinkPendingByEmail(ctx context.Context, accountID, email string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		update memberships
		set account_id = $1, invited_email = null, updated_at = now()
		where invited_email = $2 and account_id is null and not invite_accepted
	`, accountID, email)
	if err != nil {
		return 0, mapWriteError(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(aff), nil
}

func (s *membershipStore) Accept(ctx context.Context, id, accountID string) error {
	res, err := s.db.ExecContext(ctx, `
		update memberships
		set invite_accepted = true, invited_email = null, updated_at = now()
		where id = $1 and account_id = $2 and not invite_accepted
	`, id, accountID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *membershipStore) DeletePending(ctx context.Context, id, accountID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from memberships where id = $1 and account_id = $2 and not invite_accepted`, id, accountID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *membershipStore) DeleteNonOwner(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from memberships where id = $1 and role <> 'owner'`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return s.guardFailure(ctx, id)
	}
	return nil
}

func (s *membershipStore) UpdateRoleNonOwner(ctx context.Context, id string, role tenancy.Role) error {
	res, err := s.db.ExecContext(ctx,
		`update memberships set role = $2, updated_at = now() where id = $1 and role <> 'owner'`,
		id, string(role))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return s.guardFailure(ctx, id)
	}
	return nil
}

// guardFailure distinguishes "row is the owner" from "row is gone" after a
// role-guarded statement touched nothing.
func (s *membershipStore) guardFailure(ctx context.Context, id string) error {
	var role string
	err := s.db.QueryRowContext(ctx, `select role from memberships where id = $1`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return tenancy.ErrNotFound
	}
	if err != nil {
		return err
	}
	if role == string(tenancy.RoleOwner) {
		return tenancy.ErrOwnerProtected
	}
	return tenancy.ErrNotFound
}

func (s *membershipStore) CountOtherAccepted(ctx context.Context, entityID, exceptAccountID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*)
		from memberships
		where entity_id = $1 and invite_accepted and (account_id is null or account_id <> $2)
	`, entityID, exceptAccountID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *membershipStore) one(row *sql.Row) (*tenancy.Membership, error) {
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *membershipStore) oneJoined(row *sql.Row) (*tenancy.MembershipEntity, error) {
	me, err := scanMembershipEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return me, nil
}

func (s *membershipStore) listJoined(ctx context.Context, query string, args ...any) ([]tenancy.MembershipEntity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []tenancy.MembershipEntity
	for rows.Next() {
		me, err := scanMembershipEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *me)
	}
	return result, rows.Err()
}

func scanMembershipFields(row rowScanner, extra ...any) (*tenancy.Membership, error) {
	var (
		m            tenancy.Membership
		accountID    sql.NullString
		invitedEmail sql.NullString
		role         string
	)
	dest := []any{&m.ID, &m.EntityID, &accountID, &invitedEmail, &role, &m.InviteAccepted, &m.CreatedAt, &m.UpdatedAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	m.Role = tenancy.Role(role)
	if accountID.Valid {
		m.Member = tenancy.LinkedMember(accountID.String)
	} else {
		m.Member = tenancy.InvitedMember(fromNull(invitedEmail))
	}
	return &m, nil
}

func scanMembership(row rowScanner) (*tenancy.Membership, error) {
	return scanMembershipFields(row)
}

func scanMembershipEntity(row rowScanner) (*tenancy.MembershipEntity, error) {
	var (
		org                                     tenancy.Organisation
		kind                                    string
		email, phone, addr1, addr2              sql.NullString
		city, county, postcode, country, parent sql.NullString
	)
	m, err := scanMembershipFields(row,
		&org.ID, &kind, &org.Name, &email, &phone, &addr1, &addr2,
		&city, &county, &postcode, &country, &parent, &org.Active, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	org.Kind = tenancy.Kind(kind)
	org.Email = fromNull(email)
	org.Phone = fromNull(phone)
	org.AddressLine1 = fromNull(addr1)
	org.AddressLine2 = fromNull(addr2)
	org.City = fromNull(city)
	org.County = fromNull(county)
	org.Postcode = fromNull(postcode)
	org.Country = fromNull(country)
	org.ParentID = fromNull(parent)
	return &tenancy.MembershipEntity{Membership: m, Entity: &org}, nil
}
