package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"locumdesk.org/internal/tenancy"
)

type organisationStore struct{ db *sql.DB }

const organisationColumns = `id, kind, name, email, phone, address_line1, address_line2,
	city, county, postcode, country, parent_id, active, created_at, updated_at`

func (s *organisationStore) CreateWithOwner(ctx context.Context, org *tenancy.Organisation, owner *tenancy.Membership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into organisations (id, kind, name, email, phone, address_line1, address_line2,
			city, county, postcode, country, parent_id, active, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, org.ID, string(org.Kind), org.Name, nullIfEmpty(org.Email), nullIfEmpty(org.Phone),
		nullIfEmpty(org.AddressLine1), nullIfEmpty(org.AddressLine2), nullIfEmpty(org.City),
		nullIfEmpty(org.County), nullIfEmpty(org.Postcode), nullIfEmpty(org.Country),
		nullIfEmpty(org.ParentID), org.Active, org.CreatedAt, org.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		insert into memberships (id, entity_id, account_id, invited_email, role, invite_accepted, created_at, updated_at)
		values ($1, $2, $3, null, $4, true, $5, $6)
	`, owner.ID, owner.EntityID, owner.Member.AccountID(), string(owner.Role),
		owner.CreatedAt, owner.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	return tx.Commit()
}

func (s *organisationStore) Find(ctx context.Context, id string) (*tenancy.Organisation, error) {
	org, err := scanOrganisation(s.db.QueryRowContext(ctx,
		`select `+organisationColumns+` from organisations where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (s *organisationStore) Update(ctx context.Context, id string, upd tenancy.OrganisationUpdate) (*tenancy.Organisation, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	set := func(column string, value *string) {
		if value == nil {
			return
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, nullIfEmpty(*value))
		idx++
	}
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	set("email", upd.Email)
	set("phone", upd.Phone)
	set("address_line1", upd.AddressLine1)
	set("address_line2", upd.AddressLine2)
	set("city", upd.City)
	set("county", upd.County)
	set("postcode", upd.Postcode)
	set("country", upd.Country)

	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update organisations set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, mapWriteError(err)
		}
		if err := requireAffected(res); err != nil {
			return nil, err
		}
	}
	return s.Find(ctx, id)
}

func (s *organisationStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update organisations set active = false, updated_at = now() where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanOrganisation(row rowScanner) (*tenancy.Organisation, error) {
	var (
		org                                             tenancy.Organisation
		kind                                            string
		email, phone, addr1, addr2                      sql.NullString
		city, county, postcode, country, parent         sql.NullString
	)
	if err := row.Scan(&org.ID, &kind, &org.Name, &email, &phone, &addr1, &addr2,
		&city, &county, &postcode, &country, &parent, &org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
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
	return &org, nil
}
