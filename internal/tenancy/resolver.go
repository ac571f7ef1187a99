package tenancy

import (
	"context"
	"errors"
)

// Permissions is the computed permission set for the current entity context.
type Permissions struct {
	CanManageUsers        bool `json:"can_manage_users"`
	CanDeleteOrganisation bool `json:"can_delete_organisation"`
	SuperAdmin            bool `json:"super_admin"`
}

// EntityContext is the request-scoped view of which organisation an account
// is acting within. It is a pure function of stored state plus the hint and
// is rebuilt on every request.
type EntityContext struct {
	Account    *Account        `json:"account"`
	Entity     *Organisation   `json:"entity,omitempty"`
	Membership *Membership     `json:"membership,omitempty"`
	Available  []*Organisation `json:"available_entities"`
}

// Valid reports whether the context resolved to a concrete organisation.
// An invalid ("empty") context is a legitimate resolver output, not an error.
func (c *EntityContext) Valid() bool {
	return c != nil && c.Account != nil && c.Entity != nil && c.Membership != nil
}

// Role returns the role in the current entity, empty when the context is empty.
func (c *EntityContext) Role() Role {
	if c == nil || c.Membership == nil {
		return ""
	}
	return c.Membership.Role
}

// Permissions computes the permission flags for the current context.
// SuperAdmin mirrors the account's global flag independently of the entity.
func (c *EntityContext) Permissions() Permissions {
	p := Permissions{}
	if c == nil {
		return p
	}
	if c.Membership != nil {
		p.CanManageUsers = c.Membership.CanManageUsers()
		p.CanDeleteOrganisation = c.Membership.CanDeleteOrganisation()
	}
	if c.Account != nil {
		p.SuperAdmin = c.Account.SuperAdmin
	}
	return p
}

// EntityID returns the resolved organisation id, empty for an empty context.
// Callers persist this back as the session hint after every resolution, which
// is safe because resolution is idempotent.
func (c *EntityContext) EntityID() string {
	if c == nil || c.Entity == nil {
		return ""
	}
	return c.Entity.ID
}

// ResolveContext computes the entity context for an account.
//
// If preferredEntityID names an organisation the account holds an accepted
// membership on and that organisation is active, it wins. Otherwise the first
// accepted membership on an active organisation (membership id order) is
// chosen silently; a stale or unauthorized hint auto-corrects instead of
// failing the request. When nothing qualifies the context is empty.
func (s *Service) ResolveContext(ctx context.Context, account *Account, preferredEntityID string) (*EntityContext, error) {
	ec := &EntityContext{Account: account}
	if account == nil {
		return ec, nil
	}
	memberships := s.store.Memberships()

	current, err := s.pickCurrent(ctx, account.ID, preferredEntityID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		ec.Membership = current.Membership
		ec.Entity = current.Entity
	}

	available, err := memberships.ListAcceptedActive(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	ec.Available = make([]*Organisation, 0, len(available))
	for _, me := range available {
		ec.Available = append(ec.Available, me.Entity)
	}
	return ec, nil
}

func (s *Service) pickCurrent(ctx context.Context, accountID, preferredEntityID string) (*MembershipEntity, error) {
	memberships := s.store.Memberships()
	if preferredEntityID != "" {
		me, err := memberships.AcceptedActive(ctx, accountID, preferredEntityID)
		if err == nil {
			return me, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// Stale hint: fall through to the deterministic default.
	}
	me, err := memberships.FirstAcceptedActive(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return me, nil
}

// SwitchContext validates a context switch to entityID. On success it returns
// the refreshed context and true; on failure the current state is untouched
// and ok is false.
func (s *Service) SwitchContext(ctx context.Context, account *Account, entityID string) (*EntityContext, bool, error) {
	if account == nil || entityID == "" {
		return nil, false, nil
	}
	_, err := s.store.Memberships().AcceptedActive(ctx, account.ID, entityID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	ec, err := s.ResolveContext(ctx, account, entityID)
	if err != nil {
		return nil, false, err
	}
	return ec, ec.Valid() && ec.Entity.ID == entityID, nil
}
