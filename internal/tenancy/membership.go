package tenancy

import (
	"context"
	"errors"
	"fmt"
)

// AcceptInvite marks a pending membership of the account as accepted and
// returns the refreshed membership. Only the owning account may accept, and
// only while the invitation is still pending; callers should switch the
// account's entity hint to the joined organisation afterwards.
func (s *Service) AcceptInvite(ctx context.Context, account *Account, membershipID string) (*Membership, error) {
	if account == nil {
		return nil, ErrUnauthenticated
	}
	memberships := s.store.Memberships()
	if err := memberships.Accept(ctx, membershipID, account.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: invitation not found or already processed", ErrNotFound)
		}
		return nil, err
	}
	return memberships.Find(ctx, membershipID)
}

// DeclineInvite deletes a pending membership of the account.
func (s *Service) DeclineInvite(ctx context.Context, account *Account, membershipID string) error {
	if account == nil {
		return ErrUnauthenticated
	}
	err := s.store.Memberships().DeletePending(ctx, membershipID, account.ID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: invitation not found or already processed", ErrNotFound)
	}
	return err
}

// RemoveMember removes a membership from an organisation.
//
// The owner can never be removed. A member may remove themself; an admin may
// not, and is only removable by a peer admin or the owner. Anyone holding
// admin/owner may remove any non-owner other than themself.
func (s *Service) RemoveMember(ctx context.Context, actor *Account, entityID, membershipID string) (*Membership, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	memberships := s.store.Memberships()

	target, err := memberships.Find(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if target.EntityID != entityID {
		return nil, ErrNotFound
	}

	actorMembership, err := s.acceptedMembership(ctx, actor.ID, entityID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	removingSelf := target.Member.Linked() && target.Member.AccountID() == actor.ID

	canRemove := (actorMembership != nil && actorMembership.CanManageUsers()) || removingSelf
	if !canRemove {
		return nil, fmt.Errorf("%w: you do not have permission to remove members", ErrPermissionDenied)
	}
	if target.Role == RoleOwner {
		return nil, fmt.Errorf("%w: the organisation owner cannot be removed", ErrOwnerProtected)
	}
	if removingSelf && target.Role == RoleAdmin {
		return nil, fmt.Errorf("%w: admins cannot remove themselves from the organisation", ErrOwnerProtected)
	}

	// The delete re-checks the role so a concurrent promotion to owner
	// cannot slip past the check above.
	if err := memberships.DeleteNonOwner(ctx, membershipID); err != nil {
		if errors.Is(err, ErrOwnerProtected) {
			return nil, fmt.Errorf("%w: the organisation owner cannot be removed", ErrOwnerProtected)
		}
		return nil, err
	}
	return target, nil
}

// ChangeMemberRole moves a member between the member and admin roles.
// The owner role can never be granted or taken away, and nobody changes
// their own role.
func (s *Service) ChangeMemberRole(ctx context.Context, actor *Account, entityID, membershipID string, newRole Role) (*Membership, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if newRole != RoleMember && newRole != RoleAdmin {
		return nil, fmt.Errorf("%w: role must be member or admin", ErrInvalidInput)
	}
	actorMembership, err := s.acceptedMembership(ctx, actor.ID, entityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: you do not have permission to change member roles", ErrPermissionDenied)
		}
		return nil, err
	}
	if !actorMembership.CanManageUsers() {
		return nil, fmt.Errorf("%w: you do not have permission to change member roles", ErrPermissionDenied)
	}

	memberships := s.store.Memberships()
	target, err := memberships.Find(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if target.EntityID != entityID {
		return nil, ErrNotFound
	}
	if target.Role == RoleOwner {
		return nil, fmt.Errorf("%w: the owner's role cannot be changed", ErrOwnerProtected)
	}
	if target.Member.Linked() && target.Member.AccountID() == actor.ID {
		return nil, fmt.Errorf("%w: you cannot change your own role", ErrOwnerProtected)
	}

	if err := memberships.UpdateRoleNonOwner(ctx, membershipID, newRole); err != nil {
		if errors.Is(err, ErrOwnerProtected) {
			return nil, fmt.Errorf("%w: the owner's role cannot be changed", ErrOwnerProtected)
		}
		return nil, err
	}
	target.Role = newRole
	return target, nil
}

// ListMembers returns the member display projections for an organisation.
// Any membership on the organisation grants visibility.
func (s *Service) ListMembers(ctx context.Context, actor *Account, entityID string) ([]MemberView, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	memberships := s.store.Memberships()
	if _, err := memberships.FindByAccountAndEntity(ctx, actor.ID, entityID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: you do not have access to that organisation", ErrEntityAccessDenied)
		}
		return nil, err
	}
	rows, err := memberships.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	accounts := s.store.Accounts()
	views := make([]MemberView, 0, len(rows))
	for _, m := range rows {
		var account *Account
		if m.Member.Linked() {
			account, err = accounts.FindAny(ctx, m.Member.AccountID())
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
		views = append(views, NewMemberView(m, account))
	}
	return views, nil
}

// ListPendingInvites returns the account's pending invitations with their
// organisations, for the accept/decline surface.
func (s *Service) ListPendingInvites(ctx context.Context, account *Account) ([]PendingInvite, error) {
	if account == nil {
		return nil, ErrUnauthenticated
	}
	rows, err := s.store.Memberships().ListPendingForAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	invites := make([]PendingInvite, 0, len(rows))
	for _, me := range rows {
		invites = append(invites, PendingInvite{
			MembershipID: me.Membership.ID,
			Role:         me.Membership.Role,
			EntityID:     me.Entity.ID,
			EntityName:   me.Entity.Name,
			EntityKind:   me.Entity.Kind,
		})
	}
	return invites, nil
}

func (s *Service) acceptedMembership(ctx context.Context, accountID, entityID string) (*Membership, error) {
	m, err := s.store.Memberships().FindByAccountAndEntity(ctx, accountID, entityID)
	if err != nil {
		return nil, err
	}
	if !m.InviteAccepted {
		return nil, ErrNotFound
	}
	return m, nil
}
