package tenancy

import (
	"context"
	"errors"
	"fmt"

	"locumdesk.org/internal/ids"
)

// InviteResult is the uniform outcome of an invitation attempt. Err is nil on
// success and one of the tenancy sentinels otherwise; Message is always a
// human-readable explanation suitable for display.
type InviteResult struct {
	Membership *Membership
	Message    string
	Err        error
}

// OK reports whether the invitation was created.
func (r InviteResult) OK() bool { return r.Err == nil }

func inviteFailure(err error, message string) InviteResult {
	return InviteResult{Message: message, Err: err}
}

// InviteMember validates and creates an invitation to an organisation.
//
// Validation order: inviter authorization, email presence, organisation-kind
// eligibility, duplicate membership or pending invitation. If an account with
// the email already exists but holds no membership, the new membership links
// to it immediately while remaining unaccepted; otherwise it is created
// unlinked, addressed to the email.
func (s *Service) InviteMember(ctx context.Context, inviter *Account, org *Organisation, email, role string) (InviteResult, error) {
	if inviter == nil || org == nil {
		return inviteFailure(ErrUnauthenticated, "Sign in to invite members"), nil
	}
	inviterMembership, err := s.acceptedMembership(ctx, inviter.ID, org.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return InviteResult{}, err
	}
	if inviterMembership == nil || !inviterMembership.CanManageUsers() {
		return inviteFailure(ErrPermissionDenied, "You don't have permission to invite members"), nil
	}

	email = NormalizeEmail(email)
	if email == "" {
		return inviteFailure(ErrInvalidInput, "Email address is required"), nil
	}
	if !org.CanHaveMembers() {
		return inviteFailure(ErrIneligibleKind, "Locum profiles cannot have additional members"), nil
	}

	assignedRole := RoleMember
	if role != "" {
		assignedRole, err = ParseAssignableRole(role)
		if err != nil {
			return inviteFailure(ErrInvalidInput, fmt.Sprintf("%q is not a valid role", role)), nil
		}
	}

	accounts := s.store.Accounts()
	memberships := s.store.Memberships()

	invitee, err := accounts.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return InviteResult{}, err
	}
	if invitee != nil {
		existing, err := memberships.FindByAccountAndEntity(ctx, invitee.ID, org.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return InviteResult{}, err
		}
		if existing != nil {
			if existing.InviteAccepted {
				return inviteFailure(ErrInvitationConflict,
					fmt.Sprintf("%s is already a member of this organisation", email)), nil
			}
			return inviteFailure(ErrInvitationConflict,
				fmt.Sprintf("%s already has a pending invitation", email)), nil
		}
	}
	if existing, err := memberships.FindByEmailAndEntity(ctx, email, org.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return InviteResult{}, err
	} else if existing != nil {
		return inviteFailure(ErrInvitationConflict,
			fmt.Sprintf("%s already has a pending invitation", email)), nil
	}

	member := InvitedMember(email)
	if invitee != nil {
		member = LinkedMember(invitee.ID)
	}
	now := s.now().UTC()
	invitation := &Membership{
		ID:        ids.New(),
		EntityID:  org.ID,
		Member:    member,
		Role:      assignedRole,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := memberships.Create(ctx, invitation); err != nil {
		// A racing invite loses on the uniqueness constraint.
		if errors.Is(err, ErrConflict) {
			return inviteFailure(ErrInvitationConflict,
				fmt.Sprintf("%s already has a pending invitation", email)), nil
		}
		return InviteResult{}, err
	}
	s.mailer.SendInvitation(ctx, email, org)
	return InviteResult{
		Membership: invitation,
		Message:    fmt.Sprintf("Invitation sent to %s", email),
	}, nil
}
