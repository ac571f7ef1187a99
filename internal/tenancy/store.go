package tenancy

import (
	"context"
	"time"
)

// Store describes persistence required by the tenancy core.
type Store interface {
	Accounts() AccountStore
	Organisations() OrganisationStore
	Memberships() MembershipStore
	Sessions() SessionStore
}

// AccountStore manages account records.
//
// Find applies the default "not deactivated" filter; FindAny bypasses it so
// the authentication gate can load a deactivated account and reject it
// explicitly instead of treating it as nonexistent.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	FindAny(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByVerificationToken(ctx context.Context, token string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	SetDeactivated(ctx context.Context, id string, deactivated bool) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	SetVerificationToken(ctx context.Context, id, token string, expiresAt time.Time) error
}

// OrganisationUpdate carries optional field updates. Kind and parent are
// deliberately absent: both are immutable after creation.
type OrganisationUpdate struct {
	Name         *string
	Email        *string
	Phone        *string
	AddressLine1 *string
	AddressLine2 *string
	City         *string
	County       *string
	Postcode     *string
	Country      *string
}

// OrganisationStore manages organisation records.
type OrganisationStore interface {
	// CreateWithOwner persists the organisation and its founding owner
	// membership atomically.
	CreateWithOwner(ctx context.Context, org *Organisation, owner *Membership) error
	Find(ctx context.Context, id string) (*Organisation, error)
	Update(ctx context.Context, id string, upd OrganisationUpdate) (*Organisation, error)
	Deactivate(ctx context.Context, id string) error
}

// MembershipEntity pairs a membership with its organisation for queries that
// join the two.
type MembershipEntity struct {
	Membership *Membership
	Entity     *Organisation
}

// MembershipStore manages membership rows and enforces the state machine's
// storage-level guards. Mutations re-check role and ownership inside the
// statement itself so concurrent changes cannot bypass the invariants;
// the (account, entity) and (email, entity) uniqueness constraints double as
// the concurrency guard for racing creates.
type MembershipStore interface {
	Create(ctx context.Context, m *Membership) error
	Find(ctx context.Context, id string) (*Membership, error)
	FindByAccountAndEntity(ctx context.Context, accountID, entityID string) (*Membership, error)
	FindByEmailAndEntity(ctx context.Context, email, entityID string) (*Membership, error)

	// AcceptedActive returns the accepted membership on an active
	// organisation, ErrNotFound otherwise.
	AcceptedActive(ctx context.Context, accountID, entityID string) (*MembershipEntity, error)
	// FirstAcceptedActive returns the account's first accepted membership on
	// an active organisation, in membership id order.
	FirstAcceptedActive(ctx context.Context, accountID string) (*MembershipEntity, error)
	// ListAcceptedActive lists all of them, in membership id order.
	ListAcceptedActive(ctx context.Context, accountID string) ([]MembershipEntity, error)
	ListPendingForAccount(ctx context.Context, accountID string) ([]MembershipEntity, error)
	ListByEntity(ctx context.Context, entityID string) ([]*Membership, error)

	// LinkPendingByEmail attaches every unlinked invitation addressed to the
	// email to the account and reports how many rows were linked.
	LinkPendingByEmail(ctx context.Context, accountID, email string) (int, error)
	// Accept flips invite_accepted on a pending membership owned by the
	// account. ErrNotFound when no such pending row exists.
	Accept(ctx context.Context, id, accountID string) error
	// DeletePending removes a pending membership owned by the account.
	DeletePending(ctx context.Context, id, accountID string) error
	// DeleteNonOwner removes the membership unless its current role is owner.
	DeleteNonOwner(ctx context.Context, id string) error
	// UpdateRoleNonOwner changes the role unless the current role is owner.
	UpdateRoleNonOwner(ctx context.Context, id string, role Role) error
	// CountOtherAccepted counts accepted memberships on the entity held by
	// accounts other than the given one.
	CountOtherAccepted(ctx context.Context, entityID, exceptAccountID string) (int, error)
}

// SessionStore manages login sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByAccount(ctx context.Context, accountID string) error
}
