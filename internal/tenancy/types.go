package tenancy

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies an organisation. It is assigned at creation and never
// changes afterwards.
type Kind string

const (
	KindAgency Kind = "agency"
	KindClient Kind = "client"
	KindLocum  Kind = "locum"
)

var kindLabels = map[Kind]string{
	KindAgency: "Agency",
	KindClient: "Client",
	KindLocum:  "Locum",
}

// ParseKind maps a caller-supplied discriminator onto the closed kind set.
// Unrecognized values are rejected before anything is persisted.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindLabels[k]; !ok {
		return "", fmt.Errorf("%w: unknown organisation kind %q", ErrInvalidInput, s)
	}
	return k, nil
}

// Label returns the display form of the kind ("Agency", "Client", "Locum").
func (k Kind) Label() string { return kindLabels[k] }

// CanHaveMembers reports whether organisations of this kind may hold members
// beyond the founding owner. Locum profiles are single-person.
func (k Kind) CanHaveMembers() bool { return k != KindLocum }

// Role is the privilege level a membership carries within one organisation.
// Order of privilege: owner > admin > member.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

var roleRank = map[Role]int{RoleMember: 0, RoleAdmin: 1, RoleOwner: 2}

// ParseRole validates a role string against the full role set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}

// ParseAssignableRole validates a role that can be granted through an
// invitation or a role change. Owner is assigned exactly once, at
// organisation creation, and is never a valid target.
func ParseAssignableRole(s string) (Role, error) {
	r, err := ParseRole(s)
	if err != nil {
		return "", err
	}
	if r == RoleOwner {
		return "", fmt.Errorf("%w: role owner cannot be assigned", ErrInvalidInput)
	}
	return r, nil
}

// Rank returns the privilege order of the role.
func (r Role) Rank() int { return roleRank[r] }

// CanManageUsers reports whether the role may invite, remove, or re-role members.
func (r Role) CanManageUsers() bool { return r == RoleAdmin || r == RoleOwner }

// Account is a user record. One account can hold memberships in several
// organisations and acts within exactly one of them per request.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Deactivated  bool      `json:"deactivated"`
	SuperAdmin   bool      `json:"super_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	EmailVerifiedAt            *time.Time `json:"email_verified_at,omitempty"`
	VerificationToken          string     `json:"-"`
	VerificationTokenExpiresAt *time.Time `json:"-"`
}

// FullName joins first and last name for display.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// EmailVerified reports whether the account completed email verification.
func (a *Account) EmailVerified() bool { return a.EmailVerifiedAt != nil }

// VerificationTokenValid reports whether the stored token can still be redeemed.
func (a *Account) VerificationTokenValid(now time.Time) bool {
	return a.VerificationToken != "" &&
		a.VerificationTokenExpiresAt != nil &&
		a.VerificationTokenExpiresAt.After(now)
}

// NormalizeEmail lower-cases and trims an email address; emails are compared
// case-insensitively everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Organisation is a tenant unit. Kind is immutable; ParentID is only
// meaningful for client-kind organisations (parent client vs child client).
type Organisation struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	AddressLine1 string    `json:"address_line1,omitempty"`
	AddressLine2 string    `json:"address_line2,omitempty"`
	City         string    `json:"city,omitempty"`
	County       string    `json:"county,omitempty"`
	Postcode     string    `json:"postcode,omitempty"`
	Country      string    `json:"country,omitempty"`
	ParentID     string    `json:"parent_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName renders "{name} ({Kind})".
func (o *Organisation) DisplayName() string {
	return fmt.Sprintf("%s (%s)", o.Name, o.Kind.Label())
}

// CanHaveMembers reports whether members beyond the owner are allowed.
func (o *Organisation) CanHaveMembers() bool { return o.Kind.CanHaveMembers() }

// ParentClient reports whether this is a top-level client organisation.
func (o *Organisation) ParentClient() bool {
	return o.Kind == KindClient && o.ParentID == ""
}

// MemberRef identifies who a membership belongs to: either a linked account
// or an invited email address that no account has claimed yet. Exactly one of
// the two is set; the constructors are the only way to build a valid value.
type MemberRef struct {
	accountID string
	email     string
}

// LinkedMember builds a reference to an existing account.
func LinkedMember(accountID string) MemberRef {
	return MemberRef{accountID: accountID}
}

// InvitedMember builds a reference to an email address without an account.
func InvitedMember(email string) MemberRef {
	return MemberRef{email: NormalizeEmail(email)}
}

// Linked reports whether the reference points at an account.
func (r MemberRef) Linked() bool { return r.accountID != "" }

// AccountID returns the linked account id, empty for unlinked invitations.
func (r MemberRef) AccountID() string { return r.accountID }

// Email returns the invited email, empty once the membership is linked.
func (r MemberRef) Email() string { return r.email }

// Valid reports whether exactly one side of the union is populated.
func (r MemberRef) Valid() bool {
	return (r.accountID != "") != (r.email != "")
}

// InviteState is the live state of a membership's invitation lifecycle.
type InviteState string

const (
	StatePendingUnlinked InviteState = "pending-unlinked"
	StatePendingLinked   InviteState = "pending-linked"
	StateAccepted        InviteState = "accepted"
)

// Membership joins an account (or an invited email) to an organisation with a
// role. At most one membership exists per (account, organisation) pair and
// per (invited email, organisation) pair.
type Membership struct {
	ID             string    `json:"id"`
	EntityID       string    `json:"entity_id"`
	Member         MemberRef `json:"-"`
	Role           Role      `json:"role"`
	InviteAccepted bool      `json:"invite_accepted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// State derives the invitation lifecycle state.
func (m *Membership) State() InviteState {
	switch {
	case m.InviteAccepted:
		return StateAccepted
	case m.Member.Linked():
		return StatePendingLinked
	default:
		return StatePendingUnlinked
	}
}

// Pending reports whether the invitation has not been accepted yet.
func (m *Membership) Pending() bool { return !m.InviteAccepted }

// CanManageUsers reports whether the membership's role may manage members.
func (m *Membership) CanManageUsers() bool { return m.Role.CanManageUsers() }

// CanDeleteOrganisation reports whether the membership may deactivate the
// organisation. Owner only.
func (m *Membership) CanDeleteOrganisation() bool { return m.Role == RoleOwner }

// Session is a persisted login session. It is destroyed on logout or as soon
// as the owning account is found deactivated.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberView is the display projection of a membership used by member lists.
type MemberView struct {
	ID             string `json:"id"`
	Role           Role   `json:"role"`
	InviteAccepted bool   `json:"invite_accepted"`
	PendingInvite  bool   `json:"pending_invite"`
	DisplayName    string `json:"display_name"`
	DisplayEmail   string `json:"display_email"`
}

// NewMemberView builds the projection. account may be nil for unlinked
// invitations; the invited email then stands in for the name.
func NewMemberView(m *Membership, account *Account) MemberView {
	view := MemberView{
		ID:             m.ID,
		Role:           m.Role,
		InviteAccepted: m.InviteAccepted,
		PendingInvite:  !m.InviteAccepted && !m.Member.Linked(),
	}
	if account != nil {
		view.DisplayName = account.FullName()
		view.DisplayEmail = account.Email
	} else {
		view.DisplayName = m.Member.Email()
		view.DisplayEmail = m.Member.Email()
	}
	return view
}

// PendingInvite is a pending membership together with its organisation,
// surfaced to the signed-in account so it can accept or decline.
type PendingInvite struct {
	MembershipID string `json:"id"`
	Role         Role   `json:"role"`
	EntityID     string `json:"entity_id"`
	EntityName   string `json:"entity_name"`
	EntityKind   Kind   `json:"entity_kind"`
}
