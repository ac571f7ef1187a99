package tenancy

import "errors"

var (
	ErrNotFound     = errors.New("tenancy: not found")
	ErrConflict     = errors.New("tenancy: conflict")
	ErrInvalidInput = errors.New("tenancy: invalid input")

	// ErrUnauthenticated means no valid session; the caller should start a
	// login flow.
	ErrUnauthenticated = errors.New("tenancy: unauthenticated")

	// ErrAccountDeactivated is surfaced to callers like ErrUnauthenticated but
	// additionally signals that the session was destroyed on the way out.
	ErrAccountDeactivated = errors.New("tenancy: account deactivated")

	// ErrEntityAccessDenied means the account holds no accepted membership on
	// the requested organisation.
	ErrEntityAccessDenied = errors.New("tenancy: entity access denied")

	// ErrInvitationConflict means a membership or pending invitation already
	// exists for the email/organisation pair.
	ErrInvitationConflict = errors.New("tenancy: invitation already exists")

	// ErrIneligibleKind means the organisation kind does not admit members.
	ErrIneligibleKind = errors.New("tenancy: organisation kind cannot have members")

	// ErrOwnerProtected guards the owner membership and self-targeted admin
	// mutations: owner removal, owner role change, changing one's own role,
	// and an admin removing themself.
	ErrOwnerProtected = errors.New("tenancy: owner protected")

	// ErrDeactivationBlocked means organisation deactivation preconditions
	// failed: requester is not the owner, or other accepted members remain.
	ErrDeactivationBlocked = errors.New("tenancy: deactivation blocked")

	// ErrPermissionDenied means the acting membership lacks the role required
	// for the operation.
	ErrPermissionDenied = errors.New("tenancy: permission denied")
)
