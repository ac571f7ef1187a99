package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"locumdesk.org/internal/ids"
)

const defaultVerificationTTL = 24 * time.Hour

// Service provides the tenancy core operations: the authentication gate,
// entity-context resolution, the membership/invitation state machine, and
// organisation lifecycle rules.
type Service struct {
	store    Store
	verifier CredentialVerifier
	mailer   Mailer
	now      func() time.Time

	requireVerifiedEmail bool
	verificationTTL      time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithCredentialVerifier replaces the default bcrypt verifier.
func WithCredentialVerifier(v CredentialVerifier) ServiceOption {
	return func(s *Service) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithMailer sets the outbound mail trigger. Delivery is fire-and-forget.
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.mailer = m
		}
	}
}

// WithRequireVerifiedEmail toggles the secondary verification gate. When
// enabled, authenticated-but-unverified accounts are steered to a
// verification step rather than hard-failing authentication.
func WithRequireVerifiedEmail(require bool) ServiceOption {
	return func(s *Service) { s.requireVerifiedEmail = require }
}

// WithVerificationTTL overrides the email-verification token lifetime.
func WithVerificationTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.verificationTTL = ttl
		}
	}
}

// NewService constructs the core service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("tenancy: store is required")
	}
	s := &Service{
		store:           store,
		verifier:        BcryptVerifier{},
		mailer:          NopMailer{},
		now:             time.Now,
		verificationTTL: defaultVerificationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequireVerifiedEmail reports whether the verification gate is enabled.
func (s *Service) RequireVerifiedEmail() bool { return s.requireVerifiedEmail }

// Signup creates an account with a fresh email-verification token and
// triggers the verification mail.
func (s *Service) Signup(ctx context.Context, email, password, firstName, lastName string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email address is required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	expires := now.Add(s.verificationTTL)
	account := &Account{
		ID:                         ids.New(),
		Email:                      email,
		PasswordHash:               hash,
		FirstName:                  firstName,
		LastName:                   lastName,
		VerificationToken:          newVerificationToken(),
		VerificationTokenExpiresAt: &expires,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if err := s.store.Accounts().Create(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: an account with that email already exists", ErrConflict)
		}
		return nil, err
	}
	s.mailer.SendVerification(ctx, account)
	return account, nil
}

// Authenticate checks credentials and, on success, links any unlinked
// invitations addressed to the account's email. The linked count is reported
// for display; linking never advances an invitation to accepted.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, int, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, 0, ErrUnauthenticated
	}
	account, err := s.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, 0, ErrUnauthenticated
		}
		return nil, 0, err
	}
	if account.Deactivated {
		return nil, 0, ErrUnauthenticated
	}
	if !s.verifier.Verify(account.PasswordHash, password) {
		return nil, 0, ErrUnauthenticated
	}
	linked, err := s.store.Memberships().LinkPendingByEmail(ctx, account.ID, account.Email)
	if err != nil {
		return nil, 0, err
	}
	return account, linked, nil
}

// StartSession persists a session for an authenticated account.
func (s *Service) StartSession(ctx context.Context, account *Account, userAgent, ipAddress string) (*Session, error) {
	if account == nil {
		return nil, ErrUnauthenticated
	}
	session := &Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ResolveSession is the authentication gate: it validates the session id and
// returns the owning account.
//
// The account is loaded bypassing the "not deactivated" default filter so a
// deactivated account is rejected explicitly. On that path the session is
// destroyed first; a failure to destroy it is reported instead of success so
// the caller never clears the client token while the session survives.
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (*Account, error) {
	if sessionID == "" {
		return nil, ErrUnauthenticated
	}
	session, err := s.store.Sessions().Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	account, err := s.store.Accounts().FindAny(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if account.Deactivated {
		if err := s.store.Sessions().Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, ErrAccountDeactivated
	}
	return account, nil
}

// DestroySession terminates a session (logout).
func (s *Service) DestroySession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := s.store.Sessions().Delete(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// VerifyEmail redeems a verification token: stamps the verification time and
// clears the token fields.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: verification token is required", ErrInvalidInput)
	}
	account, err := s.store.Accounts().FindByVerificationToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !account.VerificationTokenValid(s.now().UTC()) {
		return nil, fmt.Errorf("%w: verification token expired", ErrInvalidInput)
	}
	at := s.now().UTC()
	if err := s.store.Accounts().MarkEmailVerified(ctx, account.ID, at); err != nil {
		return nil, err
	}
	account.EmailVerifiedAt = &at
	account.VerificationToken = ""
	account.VerificationTokenExpiresAt = nil
	return account, nil
}

// RegenerateVerification issues a fresh verification token and re-sends the
// verification mail.
func (s *Service) RegenerateVerification(ctx context.Context, account *Account) error {
	if account == nil {
		return ErrUnauthenticated
	}
	if account.EmailVerified() {
		return fmt.Errorf("%w: email is already verified", ErrInvalidInput)
	}
	token := newVerificationToken()
	expires := s.now().UTC().Add(s.verificationTTL)
	if err := s.store.Accounts().SetVerificationToken(ctx, account.ID, token, expires); err != nil {
		return err
	}
	account.VerificationToken = token
	account.VerificationTokenExpiresAt = &expires
	s.mailer.SendVerification(ctx, account)
	return nil
}

// ListAccounts returns every account. Super-admin surface.
func (s *Service) ListAccounts(ctx context.Context, actor *Account) ([]*Account, error) {
	if actor == nil || !actor.SuperAdmin {
		return nil, ErrPermissionDenied
	}
	return s.store.Accounts().List(ctx)
}

// GetAccount loads one account, including deactivated ones. Super-admin surface.
func (s *Service) GetAccount(ctx context.Context, actor *Account, id string) (*Account, error) {
	if actor == nil || !actor.SuperAdmin {
		return nil, ErrPermissionDenied
	}
	return s.store.Accounts().FindAny(ctx, id)
}

// SetAccountDeactivated flips the deactivation flag. A super-admin account
// can never be deactivated; deactivating destroys the account's sessions.
func (s *Service) SetAccountDeactivated(ctx context.Context, actor *Account, id string, deactivated bool) error {
	if actor == nil || !actor.SuperAdmin {
		return ErrPermissionDenied
	}
	target, err := s.store.Accounts().FindAny(ctx, id)
	if err != nil {
		return err
	}
	if deactivated && target.SuperAdmin {
		return fmt.Errorf("%w: super admin accounts cannot be deactivated", ErrInvalidInput)
	}
	if err := s.store.Accounts().SetDeactivated(ctx, id, deactivated); err != nil {
		return err
	}
	if deactivated {
		return s.store.Sessions().DeleteByAccount(ctx, id)
	}
	return nil
}

func newVerificationToken() string {
	// uuid is opaque and unguessable enough for a single-use, expiring token.
	return uuid.NewString()
}
