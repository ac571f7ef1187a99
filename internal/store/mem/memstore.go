// Package mem provides an in-memory tenancy.Store. It backs the test suites
// and DSN-less development runs; durability is out of its scope.
package mem

import (
	"context"
	"sort"
	"sync"
	"time"

	"locumdesk.org/internal/tenancy"
)

// Store is a mutex-guarded in-memory implementation of tenancy.Store. It
// enforces the same uniqueness constraints the SQL schema does, so racing
// creates fail with tenancy.ErrConflict here too.
type Store struct {
	mu            sync.RWMutex
	accounts      map[string]*tenancy.Account
	organisations map[string]*tenancy.Organisation
	memberships   map[string]*tenancy.Membership
	sessions      map[string]*tenancy.Session
}

var _ tenancy.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:      make(map[string]*tenancy.Account),
		organisations: make(map[string]*tenancy.Organisation),
		memberships:   make(map[string]*tenancy.Membership),
		sessions:      make(map[string]*tenancy.Session),
	}
}

func (s *Store) Accounts() tenancy.AccountStore           { return (*accountStore)(s) }
func (s *Store) Organisations() tenancy.OrganisationStore { return (*organisationStore)(s) }
func (s *Store) Memberships() tenancy.MembershipStore     { return (*membershipStore)(s) }
func (s *Store) Sessions() tenancy.SessionStore           { return (*sessionStore)(s) }

func cloneAccount(a *tenancy.Account) *tenancy.Account {
	cp := *a
	if a.EmailVerifiedAt != nil {
		t := *a.EmailVerifiedAt
		cp.EmailVerifiedAt = &t
	}
	if a.VerificationTokenExpiresAt != nil {
		t := *a.VerificationTokenExpiresAt
		cp.VerificationTokenExpiresAt = &t
	}
	return &cp
}

func cloneOrganisation(o *tenancy.Organisation) *tenancy.Organisation {
	cp := *o
	return &cp
}

func cloneMembership(m *tenancy.Membership) *tenancy.Membership {
	cp := *m
	return &cp
}

// --- accounts -------------------------------------------------------------

type accountStore Store

func (s *accountStore) Create(_ context.Context, a *tenancy.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return tenancy.ErrConflict
	}
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return tenancy.ErrConflict
		}
	}
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *accountStore) Find(_ context.Context, id string) (*tenancy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok || a.Deactivated {
		return nil, tenancy.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *accountStore) FindAny(_ context.Context, id string) (*tenancy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, tenancy.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *accountStore) FindByEmail(_ context.Context, email string) (*tenancy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, tenancy.ErrNotFound
}

func (s *accountStore) FindByVerificationToken(_ context.Context, token string) (*tenancy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return nil, tenancy.ErrNotFound
	}
	for _, a := range s.accounts {
		if a.VerificationToken == token {
			return cloneAccount(a), nil
		}
	}
	return nil, tenancy.ErrNotFound
}

func (s *accountStore) List(_ context.Context) ([]*tenancy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*tenancy.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *accountStore) SetDeactivated(_ context.Context, id string, deactivated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return tenancy.ErrNotFound
	}
	a.Deactivated = deactivated
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *accountStore) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return tenancy.ErrNotFound
	}
	verified := at
	a.EmailVerifiedAt = &verified
	a.VerificationToken = ""
	a.VerificationTokenExpiresAt = nil
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *accountStore) SetVerificationToken(_ context.Context, id, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return tenancy.ErrNotFound
	}
	a.VerificationToken = token
	expires := expiresAt
	a.VerificationTokenExpiresAt = &expires
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// --- organisations --------------------------------------------------------

type organisationStore Store

func (s *organisationStore) CreateWithOwner(_ context.Context, org *tenancy.Organisation, owner *tenancy.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.organisations[org.ID]; ok {
		return tenancy.ErrConflict
	}
	s.organisations[org.ID] = cloneOrganisation(org)
	s.memberships[owner.ID] = cloneMembership(owner)
	return nil
}

func (s *organisationStore) Find(_ context.Context, id string) (*tenancy.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.organisations[id]
	if !ok {
		return nil, tenancy.ErrNotFound
	}
	return cloneOrganisation(org), nil
}

func (s *organisationStore) Update(_ context.Context, id string, upd tenancy.OrganisationUpdate) (*tenancy.Organisation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.organisations[id]
	if !ok {
		return nil, tenancy.ErrNotFound
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&org.Name, upd.Name)
	apply(&org.Email, upd.Email)
	apply(&org.Phone, upd.Phone)
	apply(&org.AddressLine1, upd.AddressLine1)
	apply(&org.AddressLine2, upd.AddressLine2)
	apply(&org.City, upd.City)
	apply(&org.County, upd.County)
	apply(&org.Postcode, upd.Postcode)
	apply(&org.Country, upd.Country)
	org.UpdatedAt = time.Now().UTC()
	return cloneOrganisation(org), nil
}

func (s *organisationStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.organisations[id]
	if !ok {
		return tenancy.ErrNotFound
	}
	org.Active = false
	org.UpdatedAt = time.Now().UTC()
	return nil
}

// --- memberships ----------------------------------------------------------

type membershipStore Store

func (s *membershipStore) Create(_ context.Context, m *tenancy.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[m.ID]; ok {
		return tenancy.ErrConflict
	}
	for _, existing := range s.memberships {
		if existing.EntityID != m.EntityID {
			continue
		}
		if m.Member.Linked() && existing.Member.Linked() &&
			existing.Member.AccountID() == m.Member.AccountID() {
			return tenancy.ErrConflict
		}
		if !m.Member.Linked() && !existing.Member.Linked() &&
			existing.Member.Email() == m.Member.Email() {
			return tenancy.ErrConflict
		}
	}
	s.memberships[m.ID] = cloneMembership(m)
	return nil
}

func (s *membershipStore) Find(_ context.Context, id string) (*tenancy.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[id]
	if !ok {
		return nil, tenancy.ErrNotFound
	}
	return cloneMembership(m), nil
}

func (s *membershipStore) FindByAccountAndEntity(_ context.Context, accountID, entityID string) (*tenancy.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.EntityID == entityID && m.Member.Linked() && m.Member.AccountID() == accountID {
			return cloneMembership(m), nil
		}
	}
	return nil, tenancy.ErrNotFound
}

func (s *membershipStore) FindByEmailAndEntity(_ context.Context, email, entityID string) (*tenancy.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.EntityID == entityID && !m.Member.Linked() && m.Member.Email() == email {
			return cloneMembership(m), nil
		}
	}
	return nil, tenancy.ErrNotFound
}

func (s *membershipStore) AcceptedActive(_ context.Context, accountID, entityID string) (*tenancy.MembershipEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.EntityID != entityID || !m.InviteAccepted {
			continue
		}
		if !m.Member.Linked() || m.Member.AccountID() != accountID {
			continue
		}
		org, ok := s.organisations[entityID]
		if !ok || !org.Active {
			return nil, tenancy.ErrNotFound
		}
		return &tenancy.MembershipEntity{Membership: cloneMembership(m), Entity: cloneOrganisation(org)}, nil
	}
	return nil, tenancy.ErrNotFound
}

func (s *membershipStore) FirstAcceptedActive(ctx context.Context, accountID string) (*tenancy.MembershipEntity, error) {
	list, err := s.ListAcceptedActive(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, tenancy.ErrNotFound
	}
	return &list[0], nil
}

func (s *membershipStore) ListAcceptedActive(_ context.Context, accountID string) ([]tenancy.MembershipEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectForAccount(accountID, true), nil
}

func (s *membershipStore) ListPendingForAccount(_ context.Context, accountID string) ([]tenancy.MembershipEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectForAccount(accountID, false), nil
}

// collectForAccount returns the account's memberships on active organisations
// in membership id order; accepted selects between accepted rows and pending
// ones. Callers hold the lock.
func (s *membershipStore) collectForAccount(accountID string, accepted bool) []tenancy.MembershipEntity {
	var out []tenancy.MembershipEntity
	for _, m := range s.memberships {
		if !m.Member.Linked() || m.Member.AccountID() != accountID {
			continue
		}
		if m.InviteAccepted != accepted {
			continue
		}
		org, ok := s.organisations[m.EntityID]
		if !ok || !org.Active {
			continue
		}
		out = append(out, tenancy.MembershipEntity{
			Membership: cloneMembership(m),
			Entity:     cloneOrganisation(org),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Membership.ID < out[j].Membership.ID
	})
	return out
}

func (s *membershipStore) ListByEntity(_ context.Context, entityID string) ([]*tenancy.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*tenancy.Membership
	for _, m := range s.memberships {
		if m.EntityID == entityID {
			out = append(out, cloneMembership(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *membershipStore) LinkPendingByEmail(_ context.Context, accountID, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	linked := 0
	for _, m := range s.memberships {
		if m.InviteAccepted || m.Member.Linked() || m.Member.Email() != email {
			continue
		}
		m.Member = tenancy.LinkedMember(accountID)
		m.UpdatedAt = time.Now().UTC()
		linked++
	}
	return linked, nil
}

func (s *membershipStore) Accept(_ context.Context, id, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok || m.InviteAccepted || !m.Member.Linked() || m.Member.AccountID() != accountID {
		return tenancy.ErrNotFound
	}
	m.InviteAccepted = true
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *membershipStore) DeletePending(_ context.Context, id, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok || m.InviteAccepted || !m.Member.Linked() || m.Member.AccountID() != accountID {
		return tenancy.ErrNotFound
	}
	delete(s.memberships, id)
	return nil
}

func (s *membershipStore) DeleteNonOwner(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok {
		return tenancy.ErrNotFound
	}
	if m.Role == tenancy.RoleOwner {
		return tenancy.ErrOwnerProtected
	}
	delete(s.memberships, id)
	return nil
}

func (s *membershipStore) UpdateRoleNonOwner(_ context.Context, id string, role tenancy.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok {
		return tenancy.ErrNotFound
	}
	if m.Role == tenancy.RoleOwner {
		return tenancy.ErrOwnerProtected
	}
	m.Role = role
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *membershipStore) CountOtherAccepted(_ context.Context, entityID, exceptAccountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.memberships {
		if m.EntityID != entityID || !m.InviteAccepted {
			continue
		}
		if m.Member.Linked() && m.Member.AccountID() == exceptAccountID {
			continue
		}
		count++
	}
	return count, nil
}

// --- sessions -------------------------------------------------------------

type sessionStore Store

func (s *sessionStore) Create(_ context.Context, sess *tenancy.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return tenancy.ErrConflict
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *sessionStore) Find(_ context.Context, id string) (*tenancy.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, tenancy.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *sessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return tenancy.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *sessionStore) DeleteByAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.AccountID == accountID {
			delete(s.sessions, id)
		}
	}
	return nil
}
