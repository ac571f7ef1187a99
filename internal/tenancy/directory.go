package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"locumdesk.org/internal/ids"
)

// OrganisationParams carries caller-supplied fields for organisation creation.
// Kind is validated against the closed kind set before any row is created.
type OrganisationParams struct {
	Kind         string
	Name         string
	Email        string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	County       string
	Postcode     string
	Country      string
	ParentID     string
}

// CreateOrganisation creates an organisation and, atomically with it, the
// founding owner membership for the creator. The owner role is assigned here
// and never again. Callers should switch the creator's entity hint to the new
// organisation.
func (s *Service) CreateOrganisation(ctx context.Context, founder *Account, params OrganisationParams) (*Organisation, *Membership, error) {
	if founder == nil {
		return nil, nil, ErrUnauthenticated
	}
	kind, err := ParseKind(params.Kind)
	if err != nil {
		return nil, nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: organisation name is required", ErrInvalidInput)
	}
	if params.ParentID != "" {
		if kind != KindClient {
			return nil, nil, fmt.Errorf("%w: only client organisations can have a parent", ErrInvalidInput)
		}
		parent, err := s.store.Organisations().Find(ctx, params.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: parent organisation not found", ErrInvalidInput)
			}
			return nil, nil, err
		}
		// Two levels only: a child client cannot itself be a parent.
		if parent.Kind != KindClient || parent.ParentID != "" {
			return nil, nil, fmt.Errorf("%w: parent must be a top-level client organisation", ErrInvalidInput)
		}
	}

	now := s.now().UTC()
	org := &Organisation{
		ID:           ids.New(),
		Kind:         kind,
		Name:         name,
		Email:        NormalizeEmail(params.Email),
		Phone:        strings.TrimSpace(params.Phone),
		AddressLine1: strings.TrimSpace(params.AddressLine1),
		AddressLine2: strings.TrimSpace(params.AddressLine2),
		City:         strings.TrimSpace(params.City),
		County:       strings.TrimSpace(params.County),
		Postcode:     strings.TrimSpace(params.Postcode),
		Country:      strings.TrimSpace(params.Country),
		ParentID:     params.ParentID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	owner := &Membership{
		ID:             ids.New(),
		EntityID:       org.ID,
		Member:         LinkedMember(founder.ID),
		Role:           RoleOwner,
		InviteAccepted: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Organisations().CreateWithOwner(ctx, org, owner); err != nil {
		return nil, nil, err
	}
	return org, owner, nil
}

// GetOrganisation loads an organisation the account has a membership on.
func (s *Service) GetOrganisation(ctx context.Context, actor *Account, entityID string) (*Organisation, *Membership, error) {
	if actor == nil {
		return nil, nil, ErrUnauthenticated
	}
	org, err := s.store.Organisations().Find(ctx, entityID)
	if err != nil {
		return nil, nil, err
	}
	membership, err := s.store.Memberships().FindByAccountAndEntity(ctx, actor.ID, entityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: you do not have access to that organisation", ErrEntityAccessDenied)
		}
		return nil, nil, err
	}
	return org, membership, nil
}

// UpdateOrganisation edits contact and address fields. Admin or owner only;
// kind and parent are never updatable.
func (s *Service) UpdateOrganisation(ctx context.Context, actor *Account, entityID string, upd OrganisationUpdate) (*Organisation, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	membership, err := s.acceptedMembership(ctx, actor.ID, entityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: you do not have access to that organisation", ErrEntityAccessDenied)
		}
		return nil, err
	}
	if !membership.CanManageUsers() {
		return nil, fmt.Errorf("%w: you do not have permission to edit this organisation", ErrPermissionDenied)
	}
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: organisation name is required", ErrInvalidInput)
		}
		upd.Name = &trimmed
	}
	return s.store.Organisations().Update(ctx, entityID, upd)
}

// DeactivateOrganisation deactivates an organisation. Preconditions: the
// requester holds the owner role and no other accepted member remains. The
// caller must clear the requester's entity hint afterwards so the next
// resolution lands on another organisation or the empty context.
func (s *Service) DeactivateOrganisation(ctx context.Context, actor *Account, entityID string) (*Organisation, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	org, err := s.store.Organisations().Find(ctx, entityID)
	if err != nil {
		return nil, err
	}
	membership, err := s.acceptedMembership(ctx, actor.ID, entityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: only organisation owners can deactivate an organisation", ErrDeactivationBlocked)
		}
		return nil, err
	}
	if membership.Role != RoleOwner {
		return nil, fmt.Errorf("%w: only organisation owners can deactivate an organisation", ErrDeactivationBlocked)
	}
	others, err := s.store.Memberships().CountOtherAccepted(ctx, entityID, actor.ID)
	if err != nil {
		return nil, err
	}
	if others > 0 {
		return nil, fmt.Errorf("%w: remove all other members before deactivating this organisation", ErrDeactivationBlocked)
	}
	if err := s.store.Organisations().Deactivate(ctx, entityID); err != nil {
		return nil, err
	}
	org.Active = false
	return org, nil
}
