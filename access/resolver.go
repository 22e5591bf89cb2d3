package access

import (
	"context"
	"errors"
	"fmt"

	"fleetflow/identity"
)

var (
	// ErrProfileNotFound signals the actor lacks the profile their role
	// implies (a contact-person role without a ContactPerson record, or a
	// driver role without a Driver record). Surfaced distinctly from
	// Forbidden: it is an onboarding/configuration problem.
	ErrProfileNotFound = errors.New("access: profile not found")
	// ErrUnauthorized signals a missing or unrecognized role.
	ErrUnauthorized = errors.New("access: unauthorized")
)

// Association is one ContactPersonClientCompany record as seen by the
// resolver: a grant to a company, a client, or both.
type Association struct {
	CompanyID *string
	ClientID  *string
}

// DriverProfile is the slice of a Driver row the resolver needs.
type DriverProfile struct {
	ID        string
	CompanyID *string
}

// TenancyReader provides the tenancy-graph lookups the resolver performs.
// Implementations must apply the soft-delete predicate uniformly and return
// ErrProfileNotFound when the actor has no active profile of the given kind.
type TenancyReader interface {
	ContactAssociations(ctx context.Context, userID string) ([]Association, error)
	DriverByUser(ctx context.Context, userID string) (DriverProfile, error)
}

// Resolver maps an Identity to a Scope against the current tenancy graph.
// Resolution is stateless per request.
type Resolver struct {
	graph TenancyReader
}

func NewResolver(graph TenancyReader) *Resolver {
	return &Resolver{graph: graph}
}

// Resolve computes the actor's scope.
//
// Drivers without a company assignment still resolve to a self-only scope;
// operations that need company-level data reject those through
// Scope.RequireCompanyScope.
func (r *Resolver) Resolve(ctx context.Context, ident identity.Identity) (Scope, error) {
	switch {
	case ident.Role == identity.RoleGlobalAdmin:
		return Scope{Role: ident.Role, Unrestricted: true}, nil

	case ident.Role.IsContactPersonRole():
		assocs, err := r.graph.ContactAssociations(ctx, ident.UserID)
		if err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				return Scope{}, ErrProfileNotFound
			}
			return Scope{}, fmt.Errorf("access: load contact associations: %w", err)
		}
		scope := Scope{
			Role:       ident.Role,
			CompanyIDs: make(map[string]struct{}),
			ClientIDs:  make(map[string]struct{}),
		}
		for _, a := range assocs {
			if a.CompanyID != nil && *a.CompanyID != "" {
				scope.CompanyIDs[*a.CompanyID] = struct{}{}
			}
			if a.ClientID != nil && *a.ClientID != "" {
				scope.ClientIDs[*a.ClientID] = struct{}{}
			}
		}
		return scope, nil

	case ident.Role == identity.RoleDriver:
		driver, err := r.graph.DriverByUser(ctx, ident.UserID)
		if err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				return Scope{}, ErrProfileNotFound
			}
			return Scope{}, fmt.Errorf("access: load driver profile: %w", err)
		}
		scope := Scope{
			Role:          ident.Role,
			CompanyIDs:    make(map[string]struct{}),
			ClientIDs:     make(map[string]struct{}),
			OwnedDriverID: driver.ID,
		}
		if driver.CompanyID != nil && *driver.CompanyID != "" {
			scope.CompanyIDs[*driver.CompanyID] = struct{}{}
		}
		return scope, nil

	default:
		return Scope{}, ErrUnauthorized
	}
}
