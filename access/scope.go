// Package access implements request scoping and authorization for the
// tenancy hierarchy: which companies, clients and drivers an authenticated
// actor may read or modify. Scope is resolved once per request and passed
// explicitly through all calls; nothing here caches across requests because
// tenancy associations can change between calls.
package access

import "fleetflow/identity"

// Scope is the resolved set of tenancy entities an actor may act upon.
// The zero value denies everything.
type Scope struct {
	// Role is the operative role the scope was resolved for. Write
	// permission checks consult it through a WritePolicy.
	Role identity.Role

	// Unrestricted short-circuits every check; only global admins get it.
	Unrestricted bool

	// CompanyIDs and ClientIDs are the distinct non-null ids collected from
	// the actor's ContactPerson association records, or the driver's single
	// company assignment.
	CompanyIDs map[string]struct{}
	ClientIDs  map[string]struct{}

	// OwnedDriverID is set for drivers only: self-access to the driver's own
	// records is always permitted, even when the company link is stale.
	OwnedDriverID string

	// ProfileMissing marks a scope built via ScopeWithoutProfile. The guard
	// denies with ReasonNoProfile so operators can tell onboarding gaps from
	// ordinary authorization boundaries.
	ProfileMissing bool
}

// ScopeWithoutProfile returns a deny-everything scope whose denials carry
// ReasonNoProfile. List endpoints use it to render an empty result instead of
// failing the whole request when an actor has no profile yet.
func ScopeWithoutProfile(role identity.Role) Scope {
	return Scope{Role: role, ProfileMissing: true}
}

// HasCompany reports whether the company id is inside the scope.
func (s Scope) HasCompany(id string) bool {
	_, ok := s.CompanyIDs[id]
	return ok
}

// HasClient reports whether the client id is inside the scope.
func (s Scope) HasClient(id string) bool {
	_, ok := s.ClientIDs[id]
	return ok
}

// CompanyIDList returns the scoped company ids as a slice, for SQL ANY($1)
// list filtering. Order is unspecified.
func (s Scope) CompanyIDList() []string {
	out := make([]string, 0, len(s.CompanyIDs))
	for id := range s.CompanyIDs {
		out = append(out, id)
	}
	return out
}

// ClientIDList returns the scoped client ids as a slice.
func (s Scope) ClientIDList() []string {
	out := make([]string, 0, len(s.ClientIDs))
	for id := range s.ClientIDs {
		out = append(out, id)
	}
	return out
}

// RequireCompanyScope reports ErrProfileNotFound for a driver whose profile
// carries no company assignment. Operations scoped to "my own records only"
// skip this check; everything that reads company data calls it first.
// A contact person with zero associations passes: their empty scope is a
// normal authorization boundary, not a configuration gap.
func (s Scope) RequireCompanyScope() error {
	if s.Unrestricted || len(s.CompanyIDs) > 0 {
		return nil
	}
	if s.OwnedDriverID != "" {
		return ErrProfileNotFound
	}
	return nil
}
