package access

import (
	"context"
	"errors"
	"testing"

	"fleetflow/identity"
)

type fakeGraph struct {
	assocs    map[string][]Association
	drivers   map[string]DriverProfile
	assocErr  error
	driverErr error
}

func (f *fakeGraph) ContactAssociations(ctx context.Context, userID string) ([]Association, error) {
	if f.assocErr != nil {
		return nil, f.assocErr
	}
	assocs, ok := f.assocs[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return assocs, nil
}

func (f *fakeGraph) DriverByUser(ctx context.Context, userID string) (DriverProfile, error) {
	if f.driverErr != nil {
		return DriverProfile{}, f.driverErr
	}
	d, ok := f.drivers[userID]
	if !ok {
		return DriverProfile{}, ErrProfileNotFound
	}
	return d, nil
}

func strptr(s string) *string { return &s }

func TestResolve_GlobalAdmin(t *testing.T) {
	r := NewResolver(&fakeGraph{})

	scope, err := r.Resolve(context.Background(), identity.Identity{UserID: "u1", Role: identity.RoleGlobalAdmin})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !scope.Unrestricted {
		t.Fatal("expected unrestricted scope for global admin")
	}
}

func TestResolve_ContactPersonCollectsDistinctIDs(t *testing.T) {
	graph := &fakeGraph{
		assocs: map[string][]Association{
			"u1": {
				{CompanyID: strptr("co-1")},
				{CompanyID: strptr("co-1"), ClientID: strptr("cl-1")},
				{ClientID: strptr("cl-2")},
				{CompanyID: strptr("co-2")},
			},
		},
	}
	r := NewResolver(graph)

	for _, role := range identity.ContactPersonRoles {
		scope, err := r.Resolve(context.Background(), identity.Identity{UserID: "u1", Role: role})
		if err != nil {
			t.Fatalf("resolve %s: %v", role, err)
		}
		if scope.Unrestricted {
			t.Fatalf("%s: expected restricted scope", role)
		}
		if len(scope.CompanyIDs) != 2 || !scope.HasCompany("co-1") || !scope.HasCompany("co-2") {
			t.Fatalf("%s: unexpected company scope %v", role, scope.CompanyIDs)
		}
		if len(scope.ClientIDs) != 2 || !scope.HasClient("cl-1") || !scope.HasClient("cl-2") {
			t.Fatalf("%s: unexpected client scope %v", role, scope.ClientIDs)
		}
		if scope.OwnedDriverID != "" {
			t.Fatalf("%s: contact person must not own a driver", role)
		}
	}
}

func TestResolve_ContactPersonWithoutProfile(t *testing.T) {
	r := NewResolver(&fakeGraph{assocs: map[string][]Association{}})

	_, err := r.Resolve(context.Background(), identity.Identity{UserID: "ghost", Role: identity.RoleCustomerAdmin})
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestResolve_ContactPersonEmptyAssociations(t *testing.T) {
	r := NewResolver(&fakeGraph{assocs: map[string][]Association{"u1": {}}})

	scope, err := r.Resolve(context.Background(), identity.Identity{UserID: "u1", Role: identity.RoleCustomer})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(scope.CompanyIDs) != 0 || len(scope.ClientIDs) != 0 {
		t.Fatalf("expected empty scope, got %+v", scope)
	}
	if err := scope.RequireCompanyScope(); err != nil {
		t.Fatalf("empty contact scope is not a profile gap: %v", err)
	}
}

func TestResolve_DriverWithCompany(t *testing.T) {
	graph := &fakeGraph{
		drivers: map[string]DriverProfile{
			"u2": {ID: "drv-9", CompanyID: strptr("co-7")},
		},
	}
	r := NewResolver(graph)

	scope, err := r.Resolve(context.Background(), identity.Identity{UserID: "u2", Role: identity.RoleDriver})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if scope.OwnedDriverID != "drv-9" {
		t.Fatalf("expected owned driver drv-9, got %q", scope.OwnedDriverID)
	}
	if !scope.HasCompany("co-7") {
		t.Fatal("expected driver's company in scope")
	}
	if err := scope.RequireCompanyScope(); err != nil {
		t.Fatalf("company-assigned driver should pass: %v", err)
	}
}

func TestResolve_DriverWithoutCompany(t *testing.T) {
	graph := &fakeGraph{
		drivers: map[string]DriverProfile{
			"u3": {ID: "drv-1"},
		},
	}
	r := NewResolver(graph)

	scope, err := r.Resolve(context.Background(), identity.Identity{UserID: "u3", Role: identity.RoleDriver})
	if err != nil {
		t.Fatalf("self-only resolution must succeed: %v", err)
	}
	if scope.OwnedDriverID != "drv-1" {
		t.Fatalf("expected owned driver drv-1, got %q", scope.OwnedDriverID)
	}
	if len(scope.CompanyIDs) != 0 {
		t.Fatalf("expected no company scope, got %v", scope.CompanyIDs)
	}
	if err := scope.RequireCompanyScope(); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("company-scoped operations must see ErrProfileNotFound, got %v", err)
	}
}

func TestResolve_MissingDriverProfile(t *testing.T) {
	r := NewResolver(&fakeGraph{drivers: map[string]DriverProfile{}})

	_, err := r.Resolve(context.Background(), identity.Identity{UserID: "u4", Role: identity.RoleDriver})
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestResolve_UnknownRole(t *testing.T) {
	r := NewResolver(&fakeGraph{})

	for _, role := range []identity.Role{"", "superuser"} {
		_, err := r.Resolve(context.Background(), identity.Identity{UserID: "u5", Role: role})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("role %q: expected ErrUnauthorized, got %v", role, err)
		}
	}
}
