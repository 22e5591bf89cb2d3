package tenancy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fleetflow/access"
	"fleetflow/identity"
)

type fakeStore struct {
	companies map[string]Company
	clients   map[string]Client
	drivers   map[string]Driver
	contacts  map[string]ContactPerson
	assocs    []Association
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		companies: make(map[string]Company),
		clients:   make(map[string]Client),
		drivers:   make(map[string]Driver),
		contacts:  make(map[string]ContactPerson),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateCompany(_ context.Context, name string) (Company, error) {
	c := Company{ID: f.id("co"), Name: name}
	f.companies[c.ID] = c
	return c, nil
}

func (f *fakeStore) RenameCompany(_ context.Context, companyID, name string) (Company, error) {
	c, ok := f.companies[companyID]
	if !ok {
		return Company{}, ErrNotFound
	}
	c.Name = name
	f.companies[companyID] = c
	return c, nil
}

func (f *fakeStore) CompanyByID(_ context.Context, companyID string) (Company, error) {
	c, ok := f.companies[companyID]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListCompanies(_ context.Context, scope access.Scope) ([]Company, error) {
	out := make([]Company, 0, len(f.companies))
	for _, c := range f.companies {
		if scope.Unrestricted || scope.HasCompany(c.ID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateClient(_ context.Context, params CreateClientParams) (Client, error) {
	c := Client{ID: f.id("cl"), CompanyID: params.CompanyID, Name: params.Name}
	f.clients[c.ID] = c
	return c, nil
}

func (f *fakeStore) ClientByID(_ context.Context, clientID string) (Client, error) {
	c, ok := f.clients[clientID]
	if !ok {
		return Client{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListClients(_ context.Context, scope access.Scope) ([]Client, error) {
	out := make([]Client, 0, len(f.clients))
	for _, c := range f.clients {
		if scope.Unrestricted || scope.HasCompany(c.CompanyID) || scope.HasClient(c.ID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateDriver(_ context.Context, userID string, companyID *string) (Driver, error) {
	d := Driver{ID: f.id("drv"), UserID: userID, CompanyID: companyID}
	f.drivers[d.ID] = d
	return d, nil
}

func (f *fakeStore) AssignDriverCompany(_ context.Context, driverID string, companyID *string) (Driver, error) {
	d, ok := f.drivers[driverID]
	if !ok {
		return Driver{}, ErrNotFound
	}
	d.CompanyID = companyID
	f.drivers[driverID] = d
	return d, nil
}

func (f *fakeStore) DriverByID(_ context.Context, driverID string) (Driver, error) {
	d, ok := f.drivers[driverID]
	if !ok || d.IsDeleted {
		return Driver{}, ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) SoftDeleteDriver(_ context.Context, driverID string) error {
	d, ok := f.drivers[driverID]
	if !ok || d.IsDeleted {
		return ErrNotFound
	}
	d.IsDeleted = true
	f.drivers[driverID] = d
	return nil
}

func (f *fakeStore) ListDrivers(_ context.Context, scope access.Scope) ([]Driver, error) {
	out := make([]Driver, 0, len(f.drivers))
	for _, d := range f.drivers {
		if d.IsDeleted {
			continue
		}
		if scope.Unrestricted || d.ID == scope.OwnedDriverID || (d.CompanyID != nil && scope.HasCompany(*d.CompanyID)) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateContactPerson(_ context.Context, userID string) (ContactPerson, error) {
	cp := ContactPerson{ID: f.id("cp"), UserID: userID}
	f.contacts[cp.ID] = cp
	return cp, nil
}

func (f *fakeStore) AddAssociation(_ context.Context, contactPersonID string, companyID, clientID *string) (Association, error) {
	a := Association{ID: f.id("as"), ContactPersonID: contactPersonID, CompanyID: companyID, ClientID: clientID}
	f.assocs = append(f.assocs, a)
	return a, nil
}

func (f *fakeStore) SoftDeleteContactPerson(_ context.Context, contactPersonID string) error {
	cp, ok := f.contacts[contactPersonID]
	if !ok || cp.IsDeleted {
		return ErrNotFound
	}
	cp.IsDeleted = true
	f.contacts[contactPersonID] = cp
	return nil
}

func companyAdminScope(companyIDs ...string) access.Scope {
	scope := access.Scope{Role: identity.RoleCustomerAdmin, CompanyIDs: make(map[string]struct{})}
	for _, id := range companyIDs {
		scope.CompanyIDs[id] = struct{}{}
	}
	return scope
}

func TestService_CreateCompanyPolicyGated(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore())

	if _, err := svc.CreateCompany(ctx, access.Scope{Role: identity.RoleCustomerAccountant}, "Haulage"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for accountant, got %v", err)
	}
	if _, err := svc.CreateCompany(ctx, access.Scope{Role: identity.RoleDriver, OwnedDriverID: "drv-1"}, "Haulage"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for driver, got %v", err)
	}
	company, err := svc.CreateCompany(ctx, access.Scope{Role: identity.RoleGlobalAdmin, Unrestricted: true}, "Haulage")
	if err != nil {
		t.Fatalf("global admin create company: %v", err)
	}
	if company.Name != "Haulage" {
		t.Fatalf("unexpected company: %+v", company)
	}
}

func TestService_ClientWritesScopedToCompany(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)

	mine, _ := store.CreateCompany(ctx, "Mine")
	other, _ := store.CreateCompany(ctx, "Other")
	scope := companyAdminScope(mine.ID)

	client, err := svc.CreateClient(ctx, scope, CreateClientParams{CompanyID: mine.ID, Name: "Depot"})
	if err != nil {
		t.Fatalf("create client in scope: %v", err)
	}
	if client.CompanyID != mine.ID {
		t.Fatalf("unexpected client: %+v", client)
	}

	if _, err := svc.CreateClient(ctx, scope, CreateClientParams{CompanyID: other.ID, Name: "Depot"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign company, got %v", err)
	}
	if _, err := svc.RenameCompany(ctx, scope, other.ID, "Mine Too"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign rename, got %v", err)
	}
	if _, err := svc.RenameCompany(ctx, scope, mine.ID, "Mine Renamed"); err != nil {
		t.Fatalf("rename in scope: %v", err)
	}
}

func TestService_DriverManagement(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)

	mine, _ := store.CreateCompany(ctx, "Mine")
	other, _ := store.CreateCompany(ctx, "Other")
	scope := companyAdminScope(mine.ID)

	driver, err := svc.CreateDriver(ctx, scope, "user-1", &mine.ID)
	if err != nil {
		t.Fatalf("create driver in scope: %v", err)
	}

	// An unassigned driver has no company to guard against, so only an
	// unrestricted actor may create or detach one.
	if _, err := svc.CreateDriver(ctx, scope, "user-2", nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for detached create, got %v", err)
	}
	if _, err := svc.AssignDriverCompany(ctx, scope, driver.ID, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for detach, got %v", err)
	}
	if _, err := svc.AssignDriverCompany(ctx, scope, driver.ID, &other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign assign, got %v", err)
	}

	foreign, _ := store.CreateDriver(ctx, "user-3", &other.ID)
	if err := svc.SoftDeleteDriver(ctx, scope, foreign.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign delete, got %v", err)
	}
	if err := svc.SoftDeleteDriver(ctx, scope, driver.ID); err != nil {
		t.Fatalf("delete own driver: %v", err)
	}
	if _, err := store.DriverByID(ctx, driver.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected driver gone, got %v", err)
	}
}

func TestService_AssociationGrantsScoped(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)

	mine, _ := store.CreateCompany(ctx, "Mine")
	other, _ := store.CreateCompany(ctx, "Other")
	client, _ := store.CreateClient(ctx, CreateClientParams{CompanyID: mine.ID, Name: "Depot"})
	cp, _ := store.CreateContactPerson(ctx, "user-cp")
	scope := companyAdminScope(mine.ID)

	if _, err := svc.AddAssociation(ctx, scope, cp.ID, &mine.ID, &client.ID); err != nil {
		t.Fatalf("grant in scope: %v", err)
	}
	if _, err := svc.AddAssociation(ctx, scope, cp.ID, &other.ID, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign grant, got %v", err)
	}
	if err := svc.SoftDeleteContactPerson(ctx, access.Scope{Role: identity.RoleCustomer}, cp.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for customer, got %v", err)
	}
	if err := svc.SoftDeleteContactPerson(ctx, scope, cp.ID); err != nil {
		t.Fatalf("delete contact person: %v", err)
	}
}
