package tenancy

import (
	"context"
	"errors"

	"fleetflow/access"
)

// ErrForbidden signals the actor's scope or write policy rejects the operation.
var ErrForbidden = errors.New("tenancy: forbidden")

// Store is the repository surface the service manages.
type Store interface {
	CreateCompany(ctx context.Context, name string) (Company, error)
	RenameCompany(ctx context.Context, companyID, name string) (Company, error)
	CompanyByID(ctx context.Context, companyID string) (Company, error)
	ListCompanies(ctx context.Context, scope access.Scope) ([]Company, error)
	CreateClient(ctx context.Context, params CreateClientParams) (Client, error)
	ClientByID(ctx context.Context, clientID string) (Client, error)
	ListClients(ctx context.Context, scope access.Scope) ([]Client, error)
	CreateDriver(ctx context.Context, userID string, companyID *string) (Driver, error)
	AssignDriverCompany(ctx context.Context, driverID string, companyID *string) (Driver, error)
	DriverByID(ctx context.Context, driverID string) (Driver, error)
	SoftDeleteDriver(ctx context.Context, driverID string) error
	ListDrivers(ctx context.Context, scope access.Scope) ([]Driver, error)
	CreateContactPerson(ctx context.Context, userID string) (ContactPerson, error)
	AddAssociation(ctx context.Context, contactPersonID string, companyID, clientID *string) (Association, error)
	SoftDeleteContactPerson(ctx context.Context, contactPersonID string) error
}

// Service gates tenancy-graph mutations behind the write policy and the
// actor's scope. Reads delegate to the scope-filtered repository queries.
type Service struct {
	store  Store
	policy access.WritePolicy
}

func NewService(store Store) *Service {
	return &Service{
		store:  store,
		policy: access.DefaultWritePolicy(),
	}
}

// WithWritePolicy replaces the default permission grid.
func (s *Service) WithWritePolicy(policy access.WritePolicy) *Service {
	s.policy = policy
	return s
}

// CreateCompany creates a root tenancy unit. There is no target to guard
// against; the write policy alone decides who may create companies.
func (s *Service) CreateCompany(ctx context.Context, scope access.Scope, name string) (Company, error) {
	if !s.policy.Allows(scope.Role, access.ActionManageTenancy) {
		return Company{}, ErrForbidden
	}
	return s.store.CreateCompany(ctx, name)
}

// RenameCompany updates the company name within the actor's scope.
func (s *Service) RenameCompany(ctx context.Context, scope access.Scope, companyID, name string) (Company, error) {
	if err := s.requireCompanyWrite(scope, companyID); err != nil {
		return Company{}, err
	}
	return s.store.RenameCompany(ctx, companyID, name)
}

// CreateClient adds a client under a company the actor manages.
func (s *Service) CreateClient(ctx context.Context, scope access.Scope, params CreateClientParams) (Client, error) {
	if err := s.requireCompanyWrite(scope, params.CompanyID); err != nil {
		return Client{}, err
	}
	return s.store.CreateClient(ctx, params)
}

// CreateDriver registers a driver profile. When a company is named the actor
// must manage it; an unassigned driver can only be created by an
// unrestricted actor.
func (s *Service) CreateDriver(ctx context.Context, scope access.Scope, userID string, companyID *string) (Driver, error) {
	if !s.policy.Allows(scope.Role, access.ActionManageTenancy) {
		return Driver{}, ErrForbidden
	}
	target := access.Target{}
	if companyID != nil {
		target.CompanyID = *companyID
	}
	if decision := access.CheckAccess(scope, target); !decision.Allowed {
		return Driver{}, ErrForbidden
	}
	return s.store.CreateDriver(ctx, userID, companyID)
}

// AssignDriverCompany moves a driver into a company the actor manages; nil
// detaches, which again requires an unrestricted actor.
func (s *Service) AssignDriverCompany(ctx context.Context, scope access.Scope, driverID string, companyID *string) (Driver, error) {
	if !s.policy.Allows(scope.Role, access.ActionManageTenancy) {
		return Driver{}, ErrForbidden
	}
	target := access.Target{}
	if companyID != nil {
		target.CompanyID = *companyID
	}
	if decision := access.CheckAccess(scope, target); !decision.Allowed {
		return Driver{}, ErrForbidden
	}
	return s.store.AssignDriverCompany(ctx, driverID, companyID)
}

// SoftDeleteDriver suppresses a driver's scope. An administrative decision
// over the driver's company, so the driver self-access shortcut does not
// apply.
func (s *Service) SoftDeleteDriver(ctx context.Context, scope access.Scope, driverID string) error {
	if !s.policy.Allows(scope.Role, access.ActionManageTenancy) {
		return ErrForbidden
	}
	driver, err := s.store.DriverByID(ctx, driverID)
	if err != nil {
		return err
	}
	target := access.Target{}
	if driver.CompanyID != nil {
		target.CompanyID = *driver.CompanyID
	}
	if decision := access.CheckAccess(scope, target); !decision.Allowed {
		return ErrForbidden
	}
	return s.store.SoftDeleteDriver(ctx, driverID)
}

// CreateContactPerson opens an empty contact-person profile for a user.
func (s *Service) CreateContactPerson(ctx context.Context, scope access.Scope, userID string) (ContactPerson, error) {
	if !s.policy.Allows(scope.Role, access.ActionManageTenancy) {
		return ContactPerson{}, ErrForbidden
	}
	return s.store.CreateContactPerson(ctx, userID)
}

// AddAssociation grants scope over a company or client the actor manages.
func (s *Service) AddAssociation(ctx context.Context, scope access.Scope, contactPersonID string, companyID, clientID *string) (Association, error) {
	if !s.policy.Allows(scope.Role, access.ActionManageTenancy) {
		return Association{}, ErrForbidden
	}
	target := access.Target{}
	if companyID != nil {
		target.CompanyID = *companyID
	}
	if clientID != nil {
		target.ClientID = *clientID
	}
	if decision := access.CheckAccess(scope, target); !decision.Allowed {
		return Association{}, ErrForbidden
	}
	return s.store.AddAssociation(ctx, contactPersonID, companyID, clientID)
}

// SoftDeleteContactPerson suppresses the contact person's scope.
func (s *Service) SoftDeleteContactPerson(ctx context.Context, scope access.Scope, contactPersonID string) error {
	if !s.policy.Allows(scope.Role, access.ActionManageTenancy) {
		return ErrForbidden
	}
	return s.store.SoftDeleteContactPerson(ctx, contactPersonID)
}

// ListCompanies returns the companies visible to the scope.
func (s *Service) ListCompanies(ctx context.Context, scope access.Scope) ([]Company, error) {
	return s.store.ListCompanies(ctx, scope)
}

// ListClients returns the active clients visible to the scope.
func (s *Service) ListClients(ctx context.Context, scope access.Scope) ([]Client, error) {
	return s.store.ListClients(ctx, scope)
}

// ListDrivers returns the active drivers visible to the scope.
func (s *Service) ListDrivers(ctx context.Context, scope access.Scope) ([]Driver, error) {
	return s.store.ListDrivers(ctx, scope)
}

// DriverByID fetches an active driver profile.
func (s *Service) DriverByID(ctx context.Context, driverID string) (Driver, error) {
	return s.store.DriverByID(ctx, driverID)
}

func (s *Service) requireCompanyWrite(scope access.Scope, companyID string) error {
	if !s.policy.Allows(scope.Role, access.ActionManageTenancy) {
		return ErrForbidden
	}
	if decision := access.CheckAccess(scope, access.Target{CompanyID: companyID}); !decision.Allowed {
		return ErrForbidden
	}
	return nil
}
