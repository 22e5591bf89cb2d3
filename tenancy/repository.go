package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetflow/access"
)

var (
	// ErrNotFound signals the requested entity does not exist or is soft-deleted.
	ErrNotFound = errors.New("tenancy: not found")
	// ErrCompanyMismatch signals an association whose client belongs to a
	// different company than the one named on the record.
	ErrCompanyMismatch = errors.New("tenancy: client does not belong to company")
	// ErrDuplicate signals a uniqueness violation (e.g. a second active
	// contact person for the same user).
	ErrDuplicate = errors.New("tenancy: duplicate record")
)

// Repository manages the tenancy graph's write side and scoped listings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed tenancy repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateCompany inserts a new root tenancy unit.
func (r *Repository) CreateCompany(ctx context.Context, name string) (Company, error) {
	if name == "" {
		return Company{}, fmt.Errorf("tenancy: company name required")
	}

	const query = `
		INSERT INTO companies (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at
	`

	var c Company
	if err := r.pool.QueryRow(ctx, query, name).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Company{}, fmt.Errorf("tenancy: create company: %w", err)
	}
	return c, nil
}

// RenameCompany updates the only mutable company attribute.
func (r *Repository) RenameCompany(ctx context.Context, companyID, name string) (Company, error) {
	if name == "" {
		return Company{}, fmt.Errorf("tenancy: company name required")
	}

	const query = `
		UPDATE companies
		SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, created_at, updated_at
	`

	var c Company
	if err := r.pool.QueryRow(ctx, query, companyID, name).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, fmt.Errorf("tenancy: rename company: %w", err)
	}
	return c, nil
}

// CompanyByID fetches a company by its primary key.
func (r *Repository) CompanyByID(ctx context.Context, companyID string) (Company, error) {
	const query = `
		SELECT id, name, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	var c Company
	if err := r.pool.QueryRow(ctx, query, companyID).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, fmt.Errorf("tenancy: query company: %w", err)
	}
	return c, nil
}

// ListCompanies returns the companies visible to the scope, ordered by name.
// The guard predicate is applied as a SQL filter: the visible set is the
// union of the allow conditions.
func (r *Repository) ListCompanies(ctx context.Context, scope access.Scope) ([]Company, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM companies
		ORDER BY name ASC
	`
	args := []any{}
	if !scope.Unrestricted {
		query = `
			SELECT id, name, created_at, updated_at
			FROM companies
			WHERE id = ANY($1)
			ORDER BY name ASC
		`
		args = append(args, scope.CompanyIDList())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tenancy: list companies: %w", err)
	}
	defer rows.Close()

	out := make([]Company, 0, 8)
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("tenancy: scan company: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenancy: iterate companies: %w", err)
	}
	return out, nil
}

// CreateClientParams contains write parameters for new clients.
type CreateClientParams struct {
	CompanyID    string
	Name         string
	ContactEmail *string
	ContactPhone *string
}

// CreateClient inserts a client under its owning company.
func (r *Repository) CreateClient(ctx context.Context, params CreateClientParams) (Client, error) {
	if params.CompanyID == "" || params.Name == "" {
		return Client{}, fmt.Errorf("tenancy: client company id and name required")
	}

	const query = `
		INSERT INTO clients (company_id, name, contact_email, contact_phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, company_id, name, contact_email, contact_phone, is_deleted, created_at, updated_at
	`

	client, err := scanClient(r.pool.QueryRow(ctx, query, params.CompanyID, params.Name, params.ContactEmail, params.ContactPhone))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("tenancy: create client: %w", err)
	}
	return client, nil
}

// ClientByID fetches an active client.
func (r *Repository) ClientByID(ctx context.Context, clientID string) (Client, error) {
	const query = `
		SELECT id, company_id, name, contact_email, contact_phone, is_deleted, created_at, updated_at
		FROM clients
		WHERE id = $1 AND is_deleted = FALSE
	`

	client, err := scanClient(r.pool.QueryRow(ctx, query, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("tenancy: query client: %w", err)
	}
	return client, nil
}

// ListClients returns the active clients visible to the scope: clients of a
// scoped company plus clients granted directly.
func (r *Repository) ListClients(ctx context.Context, scope access.Scope) ([]Client, error) {
	query := `
		SELECT id, company_id, name, contact_email, contact_phone, is_deleted, created_at, updated_at
		FROM clients
		WHERE is_deleted = FALSE
		ORDER BY name ASC
	`
	args := []any{}
	if !scope.Unrestricted {
		query = `
			SELECT id, company_id, name, contact_email, contact_phone, is_deleted, created_at, updated_at
			FROM clients
			WHERE is_deleted = FALSE
			  AND (company_id = ANY($1) OR id = ANY($2))
			ORDER BY name ASC
		`
		args = append(args, scope.CompanyIDList(), scope.ClientIDList())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tenancy: list clients: %w", err)
	}
	defer rows.Close()

	out := make([]Client, 0, 8)
	for rows.Next() {
		client, err := scanClientRows(rows)
		if err != nil {
			return nil, fmt.Errorf("tenancy: scan client: %w", err)
		}
		out = append(out, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenancy: iterate clients: %w", err)
	}
	return out, nil
}

// CreateDriver inserts a driver profile, optionally assigned to a company.
func (r *Repository) CreateDriver(ctx context.Context, userID string, companyID *string) (Driver, error) {
	if userID == "" {
		return Driver{}, fmt.Errorf("tenancy: driver user id required")
	}

	const query = `
		INSERT INTO drivers (user_id, company_id)
		VALUES ($1, $2)
		RETURNING id, user_id, company_id, is_deleted, telegram_chat_id, telegram_username, created_at, updated_at
	`

	driver, err := scanDriver(r.pool.QueryRow(ctx, query, userID, companyID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return Driver{}, ErrDuplicate
			case "23503":
				return Driver{}, ErrNotFound
			}
		}
		return Driver{}, fmt.Errorf("tenancy: create driver: %w", err)
	}
	return driver, nil
}

// AssignDriverCompany moves a driver between companies; nil detaches.
func (r *Repository) AssignDriverCompany(ctx context.Context, driverID string, companyID *string) (Driver, error) {
	const query = `
		UPDATE drivers
		SET company_id = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING id, user_id, company_id, is_deleted, telegram_chat_id, telegram_username, created_at, updated_at
	`

	driver, err := scanDriver(r.pool.QueryRow(ctx, query, driverID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Driver{}, ErrNotFound
		}
		return Driver{}, fmt.Errorf("tenancy: assign driver company: %w", err)
	}
	return driver, nil
}

// DriverByID fetches an active driver profile.
func (r *Repository) DriverByID(ctx context.Context, driverID string) (Driver, error) {
	const query = `
		SELECT id, user_id, company_id, is_deleted, telegram_chat_id, telegram_username, created_at, updated_at
		FROM drivers
		WHERE id = $1 AND is_deleted = FALSE
	`

	driver, err := scanDriver(r.pool.QueryRow(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Driver{}, ErrNotFound
		}
		return Driver{}, fmt.Errorf("tenancy: query driver: %w", err)
	}
	return driver, nil
}

// SoftDeleteDriver suppresses the driver's scope without destroying history.
func (r *Repository) SoftDeleteDriver(ctx context.Context, driverID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE drivers SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, driverID)
	if err != nil {
		return fmt.Errorf("tenancy: soft delete driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDrivers returns the active drivers visible to the scope: company-scoped
// drivers plus the actor's own profile. NULLIF keeps the uuid comparison
// well-typed for scopes without an owned driver.
func (r *Repository) ListDrivers(ctx context.Context, scope access.Scope) ([]Driver, error) {
	query := `
		SELECT id, user_id, company_id, is_deleted, telegram_chat_id, telegram_username, created_at, updated_at
		FROM drivers
		WHERE is_deleted = FALSE
		ORDER BY created_at ASC
	`
	args := []any{}
	if !scope.Unrestricted {
		query = `
			SELECT id, user_id, company_id, is_deleted, telegram_chat_id, telegram_username, created_at, updated_at
			FROM drivers
			WHERE is_deleted = FALSE
			  AND (company_id = ANY($1) OR id = NULLIF($2, '')::uuid)
			ORDER BY created_at ASC
		`
		args = append(args, scope.CompanyIDList(), scope.OwnedDriverID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tenancy: list drivers: %w", err)
	}
	defer rows.Close()

	out := make([]Driver, 0, 8)
	for rows.Next() {
		driver, err := scanDriverRows(rows)
		if err != nil {
			return nil, fmt.Errorf("tenancy: scan driver: %w", err)
		}
		out = append(out, driver)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenancy: iterate drivers: %w", err)
	}
	return out, nil
}

// CreateContactPerson inserts an empty contact-person profile for a user.
func (r *Repository) CreateContactPerson(ctx context.Context, userID string) (ContactPerson, error) {
	if userID == "" {
		return ContactPerson{}, fmt.Errorf("tenancy: contact person user id required")
	}

	const query = `
		INSERT INTO contact_persons (user_id)
		VALUES ($1)
		RETURNING id, user_id, is_deleted, created_at
	`

	var cp ContactPerson
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&cp.ID, &cp.UserID, &cp.IsDeleted, &cp.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ContactPerson{}, ErrDuplicate
		}
		return ContactPerson{}, fmt.Errorf("tenancy: create contact person: %w", err)
	}
	return cp, nil
}

// AddAssociation grants a contact person scope to a company, a client, or
// both. When both ids are set the client must belong to that company.
func (r *Repository) AddAssociation(ctx context.Context, contactPersonID string, companyID, clientID *string) (Association, error) {
	if companyID == nil && clientID == nil {
		return Association{}, fmt.Errorf("tenancy: association needs a company or a client")
	}

	if companyID != nil && clientID != nil {
		var owner string
		err := r.pool.QueryRow(ctx, `SELECT company_id FROM clients WHERE id = $1 AND is_deleted = FALSE`, *clientID).Scan(&owner)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Association{}, ErrNotFound
			}
			return Association{}, fmt.Errorf("tenancy: verify client owner: %w", err)
		}
		if owner != *companyID {
			return Association{}, ErrCompanyMismatch
		}
	}

	const query = `
		INSERT INTO contact_person_client_companies (contact_person_id, company_id, client_id)
		VALUES ($1, $2, $3)
		RETURNING id, contact_person_id, company_id, client_id, created_at
	`

	var a Association
	err := r.pool.QueryRow(ctx, query, contactPersonID, companyID, clientID).
		Scan(&a.ID, &a.ContactPersonID, &a.CompanyID, &a.ClientID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Association{}, ErrNotFound
		}
		return Association{}, fmt.Errorf("tenancy: add association: %w", err)
	}
	return a, nil
}

// SoftDeleteContactPerson suppresses the contact person's scope.
func (r *Repository) SoftDeleteContactPerson(ctx context.Context, contactPersonID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE contact_persons SET is_deleted = TRUE WHERE id = $1 AND is_deleted = FALSE`, contactPersonID)
	if err != nil {
		return fmt.Errorf("tenancy: soft delete contact person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.ContactEmail, &c.ContactPhone, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

func scanClientRows(rows pgx.Rows) (Client, error) {
	var c Client
	err := rows.Scan(&c.ID, &c.CompanyID, &c.Name, &c.ContactEmail, &c.ContactPhone, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

func scanDriver(row pgx.Row) (Driver, error) {
	var d Driver
	err := row.Scan(&d.ID, &d.UserID, &d.CompanyID, &d.IsDeleted, &d.TelegramChatID, &d.TelegramUsername, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Driver{}, err
	}
	return d, nil
}

func scanDriverRows(rows pgx.Rows) (Driver, error) {
	var d Driver
	err := rows.Scan(&d.ID, &d.UserID, &d.CompanyID, &d.IsDeleted, &d.TelegramChatID, &d.TelegramUsername, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Driver{}, err
	}
	return d, nil
}
